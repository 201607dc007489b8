package receipt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructuralSelectorStrategy(t *testing.T) {
	src := &Source{Document: mustParse(templateHTML)}
	candidates := StructuralSelectorStrategy{}.Extract(src)

	values := rawValues(candidates, FieldValue)
	if assert.NotEmpty(t, values) {
		assert.Equal(t, "150,00", values[0], "paid amount caption must beat the gross total")
	}
	assert.Equal(t, []string{"04/05/2024"}, rawValues(candidates, FieldDate))
	for _, c := range candidates {
		assert.Equal(t, TierStructuralSelector, c.Tier)
	}

	assert.Empty(t, StructuralSelectorStrategy{}.Extract(&Source{Document: mustParse(driftedHTML)}))
}

func TestStructuralSelectorStrategy_IgnoresRowsWithoutTime(t *testing.T) {
	html := `<html><body>
<h4>Informações gerais da Nota</h4>
<table>
  <tr><td>65</td><td>1</td><td>123456</td><td>04/05/2024</td></tr>
  <tr><td>65</td><td>1</td><td>123456</td><td>05/05/2024 09:30:00</td></tr>
</table></body></html>`

	candidates := StructuralSelectorStrategy{}.Extract(&Source{Document: mustParse(html)})
	assert.Equal(t, []string{"05/05/2024"}, rawValues(candidates, FieldDate))
}

func TestKeywordHeuristicStrategy(t *testing.T) {
	candidates := KeywordHeuristicStrategy{}.Extract(&Source{Document: mustParse(driftedHTML)})

	assert.Equal(t, []string{"89,90"}, rawValues(candidates, FieldValue))
	assert.Equal(t, []string{"12/03/2024"}, rawValues(candidates, FieldDate))
	for _, c := range candidates {
		assert.Equal(t, TierKeywordHeuristic, c.Tier)
	}
}

func TestKeywordHeuristicStrategy_SkipsScripts(t *testing.T) {
	html := `<html><body><script>var total = "1,00";</script><span>Total</span><span>7,77</span></body></html>`
	candidates := KeywordHeuristicStrategy{}.Extract(&Source{Document: mustParse(html)})
	assert.Equal(t, []string{"7,77"}, rawValues(candidates, FieldValue))
}

func TestRawRegexFallbackStrategy(t *testing.T) {
	candidates := RawRegexFallbackStrategy{}.Extract(&Source{Document: mustParse(bareHTML)})

	assert.Equal(t, []string{"42,50"}, rawValues(candidates, FieldValue))
	assert.Equal(t, []string{"20240101101010"}, rawValues(candidates, FieldDate))
	assert.Equal(t, []string{"987654321"}, rawValues(candidates, FieldDocumentNumber))

	assert.Empty(t, KeywordHeuristicStrategy{}.Extract(&Source{Document: mustParse(bareHTML)}))
	assert.Empty(t, StructuralSelectorStrategy{}.Extract(&Source{Document: mustParse(bareHTML)}))
}

func TestHTMLStrategies_NoDocument(t *testing.T) {
	src := &Source{Link: "https://portal.example/?vNF=1,00"}
	assert.Nil(t, StructuralSelectorStrategy{}.Extract(src))
	assert.Nil(t, KeywordHeuristicStrategy{}.Extract(src))
	assert.Nil(t, RawRegexFallbackStrategy{}.Extract(src))
}
