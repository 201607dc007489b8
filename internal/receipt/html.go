// internal/receipt/html.go
package receipt

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/ReceiptScrapexter/internal/scraper"
	"github.com/valpere/ReceiptScrapexter/internal/utils"
)

var (
	valueToken          = regexp.MustCompile(`\d{1,3}(?:\.\d{3})*,\d{2}|\d+,\d{2}`)
	dateToken           = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
	documentNumberToken = regexp.MustCompile(`(?:^|\D)(\d{6,9})(?:\D|$)`)
	anyTag              = regexp.MustCompile(`<[^>]*>`)
)

// Captions of the paid-amount label in the deployed receipt template,
// accent-folded and lower-cased.
var paidAmountCaptions = []string{
	"valor a pagar r$:",
	"valor a pagar r$",
	"valor pago r$:",
	"valor total r$:",
	"valor total r$",
}

// Selectors that hold the paid amount in the deployed receipt template
var paidAmountSelectors = []string{
	"span.totalNumb.txtMax",
	"#totalNota .txtMax",
}

const generalInfoHeader = "informacoes gerais da nota"

// StructuralSelectorStrategy looks the fields up where the known receipt
// template puts them. Exact but brittle against template changes.
type StructuralSelectorStrategy struct{}

func (StructuralSelectorStrategy) Name() string { return "structural_selector" }
func (StructuralSelectorStrategy) Tier() Tier   { return TierStructuralSelector }

func (s StructuralSelectorStrategy) Extract(src *Source) []Candidate {
	if src.Document == nil {
		return nil
	}
	doc := src.Document.Document()

	var candidates []Candidate
	if raw, ok := captionedAmount(doc); ok {
		candidates = append(candidates, s.candidate(FieldValue, raw))
	}
	for _, selector := range paidAmountSelectors {
		if raw, ok := src.Document.ExtractText(selector); ok {
			candidates = append(candidates, s.candidate(FieldValue, raw))
		}
	}
	if raw, ok := generalInfoDate(doc); ok {
		candidates = append(candidates, s.candidate(FieldDate, raw))
	}
	return candidates
}

func (s StructuralSelectorStrategy) candidate(field Field, raw string) Candidate {
	return Candidate{Field: field, Raw: raw, Tier: s.Tier(), Strategy: s.Name()}
}

// captionedAmount returns the text of the strong or span element right after
// a label reading one of the paid-amount captions. Captions are tried in
// order, so "valor a pagar" beats "valor total" wherever they appear.
func captionedAmount(doc *goquery.Document) (string, bool) {
	labels := doc.Find("label, strong, span, td, th")
	for _, caption := range paidAmountCaptions {
		var found string
		labels.EachWithBreak(func(_ int, label *goquery.Selection) bool {
			if utils.FoldAccents(scraper.ElementText(label)) != caption {
				return true
			}
			next := label.Next()
			if !next.Is("strong, span") {
				return true
			}
			found = scraper.ElementText(next)
			return found == ""
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

// generalInfoDate finds the "general note information" header and reads the
// date from the first following table row with exactly four cells whose last
// cell holds a date and time.
func generalInfoDate(doc *goquery.Document) (string, bool) {
	var found string
	doc.Find("h1, h2, h3, h4, h5, legend, th, strong, caption").EachWithBreak(func(_ int, header *goquery.Selection) bool {
		if !strings.Contains(utils.FoldAccents(scraper.ElementText(header)), generalInfoHeader) {
			return true
		}

		table := header.NextAllFiltered("table").First()
		if table.Length() == 0 {
			table = header.Closest("table")
		}
		if table.Length() == 0 {
			table = header.Parent().NextAllFiltered("table").First()
		}

		table.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
			cells := row.ChildrenFiltered("td")
			if cells.Length() != 4 {
				return true
			}
			last := scraper.ElementText(cells.Last())
			if date := dateToken.FindString(last); date != "" && strings.Contains(last, ":") {
				found = date
				return false
			}
			return true
		})
		return found == ""
	})
	return found, found != ""
}

// Keywords, accent-folded, that mark elements worth inspecting
var (
	valueKeywords = []string{"total", "valor", "r$"}
	dateKeywords  = []string{"data", "emissao"}
)

// KeywordHeuristicStrategy scans elements whose own text mentions a keyword
// and looks for a token in the element, its next sibling, then the rest of
// its siblings. It survives template drift that breaks the structural lookup.
type KeywordHeuristicStrategy struct{}

func (KeywordHeuristicStrategy) Name() string { return "keyword_heuristic" }
func (KeywordHeuristicStrategy) Tier() Tier   { return TierKeywordHeuristic }

func (s KeywordHeuristicStrategy) Extract(src *Source) []Candidate {
	if src.Document == nil {
		return nil
	}
	body := src.Document.Document().Find("body")
	if body.Length() == 0 {
		body = src.Document.Document().Selection
	}

	var candidates []Candidate
	if raw, ok := nearKeyword(body, valueKeywords, valueToken); ok {
		candidates = append(candidates, Candidate{Field: FieldValue, Raw: raw, Tier: s.Tier(), Strategy: s.Name()})
	}
	if raw, ok := nearKeyword(body, dateKeywords, dateToken); ok {
		candidates = append(candidates, Candidate{Field: FieldDate, Raw: raw, Tier: s.Tier(), Strategy: s.Name()})
	}
	return candidates
}

func nearKeyword(root *goquery.Selection, keywords []string, token *regexp.Regexp) (string, bool) {
	var found string
	root.Find("*").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if el.Is("script, style, noscript") {
			return true
		}
		own := scraper.OwnText(el)
		if own == "" || !containsAny(utils.FoldAccents(own), keywords) {
			return true
		}

		if m := token.FindString(own); m != "" {
			found = m
			return false
		}
		if m := token.FindString(scraper.ElementText(el.Next())); m != "" {
			found = m
			return false
		}
		el.Siblings().EachWithBreak(func(_ int, sibling *goquery.Selection) bool {
			if m := token.FindString(scraper.ElementText(sibling)); m != "" {
				found = m
				return false
			}
			return true
		})
		return found == ""
	})
	return found, found != ""
}

// RawRegexFallbackStrategy runs the link regex cascade over the whole fetched
// HTML with the tags blanked out. It also reports bare 6-9 digit runs as
// document-number candidates, which the assembler never uses.
type RawRegexFallbackStrategy struct{}

func (RawRegexFallbackStrategy) Name() string { return "raw_regex" }
func (RawRegexFallbackStrategy) Tier() Tier   { return TierRawRegex }

func (s RawRegexFallbackStrategy) Extract(src *Source) []Candidate {
	if src.Document == nil {
		return nil
	}
	text := utils.CollapseWhitespace(html.UnescapeString(anyTag.ReplaceAllString(src.Document.Content(), " ")))

	candidates := matchAll(valuePatterns, FieldValue, text, s.Tier(), s.Name())
	candidates = append(candidates, matchAll(datePatterns, FieldDate, text, s.Tier(), s.Name())...)
	if m := documentNumberToken.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, Candidate{Field: FieldDocumentNumber, Raw: m[1], Tier: s.Tier(), Strategy: s.Name()})
	}
	return candidates
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
