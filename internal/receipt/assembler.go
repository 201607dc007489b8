// internal/receipt/assembler.go
package receipt

import (
	"context"
	"sort"

	"github.com/valpere/ReceiptScrapexter/internal/pipeline"
)

// Assembler picks, per field, the highest-tier candidate that normalizes.
// Within a tier the order the candidates were produced in is kept, so an
// invalid candidate never displaces a valid one.
type Assembler struct {
	chains map[Field]pipeline.TransformList
}

// NewAssembler creates an assembler using the value and date transform chains
func NewAssembler() *Assembler {
	return &Assembler{
		chains: map[Field]pipeline.TransformList{
			FieldValue: pipeline.ValueChain,
			FieldDate:  pipeline.DateChain,
		},
	}
}

// Pick returns the normalized winner for field and the tier it came from
func (a *Assembler) Pick(ctx context.Context, field Field, candidates []Candidate) (string, Tier, bool) {
	chain, ok := a.chains[field]
	if !ok {
		return "", TierNone, false
	}

	ranked := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Field == field {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Tier > ranked[j].Tier
	})

	for _, c := range ranked {
		normalized, err := chain.Apply(ctx, c.Raw)
		if err == nil && normalized != "" {
			return normalized, c.Tier, true
		}
	}
	return "", TierNone, false
}

// Assemble fills result from candidates and re-asserts the identifier.
// Document-number candidates are ignored: the link is the record key.
func (a *Assembler) Assemble(ctx context.Context, link string, candidates []Candidate, result *Result) {
	// Assembly must finish even when the caller has given up
	ctx = context.WithoutCancel(ctx)

	if result.Sources == nil {
		result.Sources = make(map[Field]Tier)
	}
	if value, tier, ok := a.Pick(ctx, FieldValue, candidates); ok {
		result.MonetaryValue = value
		result.Sources[FieldValue] = tier
	}
	if date, tier, ok := a.Pick(ctx, FieldDate, candidates); ok {
		result.EmissionDate = date
		result.Sources[FieldDate] = tier
	}

	result.DocumentIdentifier = link
}
