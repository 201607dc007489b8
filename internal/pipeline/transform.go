// internal/pipeline/transform.go
package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	htmlTag       = regexp.MustCompile(`<[^>]*>`)
)

// TransformRule defines a single transformation rule
type TransformRule struct {
	Type string `yaml:"type" json:"type"`
}

// TransformList represents a list of transformation rules that can be applied sequentially
type TransformList []TransformRule

// ValueChain cleans a scraped text fragment and normalizes it as a monetary value.
var ValueChain = TransformList{
	{Type: "remove_html"},
	{Type: "normalize_spaces"},
	{Type: "normalize_value"},
}

// DateChain cleans a scraped text fragment and normalizes it as an emission date.
var DateChain = TransformList{
	{Type: "remove_html"},
	{Type: "normalize_spaces"},
	{Type: "normalize_date"},
}

// Apply applies all transformation rules in sequence to the input string
func (tl TransformList) Apply(ctx context.Context, input string) (string, error) {
	result := input
	for i, rule := range tl {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		var err error
		result, err = rule.Apply(result)
		if err != nil {
			return "", fmt.Errorf("transform rule %d failed: %w", i, err)
		}
	}
	return result, nil
}

// Apply applies a single transformation rule to the input string
func (tr TransformRule) Apply(input string) (string, error) {
	switch tr.Type {
	case "normalize_spaces":
		return whitespaceRun.ReplaceAllString(strings.TrimSpace(input), " "), nil

	case "remove_html":
		return htmlTag.ReplaceAllString(input, " "), nil

	case "normalize_value":
		value, ok := NormalizeValue(input)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrInvalidValue, input)
		}
		return value, nil

	case "normalize_date":
		date, ok := NormalizeDate(input)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrInvalidDate, input)
		}
		return date, nil

	default:
		return "", fmt.Errorf("unknown transform type: %s", tr.Type)
	}
}
