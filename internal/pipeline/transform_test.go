// internal/pipeline/transform_test.go
package pipeline

import (
	"context"
	"errors"
	"testing"
)

func TestTransformRule_Apply(t *testing.T) {
	tests := []struct {
		name        string
		rule        TransformRule
		input       string
		expected    string
		expectError bool
	}{
		{
			name:     "normalize spaces",
			rule:     TransformRule{Type: "normalize_spaces"},
			input:    "R$\n\t 150,00",
			expected: "R$ 150,00",
		},
		{
			name:     "remove html",
			rule:     TransformRule{Type: "remove_html"},
			input:    "<strong>150,00</strong>",
			expected: " 150,00 ",
		},
		{
			name:     "normalize value",
			rule:     TransformRule{Type: "normalize_value"},
			input:    "R$ 1.234,50",
			expected: "1234,50",
		},
		{
			name:        "normalize value rejects text",
			rule:        TransformRule{Type: "normalize_value"},
			input:       "abc",
			expectError: true,
		},
		{
			name:     "normalize date",
			rule:     TransformRule{Type: "normalize_date"},
			input:    "2024-05-04T12:00:00-03:00",
			expected: "04/05/2024",
		},
		{
			name:        "unknown type",
			rule:        TransformRule{Type: "uppercase"},
			input:       "x",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.rule.Apply(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestValueAndDateChains(t *testing.T) {
	ctx := context.Background()

	value, err := ValueChain.Apply(ctx, "<span class=\"totalNumb\">\n  1.020,00 </span>")
	if err != nil {
		t.Fatalf("ValueChain error = %v", err)
	}
	if value != "1020,00" {
		t.Errorf("ValueChain = %q, want 1020,00", value)
	}

	date, err := DateChain.Apply(ctx, "  04/05/2024 15:34:43-03:00 ")
	if err != nil {
		t.Fatalf("DateChain error = %v", err)
	}
	if date != "04/05/2024" {
		t.Errorf("DateChain = %q, want 04/05/2024", date)
	}

	_, err = DateChain.Apply(ctx, "yesterday")
	if !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}

func TestTransformList_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ValueChain.Apply(ctx, "10,00"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
