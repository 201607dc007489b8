// internal/receipt/types.go
package receipt

import (
	"time"
)

// ExtractionRequest is one scanned QR payload plus optional values the
// caller already parsed elsewhere.
type ExtractionRequest struct {
	SourceLink  string `json:"source_link"`
	HintedValue string `json:"hinted_value,omitempty"`
	HintedDate  string `json:"hinted_date,omitempty"`
}

// Result is the best-effort record produced for a request. DocumentIdentifier
// is always the normalized link; MonetaryValue and EmissionDate are empty when
// no valid candidate was found.
type Result struct {
	DocumentIdentifier string         `json:"document_identifier"`
	MonetaryValue      string         `json:"monetary_value,omitempty"`
	EmissionDate       string         `json:"emission_date,omitempty"`
	Sources            map[Field]Tier `json:"sources,omitempty"`
	Stages             []Stage        `json:"stages"`
	Fetch              FetchOutcome   `json:"fetch"`
	FetchError         error          `json:"-"`
	Duration           time.Duration  `json:"duration"`
}

// HasValue reports whether a monetary value was extracted
func (r Result) HasValue() bool {
	return r.MonetaryValue != ""
}

// HasDate reports whether an emission date was extracted
func (r Result) HasDate() bool {
	return r.EmissionDate != ""
}

// Outcome summarizes how much of the record was recovered
func (r Result) Outcome() string {
	switch {
	case r.HasValue() && r.HasDate():
		return "complete"
	case r.HasValue() || r.HasDate():
		return "partial"
	default:
		return "identifier_only"
	}
}

// Field names a piece of the receipt record
type Field string

const (
	FieldValue          Field = "value"
	FieldDate           Field = "date"
	FieldDocumentNumber Field = "document_number"
)

// Tier ranks how much a candidate is trusted. Higher wins.
type Tier int

const (
	TierNone Tier = iota
	TierRawRegex
	TierHint
	TierLinkPattern
	TierKeywordHeuristic
	TierStructuralSelector
	TierURLParameter
)

// String returns the tier name used in logs and metrics
func (t Tier) String() string {
	switch t {
	case TierRawRegex:
		return "raw_regex"
	case TierHint:
		return "hint"
	case TierLinkPattern:
		return "link_pattern"
	case TierKeywordHeuristic:
		return "keyword_heuristic"
	case TierStructuralSelector:
		return "structural_selector"
	case TierURLParameter:
		return "url_parameter"
	default:
		return "none"
	}
}

// MarshalText lets tiers appear by name in JSON
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Candidate is an unnormalized value found by one strategy
type Candidate struct {
	Field    Field
	Raw      string
	Tier     Tier
	Strategy string
}

// Stage marks progress through one extraction
type Stage string

const (
	StageNormalized    Stage = "normalized"
	StageLinkExtracted Stage = "link_extracted"
	StageURLExtracted  Stage = "url_extracted"
	StageFetching      Stage = "fetching"
	StageSkipped       Stage = "skipped"
	StageHTMLExtracted Stage = "html_extracted"
	StageAssembled     Stage = "assembled"
)

// FetchOutcome describes what happened to the portal request
type FetchOutcome string

const (
	FetchOK          FetchOutcome = "ok"
	FetchSkipped     FetchOutcome = "skipped"
	FetchFailed      FetchOutcome = "error"
	FetchTimeout     FetchOutcome = "timeout"
	FetchHTTPError   FetchOutcome = "http_error"
	FetchCircuitOpen FetchOutcome = "circuit_open"
)
