// pkg/api/types.go
package api

// Endpoint paths served by the receipt service
const (
	ExtractPath = "/api/v1/receipts/extract"
	LookupPath  = "/api/v1/receipts/lookup"
)

// ExtractRequest is the body posted to the extract and lookup endpoints.
// The pre-extracted fields seed the result and are only replaced by
// better sources.
type ExtractRequest struct {
	QRCodeLink        string `json:"qrCodeLink"`
	PreExtractedValor string `json:"preExtractedValor,omitempty"`
	PreExtractedData  string `json:"preExtractedData,omitempty"`
}

// ExtractResponse is returned with HTTP 200. NumeroDocumento is the
// normalized link; Valor uses a decimal comma and DataEmissao is DD/MM/YYYY.
// Message is set only when nothing at all could be extracted.
type ExtractResponse struct {
	NumeroDocumento string `json:"numeroDocumento,omitempty"`
	Valor           string `json:"valor,omitempty"`
	DataEmissao     string `json:"dataEmissao,omitempty"`
	Message         string `json:"message,omitempty"`
}

// ErrorResponse is returned for a missing link (HTTP 400) and for links the
// lookup endpoint refuses (HTTP 200).
type ErrorResponse struct {
	Error string `json:"error"`
}
