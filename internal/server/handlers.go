// internal/server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/valpere/ReceiptScrapexter/internal/receipt"
	"github.com/valpere/ReceiptScrapexter/pkg/api"
)

const (
	maxRequestBytes = 64 << 10

	msgMissingLink   = "qrCodeLink is required"
	msgInvalidBody   = "request body must be a JSON object"
	msgNothingParsed = "could not extract any data from the QR code link"
)

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	result, ok := s.runSafely(r, func() receipt.Result {
		return s.extractor.Extract(r.Context(), toRequest(req))
	})
	if !ok {
		writeJSON(w, http.StatusOK, api.ExtractResponse{Message: msgNothingParsed})
		return
	}

	writeJSON(w, http.StatusOK, toResponse(result))
	s.auditor.Record(r.Context(), result)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	var rejected *receipt.RejectedLinkError
	var lookupErr error
	result, ok := s.runSafely(r, func() receipt.Result {
		res, err := s.lookup.Lookup(r.Context(), toRequest(req))
		lookupErr = err
		return res
	})
	switch {
	case !ok:
		writeJSON(w, http.StatusOK, api.ExtractResponse{Message: msgNothingParsed})
		return
	case errors.As(lookupErr, &rejected):
		writeJSON(w, http.StatusOK, api.ErrorResponse{Error: rejected.Reason})
		return
	case lookupErr != nil:
		writeJSON(w, http.StatusOK, api.ErrorResponse{Error: lookupErr.Error()})
		return
	}

	writeJSON(w, http.StatusOK, toResponse(result))
	s.auditor.Record(r.Context(), result)
}

// decodeRequest reads the body and answers 400 itself when the link is missing
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (api.ExtractRequest, bool) {
	var req api.ExtractRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := decoder.Decode(&req); err != nil {
		s.logger.WithField("request_id", RequestID(r.Context())).Debugf("bad request body: %v", err)
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: msgInvalidBody})
		return req, false
	}
	if strings.TrimSpace(req.QRCodeLink) == "" {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: msgMissingLink})
		return req, false
	}
	return req, true
}

// runSafely runs fn and turns a panic into ok=false
func (s *Server) runSafely(r *http.Request, fn func() receipt.Result) (result receipt.Result, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.WithFields(map[string]interface{}{
				"request_id": RequestID(r.Context()),
				"panic":      p,
			}).Error("extraction panicked")
			ok = false
		}
	}()
	return fn(), true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
