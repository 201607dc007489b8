// pkg/api/api_test.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientExtract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != ExtractPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req ExtractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.PreExtractedValor != "10,00" {
			t.Errorf("expected hinted value to be sent, got %q", req.PreExtractedValor)
		}
		json.NewEncoder(w).Encode(ExtractResponse{
			NumeroDocumento: "https://" + req.QRCodeLink,
			Valor:           "150,00",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL + "/")
	resp, err := client.Extract(context.Background(), ExtractRequest{
		QRCodeLink:        "portal.example/?vNF=150,00",
		PreExtractedValor: "10,00",
	})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if resp.NumeroDocumento != "https://portal.example/?vNF=150,00" {
		t.Errorf("unexpected document number %q", resp.NumeroDocumento)
	}
	if resp.Valor != "150,00" || resp.DataEmissao != "" {
		t.Errorf("unexpected fields: %+v", resp)
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"missing link", ExtractPath, http.StatusBadRequest, `{"error":"qrCodeLink is required"}`, 400, "qrCodeLink is required"},
		{"refused host", LookupPath, http.StatusOK, `{"error":"host not allowed: evil.example"}`, 200, "host not allowed: evil.example"},
		{"not json", ExtractPath, http.StatusBadGateway, `bad gateway`, 502, "bad gateway"},
		{"empty error body", ExtractPath, http.StatusInternalServerError, `{}`, 500, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tt.path {
					t.Errorf("expected path %s, got %s", tt.path, r.URL.Path)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, WithHTTPClient(server.Client()))
			var err error
			if tt.path == LookupPath {
				_, err = client.Lookup(context.Background(), ExtractRequest{QRCodeLink: "x"})
			} else {
				_, err = client.Extract(context.Background(), ExtractRequest{QRCodeLink: "x"})
			}

			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("expected *RequestError, got %v", err)
			}
			if reqErr.StatusCode != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, reqErr.StatusCode)
			}
			if reqErr.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, reqErr.Message)
			}
		})
	}
}

func TestClientMessageResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"nothing could be extracted"}`))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).Extract(context.Background(), ExtractRequest{QRCodeLink: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message == "" || resp.NumeroDocumento != "" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestClientContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewClient(server.URL).Extract(ctx, ExtractRequest{QRCodeLink: "x"}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
