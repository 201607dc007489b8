// cmd/server/main_test.go
package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valpere/ReceiptScrapexter/internal/config"
	"github.com/valpere/ReceiptScrapexter/internal/receipt"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg := config.Default()
	cfg.Audit = config.AuditConfig{
		Enabled: true,
		Driver:  config.AuditDriverSQLite,
		DSN:     filepath.Join(t.TempDir(), "audit.db"),
		Table:   "extractions",
	}

	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}
	t.Cleanup(a.close)
	return a
}

func TestAppEndpoints(t *testing.T) {
	a := newTestApp(t)
	handler := a.server.Handler()

	for _, path := range []string{"/live", "/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", path, rec.Code)
		}
	}

	body := `{"qrCodeLink":"https://nfce.fazenda.sp.gov.br/qrcode?vNF=150,00&dhEmi=20240504120000"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/receipts/extract", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"valor":"150,00"`) {
		t.Errorf("unexpected response: %s", rec.Body.String())
	}
}

func TestAppReloadAllowedHosts(t *testing.T) {
	a := newTestApp(t)
	link := receipt.ExtractionRequest{SourceLink: "https://portal.example/?vNF=1,00&dhEmi=20240101000000"}

	var rejected *receipt.RejectedLinkError
	if _, err := a.service.Lookup(context.Background(), link); !errors.As(err, &rejected) {
		t.Fatalf("expected portal.example to be rejected by default, got %v", err)
	}

	reloaded := config.Default()
	reloaded.Portal.AllowedHosts = []string{"portal.example"}
	a.applyReload(reloaded)

	result, err := a.service.Lookup(context.Background(), link)
	if err != nil {
		t.Fatalf("expected portal.example to be accepted after reload: %v", err)
	}
	if result.MonetaryValue != "1,00" {
		t.Errorf("expected value 1,00, got %q", result.MonetaryValue)
	}
}

func TestAppRejectsBadAuditConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Audit = config.AuditConfig{Enabled: true, Driver: "redis", DSN: "x"}
	if _, err := newApp(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unsupported audit driver")
	}
}

func TestRunFailsOnMissingConfig(t *testing.T) {
	err := run(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), "", false)
	if err == nil {
		t.Fatal("expected error for missing configuration file")
	}
}
