// internal/server/server_test.go
package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/ReceiptScrapexter/internal/config"
	"github.com/valpere/ReceiptScrapexter/internal/monitoring"
	"github.com/valpere/ReceiptScrapexter/internal/output"
	"github.com/valpere/ReceiptScrapexter/internal/receipt"
	"github.com/valpere/ReceiptScrapexter/internal/scraper"
	"github.com/valpere/ReceiptScrapexter/pkg/api"
)

const portalPage = `<html><body>
<label>Valor a pagar R$:</label><span class="totalNumb txtMax">87,45</span>
<p>Emissão: 02/03/2024 10:11:12</p>
</body></html>`

type stubFetcher struct {
	body  string
	err   error
	calls atomic.Int32
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (*scraper.Page, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &scraper.Page{URL: url, StatusCode: http.StatusOK, ContentType: "text/html", Body: f.body}, nil
}

type panickingExtractor struct{}

func (panickingExtractor) Extract(context.Context, receipt.ExtractionRequest) receipt.Result {
	panic("boom")
}

type testEnv struct {
	server  *Server
	fetcher *stubFetcher
	metrics *monitoring.MetricsManager
	audit   *output.SQLRecorder
}

func newTestEnv(t *testing.T, fetcher *stubFetcher, origins ...string) *testEnv {
	t.Helper()
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	metrics := monitoring.NewMetricsManager(monitoring.MetricsConfig{})
	extractor := receipt.NewExtractor(fetcher,
		receipt.WithFetchTimeout(time.Second),
		receipt.WithObserver(metrics),
	)
	service := receipt.NewService(extractor, nil)
	service.SetAllowedHosts([]string{"portal.example"})

	recorder, err := output.NewSQLRecorder(context.Background(), output.SQLOptions{
		Driver: "sqlite3",
		DSN:    filepath.Join(t.TempDir(), "audit.db"),
		Table:  "extractions",
	})
	require.NoError(t, err)
	t.Cleanup(func() { recorder.Close() })

	srv := New(Options{
		Config:      config.ServerConfig{Address: ":0", AllowedOrigins: origins},
		MetricsPath: "/metrics",
		Extractor:   extractor,
		Lookup:      service,
		Metrics:     metrics,
		Health:      monitoring.NewHealthManager(monitoring.HealthConfig{Version: "test"}),
		Auditor:     output.NewAuditor(recorder, metrics, time.Second),
	})
	return &testEnv{server: srv, fetcher: fetcher, metrics: metrics, audit: recorder}
}

func (e *testEnv) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestExtractPartialSuccessFromLink(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{err: errors.New("unreachable")})

	rec := env.post(t, api.ExtractPath, `{"qrCodeLink":"https://portal.example/?vNF=150,00&dhEmi=20240504120000"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"numeroDocumento": "https://portal.example/?vNF=150,00&dhEmi=20240504120000",
		"valor": "150,00",
		"dataEmissao": "04/05/2024"
	}`, rec.Body.String())
	assert.Equal(t, int32(0), env.fetcher.calls.Load())
}

func TestExtractNoData(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{err: errors.New("no such host")})

	rec := env.post(t, api.ExtractPath, `{"qrCodeLink":"not-a-url-at-all"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"numeroDocumento":"https://not-a-url-at-all"}`, rec.Body.String())
}

func TestExtractFromPortalPage(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{body: portalPage})

	rec := env.post(t, api.ExtractPath, `{"qrCodeLink":" portal.example/qrcode?p=123 ","preExtractedValor":"1,00"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"numeroDocumento": "https://portal.example/qrcode?p=123",
		"valor": "87,45",
		"dataEmissao": "02/03/2024"
	}`, rec.Body.String())
	assert.Equal(t, int32(1), env.fetcher.calls.Load())
}

func TestExtractMissingLink(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})

	for _, body := range []string{`{}`, `{"qrCodeLink":"   "}`, `not json`, ``} {
		rec := env.post(t, api.ExtractPath, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		assert.Contains(t, rec.Body.String(), `"error"`)
	}
	assert.Equal(t, int32(0), env.fetcher.calls.Load())
}

func TestExtractRecoversPanics(t *testing.T) {
	srv := New(Options{
		Config:    config.ServerConfig{AllowedOrigins: []string{"*"}},
		Extractor: panickingExtractor{},
	})

	req := httptest.NewRequest(http.MethodPost, api.ExtractPath, strings.NewReader(`{"qrCodeLink":"x"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"`+msgNothingParsed+`"}`, rec.Body.String())
}

func TestPreflight(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})

	for _, path := range []string{api.ExtractPath, api.LookupPath} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "https://app.example")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code, path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	}

	rec := env.post(t, api.ExtractPath, `{"qrCodeLink":"https://portal.example/?vNF=1,00&dhEmi=20240101000000"}`)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSExplicitOrigins(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{}, "https://app.example")

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, api.ExtractPath, nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, "https://app.example", preflight("https://app.example").Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, preflight("https://other.example").Header().Get("Access-Control-Allow-Origin"))

	env.server.SetAllowedOrigins([]string{"https://other.example"})
	assert.Equal(t, "https://other.example", preflight("https://other.example").Header().Get("Access-Control-Allow-Origin"))
}

func TestLookupRejectsUnknownHost(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{body: portalPage})

	rec := env.post(t, api.LookupPath, `{"qrCodeLink":"https://evil.example/?vNF=10,00"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
	assert.NotContains(t, rec.Body.String(), "numeroDocumento")
	assert.Equal(t, int32(0), env.fetcher.calls.Load())
}

func TestLookupAllowedHost(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{body: portalPage})

	rec := env.post(t, api.LookupPath, `{"qrCodeLink":"https://nfce.portal.example/qrcode"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"numeroDocumento": "https://nfce.portal.example/qrcode",
		"valor": "87,45",
		"dataEmissao": "02/03/2024"
	}`, rec.Body.String())
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{err: errors.New("down")})
	env.post(t, api.ExtractPath, `{"qrCodeLink":"https://portal.example/x"}`)

	for _, path := range []string{"/health", "/ready", "/live"} {
		rec := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "receiptscrapexter_http_requests_total")
	assert.Contains(t, body, `route="/api/v1/receipts/extract"`)
	assert.Contains(t, body, "receiptscrapexter_extraction_total")
	assert.Contains(t, body, "receiptscrapexter_audit_records_total")
}

func TestExtractIsAudited(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})

	env.post(t, api.ExtractPath, `{"qrCodeLink":"https://portal.example/?vNF=150,00&dhEmi=20240504120000"}`)
	env.post(t, api.ExtractPath, `{}`)

	n, err := env.audit.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClientAgainstServer(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{body: portalPage})
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	client := api.NewClient(ts.URL)

	resp, err := client.Extract(context.Background(), api.ExtractRequest{QRCodeLink: "https://portal.example/qr"})
	require.NoError(t, err)
	assert.Equal(t, "87,45", resp.Valor)

	_, err = client.Lookup(context.Background(), api.ExtractRequest{QRCodeLink: "https://evil.example/qr"})
	var reqErr *api.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusOK, reqErr.StatusCode)

	_, err = client.Extract(context.Background(), api.ExtractRequest{})
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{})
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/receipts/unknown", strings.NewReader("{}")))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, api.ExtractPath, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, api.LookupPath, strings.NewReader("{}")))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
