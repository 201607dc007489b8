// internal/scraper/client.go
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/valpere/ReceiptScrapexter/internal/utils"
)

// ErrUnsupportedContent is returned when the portal answers with a body that
// is not an HTML or text document.
var ErrUnsupportedContent = errors.New("unsupported content type")

// HTTPClient performs the single bounded GET against a receipt portal.
type HTTPClient struct {
	httpClient   *http.Client
	headers      *HeaderRotator
	limiter      *utils.HostRateLimiter
	maxBodyBytes int64
	logger       utils.Logger
}

// ClientConfig defines configuration options for the HTTP client
type ClientConfig struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgents   []string
	Headers      map[string]string
	RateLimit    float64 // requests per second, per host
	RateBurst    int
	Transport    http.RoundTripper
}

// Page is a fetched and charset-decoded portal document.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        string
	Duration    time.Duration
}

// NewHTTPClient creates a new HTTP client with the specified configuration
func NewHTTPClient(config ClientConfig) *HTTPClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxBodyBytes == 0 {
		config.MaxBodyBytes = 5 << 20
	}
	if config.RateBurst == 0 {
		config.RateBurst = 10
	}
	if config.Transport == nil {
		config.Transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}

	return &HTTPClient{
		httpClient: &http.Client{
			// Backstop only; callers bound the request through the context.
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		headers:      NewHeaderRotator(config.UserAgents, config.Headers),
		limiter:      utils.NewHostRateLimiter(config.RateLimit, config.RateBurst),
		maxBodyBytes: config.MaxBodyBytes,
		logger:       utils.NewComponentLogger("http-client"),
	}
}

// Fetch issues exactly one GET to targetURL. It returns when the body has
// been read or ctx is done, whichever happens first. Non-2xx answers are
// reported as *HTTPError.
func (c *HTTPClient) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid URL: missing host in %q", targetURL)
	}

	if err := c.limiter.Wait(ctx, u.Hostname()); err != nil {
		return nil, fmt.Errorf("rate limiter wait aborted: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.headers.Apply(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        targetURL,
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if !utils.IsTextContent(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, c.maxBodyBytes), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to detect charset: %w", err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	page := &Page{
		URL:         targetURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        string(body),
		Duration:    time.Since(start),
	}
	c.logger.WithFields(map[string]interface{}{
		"host":     u.Hostname(),
		"status":   resp.StatusCode,
		"bytes":    len(body),
		"duration": page.Duration.String(),
	}).Debug("portal page fetched")

	return page, nil
}

// SetRateLimit updates the per-host rate limiting configuration
func (c *HTTPClient) SetRateLimit(requestsPerSecond float64, burst int) {
	c.limiter.SetLimit(requestsPerSecond, burst)
}

// HTTPError represents a non-2xx portal response
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (URL: %s)", e.StatusCode, e.Status, e.URL)
}

// IsServerError checks if an error is a 5xx or 429 portal response, the
// class of failure that counts against a host's circuit breaker.
func IsServerError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}
