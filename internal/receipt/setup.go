// internal/receipt/setup.go
package receipt

import (
	"github.com/valpere/ReceiptScrapexter/internal/config"
	errs "github.com/valpere/ReceiptScrapexter/internal/errors"
	"github.com/valpere/ReceiptScrapexter/internal/scraper"
	"github.com/valpere/ReceiptScrapexter/internal/security"
)

// NewFromConfig builds the portal client, the extractor and the allow-listed
// service described by cfg. observer may be nil.
func NewFromConfig(cfg *config.Config, observer Observer) (*Extractor, *Service) {
	client := scraper.NewHTTPClient(scraper.ClientConfig{
		Timeout:      cfg.Fetch.Timeout,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		UserAgents:   cfg.Fetch.UserAgents,
		Headers:      cfg.Fetch.Headers,
		RateLimit:    cfg.Fetch.RateLimit,
		RateBurst:    cfg.Fetch.RateBurst,
	})

	guard := NewFetchGuard(errs.CircuitBreakerConfig{
		MaxFailures:  cfg.Fetch.CircuitBreaker.MaxFailures,
		ResetTimeout: cfg.Fetch.CircuitBreaker.ResetTimeout,
	})

	opts := []Option{
		WithFetchTimeout(cfg.Fetch.Timeout),
		WithCircuitBreaker(guard),
	}
	if observer != nil {
		opts = append(opts, WithObserver(observer))
	}
	extractor := NewExtractor(client, opts...)

	validator := security.NewSecurityValidator(&security.SecurityConfig{
		AllowedHosts: cfg.Portal.AllowedHosts,
	})
	return extractor, NewService(extractor, validator)
}
