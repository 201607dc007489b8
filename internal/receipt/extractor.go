// internal/receipt/extractor.go
package receipt

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "github.com/valpere/ReceiptScrapexter/internal/errors"
	"github.com/valpere/ReceiptScrapexter/internal/scraper"
	"github.com/valpere/ReceiptScrapexter/internal/utils"
)

// DefaultFetchTimeout bounds the single portal request
const DefaultFetchTimeout = 30 * time.Second

// Fetcher retrieves one portal page. Implementations must honour ctx.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*scraper.Page, error)
}

// Observer receives extraction telemetry. monitoring.MetricsManager
// satisfies it.
type Observer interface {
	RecordExtraction(outcome string, duration time.Duration)
	RecordFieldSource(field, tier string)
	RecordFetch(outcome string, duration time.Duration)
	SetOpenCircuits(count int)
}

type nopObserver struct{}

func (nopObserver) RecordExtraction(string, time.Duration) {}
func (nopObserver) RecordFieldSource(string, string)       {}
func (nopObserver) RecordFetch(string, time.Duration)      {}
func (nopObserver) SetOpenCircuits(int)                    {}

// Extractor runs the extraction pipeline. It keeps no per-request state and
// is safe for concurrent use.
type Extractor struct {
	fetcher        Fetcher
	guard          *errs.Service
	assembler      *Assembler
	linkStrategies []Strategy
	htmlStrategies []Strategy
	fetchTimeout   time.Duration
	observer       Observer
	logger         utils.Logger
}

// Option customizes an Extractor
type Option func(*Extractor)

// WithFetchTimeout sets the hard limit on the portal request
func WithFetchTimeout(timeout time.Duration) Option {
	return func(e *Extractor) {
		if timeout > 0 {
			e.fetchTimeout = timeout
		}
	}
}

// WithCircuitBreaker replaces the per-host breaker guarding the fetch
func WithCircuitBreaker(guard *errs.Service) Option {
	return func(e *Extractor) {
		if guard != nil {
			e.guard = guard
		}
	}
}

// WithObserver attaches a telemetry sink
func WithObserver(observer Observer) Option {
	return func(e *Extractor) {
		if observer != nil {
			e.observer = observer
		}
	}
}

// NewExtractor creates an extractor around fetcher
func NewExtractor(fetcher Fetcher, opts ...Option) *Extractor {
	e := &Extractor{
		fetcher:   fetcher,
		assembler: NewAssembler(),
		linkStrategies: []Strategy{
			LinkPatternStrategy{},
			URLParameterStrategy{},
		},
		htmlStrategies: []Strategy{
			StructuralSelectorStrategy{},
			KeywordHeuristicStrategy{},
			RawRegexFallbackStrategy{},
		},
		fetchTimeout: DefaultFetchTimeout,
		observer:     nopObserver{},
		logger:       utils.NewComponentLogger("receipt-extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.guard == nil {
		e.guard = NewFetchGuard(errs.CircuitBreakerConfig{})
	}
	return e
}

// NewFetchGuard builds the per-host breaker service used around fetches.
// Only transport failures and 5xx/429 answers count against a host.
func NewFetchGuard(config errs.CircuitBreakerConfig) *errs.Service {
	return errs.NewService(
		errs.WithCircuitBreaker(config),
		errs.WithFailureClassifier(countsAgainstPortal),
	)
}

func countsAgainstPortal(err error) bool {
	var httpErr *scraper.HTTPError
	if errors.As(err, &httpErr) {
		return scraper.IsServerError(err)
	}
	return !errors.Is(err, scraper.ErrUnsupportedContent)
}

// Extract runs every stage and always returns a result. The identifier is
// the normalized link no matter what the stages found.
func (e *Extractor) Extract(ctx context.Context, req ExtractionRequest) Result {
	start := time.Now()
	link := NormalizeLink(req.SourceLink)

	result := Result{
		DocumentIdentifier: link,
		Sources:            make(map[Field]Tier),
		Stages:             []Stage{StageNormalized},
		Fetch:              FetchSkipped,
	}
	logger := e.logger.WithField("link", link)

	src := &Source{Link: link, URL: parseLink(link)}
	if src.URL == nil {
		logger.Debug("link is not an absolute URL, query parameters unavailable")
	}

	candidates := hintCandidates(req)
	candidates = append(candidates, e.linkStrategies[0].Extract(src)...)
	result.Stages = append(result.Stages, StageLinkExtracted)
	for _, strategy := range e.linkStrategies[1:] {
		candidates = append(candidates, strategy.Extract(src)...)
	}
	result.Stages = append(result.Stages, StageURLExtracted)

	switch {
	case e.resolvedByParameters(ctx, candidates):
		logger.Debug("value and date read from query parameters, skipping fetch")
		result.Stages = append(result.Stages, StageSkipped, StageSkipped)
	case src.URL == nil:
		result.Stages = append(result.Stages, StageSkipped, StageSkipped)
	default:
		result.Stages = append(result.Stages, StageFetching)
		page, outcome, err := e.fetch(ctx, src)
		result.Fetch = outcome
		result.FetchError = err
		if err != nil {
			logger.WithField("outcome", string(outcome)).Warnf("portal fetch failed, continuing with link data: %v", err)
		}

		if page != nil {
			doc, parseErr := scraper.NewHTMLParser(page.Body)
			if parseErr != nil {
				logger.Warnf("portal page unreadable: %v", parseErr)
				result.Stages = append(result.Stages, StageSkipped)
			} else {
				src.Document = doc
				for _, strategy := range e.htmlStrategies {
					candidates = append(candidates, strategy.Extract(src)...)
				}
				result.Stages = append(result.Stages, StageHTMLExtracted)
			}
		} else {
			result.Stages = append(result.Stages, StageSkipped)
		}
	}

	result.Stages = append(result.Stages, StageNormalized)
	e.assembler.Assemble(ctx, link, candidates, &result)
	result.Stages = append(result.Stages, StageAssembled)

	// The link is the record key; nothing found above may replace it.
	result.DocumentIdentifier = link
	result.Duration = time.Since(start)

	e.report(logger, result)
	return result
}

// OpenCircuits lists portal hosts currently skipped by the breaker
func (e *Extractor) OpenCircuits() []string {
	return e.guard.OpenCircuits()
}

// SetRateLimit passes new per-host limits to the fetcher if it supports them
func (e *Extractor) SetRateLimit(requestsPerSecond float64, burst int) {
	if limited, ok := e.fetcher.(interface{ SetRateLimit(float64, int) }); ok {
		limited.SetRateLimit(requestsPerSecond, burst)
	}
}

func hintCandidates(req ExtractionRequest) []Candidate {
	var candidates []Candidate
	if req.HintedValue != "" {
		candidates = append(candidates, Candidate{Field: FieldValue, Raw: req.HintedValue, Tier: TierHint, Strategy: "hint"})
	}
	if req.HintedDate != "" {
		candidates = append(candidates, Candidate{Field: FieldDate, Raw: req.HintedDate, Tier: TierHint, Strategy: "hint"})
	}
	return candidates
}

// resolvedByParameters reports whether both fields already have a valid
// candidate from the top tier, in which case the page cannot change anything.
func (e *Extractor) resolvedByParameters(ctx context.Context, candidates []Candidate) bool {
	ctx = context.WithoutCancel(ctx)
	_, valueTier, valueOK := e.assembler.Pick(ctx, FieldValue, candidates)
	_, dateTier, dateOK := e.assembler.Pick(ctx, FieldDate, candidates)
	return valueOK && dateOK && valueTier == TierURLParameter && dateTier == TierURLParameter
}

// fetch issues the single portal request behind the host's breaker. It
// returns within the fetch timeout even if the fetcher ignores ctx.
func (e *Extractor) fetch(ctx context.Context, src *Source) (*scraper.Page, FetchOutcome, error) {
	start := time.Now()
	host := src.URL.Hostname()

	var page *scraper.Page
	err := e.guard.Execute(ctx, host, func(ctx context.Context) error {
		fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
		defer cancel()

		type fetchResult struct {
			page *scraper.Page
			err  error
		}
		done := make(chan fetchResult, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fetchResult{err: fmt.Errorf("portal fetch panicked: %v", r)}
				}
			}()
			p, err := e.fetcher.Fetch(fetchCtx, src.Link)
			done <- fetchResult{page: p, err: err}
		}()

		select {
		case r := <-done:
			if r.err != nil {
				return r.err
			}
			if r.page == nil {
				return fmt.Errorf("portal returned no page")
			}
			page = r.page
			return nil
		case <-fetchCtx.Done():
			return fmt.Errorf("portal fetch abandoned: %w", fetchCtx.Err())
		}
	})

	outcome := classifyFetch(err)
	e.observer.RecordFetch(string(outcome), time.Since(start))
	e.observer.SetOpenCircuits(len(e.guard.OpenCircuits()))
	if err != nil {
		return nil, outcome, err
	}
	return page, outcome, nil
}

func classifyFetch(err error) FetchOutcome {
	var httpErr *scraper.HTTPError
	switch {
	case err == nil:
		return FetchOK
	case errors.Is(err, errs.ErrCircuitOpen):
		return FetchCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		return FetchTimeout
	case errors.As(err, &httpErr):
		return FetchHTTPError
	default:
		return FetchFailed
	}
}

func (e *Extractor) report(logger utils.Logger, result Result) {
	fields := map[string]interface{}{
		"outcome":  result.Outcome(),
		"fetch":    string(result.Fetch),
		"duration": utils.FormatDuration(result.Duration),
	}
	for field, tier := range result.Sources {
		fields[string(field)+"_source"] = tier.String()
		e.observer.RecordFieldSource(string(field), tier.String())
	}
	e.observer.RecordExtraction(result.Outcome(), result.Duration)
	logger.WithFields(fields).Info("receipt extracted")
}
