// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/valpere/ReceiptScrapexter/internal/config"
	"github.com/valpere/ReceiptScrapexter/internal/monitoring"
	"github.com/valpere/ReceiptScrapexter/internal/output"
	"github.com/valpere/ReceiptScrapexter/internal/receipt"
	"github.com/valpere/ReceiptScrapexter/internal/utils"
	"github.com/valpere/ReceiptScrapexter/pkg/api"
)

// Extractor runs the extraction pipeline. *receipt.Extractor satisfies it.
type Extractor interface {
	Extract(ctx context.Context, req receipt.ExtractionRequest) receipt.Result
}

// Lookuper runs the allow-listed extraction. *receipt.Service satisfies it.
type Lookuper interface {
	Lookup(ctx context.Context, req receipt.ExtractionRequest) (receipt.Result, error)
}

// Options wires the server's dependencies. Metrics, Health and Auditor are
// optional.
type Options struct {
	Config      config.ServerConfig
	MetricsPath string
	Extractor   Extractor
	Lookup      Lookuper
	Metrics     *monitoring.MetricsManager
	Health      *monitoring.HealthManager
	Auditor     *output.Auditor
}

// Server serves the receipt endpoints
type Server struct {
	config     config.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	extractor  Extractor
	lookup     Lookuper
	metrics    *monitoring.MetricsManager
	health     *monitoring.HealthManager
	auditor    *output.Auditor
	cors       *corsPolicy
	logger     utils.Logger
}

// New creates a server and registers its routes
func New(opts Options) *Server {
	s := &Server{
		config:    opts.Config,
		router:    mux.NewRouter(),
		extractor: opts.Extractor,
		lookup:    opts.Lookup,
		metrics:   opts.Metrics,
		health:    opts.Health,
		auditor:   opts.Auditor,
		cors:      newCORSPolicy(opts.Config.AllowedOrigins),
		logger:    utils.NewComponentLogger("http-server"),
	}
	s.setupRoutes(opts.MetricsPath)

	s.httpServer = &http.Server{
		Addr:              opts.Config.Address,
		Handler:           s.router,
		ReadTimeout:       opts.Config.ReadTimeout,
		ReadHeaderTimeout: opts.Config.ReadTimeout,
		WriteTimeout:      opts.Config.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) setupRoutes(metricsPath string) {
	s.router.Use(requestIDMiddleware, s.observeMiddleware, s.cors.middleware)

	// Full paths on the root router so a wrong method answers 405, not 404.
	s.router.HandleFunc(api.ExtractPath, s.handleExtract).Methods(http.MethodPost, http.MethodOptions)
	if s.lookup != nil {
		s.router.HandleFunc(api.LookupPath, s.handleLookup).Methods(http.MethodPost, http.MethodOptions)
	}

	if s.health != nil {
		s.router.HandleFunc("/health", s.health.HealthHandler()).Methods(http.MethodGet)
		s.router.HandleFunc("/ready", s.health.ReadinessHandler()).Methods(http.MethodGet)
		s.router.HandleFunc("/live", s.health.LivenessHandler()).Methods(http.MethodGet)
	}
	if s.metrics != nil && metricsPath != "" {
		s.router.Handle(metricsPath, s.metrics.MetricsHandler()).Methods(http.MethodGet)
	}
}

// Handler returns the routed handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetAllowedOrigins replaces the CORS origin list, e.g. after a config reload
func (s *Server) SetAllowedOrigins(origins []string) {
	s.cors.set(origins)
}

// ListenAndServe serves until Shutdown is called
func (s *Server) ListenAndServe() error {
	s.logger.Infof("listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func toRequest(req api.ExtractRequest) receipt.ExtractionRequest {
	return receipt.ExtractionRequest{
		SourceLink:  req.QRCodeLink,
		HintedValue: req.PreExtractedValor,
		HintedDate:  req.PreExtractedData,
	}
}

func toResponse(result receipt.Result) api.ExtractResponse {
	return api.ExtractResponse{
		NumeroDocumento: result.DocumentIdentifier,
		Valor:           result.MonetaryValue,
		DataEmissao:     result.EmissionDate,
	}
}
