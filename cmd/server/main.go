// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valpere/ReceiptScrapexter/internal/config"
	"github.com/valpere/ReceiptScrapexter/internal/monitoring"
	"github.com/valpere/ReceiptScrapexter/internal/output"
	"github.com/valpere/ReceiptScrapexter/internal/receipt"
	"github.com/valpere/ReceiptScrapexter/internal/server"
	"github.com/valpere/ReceiptScrapexter/internal/utils"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var logger = utils.NewComponentLogger("main")

// app holds everything the service needs at runtime
type app struct {
	cfg     *config.Config
	server  *server.Server
	service *receipt.Service
	health  *monitoring.HealthManager
	auditor *output.Auditor
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	var metrics *monitoring.MetricsManager
	var observer receipt.Observer
	if cfg.Metrics.IsEnabled() {
		metrics = monitoring.NewMetricsManager(monitoring.MetricsConfig{
			Namespace:       cfg.Metrics.Namespace,
			EnableGoMetrics: true,
		})
		observer = metrics
	}

	extractor, service := receipt.NewFromConfig(cfg, observer)

	health := monitoring.NewHealthManager(monitoring.HealthConfig{
		DetailedResponse: true,
		Version:          version,
	})
	health.RegisterCheck(monitoring.CircuitBreakerHealthCheck(extractor.OpenCircuits))
	health.RegisterCheck(monitoring.GoroutineHealthCheck(10000))

	var auditor *output.Auditor
	if cfg.Audit.Enabled {
		recorder, err := output.NewRecorder(ctx, cfg.Audit)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit sink: %w", err)
		}
		var auditObserver output.AuditObserver
		if metrics != nil {
			auditObserver = metrics
		}
		auditor = output.NewAuditor(recorder, auditObserver, cfg.Audit.Timeout)
		health.RegisterCheck(monitoring.DatabaseHealthCheck("audit_"+recorder.Driver(), auditor.Ping))
	}

	srv := server.New(server.Options{
		Config:      cfg.Server,
		MetricsPath: cfg.Metrics.Path,
		Extractor:   extractor,
		Lookup:      service,
		Metrics:     metrics,
		Health:      health,
		Auditor:     auditor,
	})

	return &app{
		cfg:     cfg,
		server:  srv,
		service: service,
		health:  health,
		auditor: auditor,
	}, nil
}

// applyReload pushes the reloadable settings into the running service
func (a *app) applyReload(cfg *config.Config) {
	utils.SetLevel(utils.ParseLogLevel(cfg.LogLevel))
	a.service.SetAllowedHosts(cfg.Portal.AllowedHosts)
	a.service.Extractor().SetRateLimit(cfg.Fetch.RateLimit, cfg.Fetch.RateBurst)
	a.server.SetAllowedOrigins(cfg.Server.AllowedOrigins)
	logger.WithFields(map[string]interface{}{
		"log_level":     cfg.LogLevel,
		"allowed_hosts": len(cfg.Portal.AllowedHosts),
		"rate_limit":    cfg.Fetch.RateLimit,
	}).Info("configuration reloaded")
}

func (a *app) close() {
	if err := a.auditor.Close(); err != nil {
		logger.Warnf("failed to close audit sink: %v", err)
	}
}

func run(ctx context.Context, configPath, envFile string, watch bool) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	utils.SetOutput(os.Stderr, cfg.LogFormat == "json")
	utils.SetLevel(utils.ParseLogLevel(cfg.LogLevel))

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if watch && configPath != "" {
		watcher, err := config.NewConfigWatcher(configPath)
		if err != nil {
			logger.Warnf("config hot reload disabled: %v", err)
		} else {
			defer watcher.Close()
			watcher.OnChange(a.applyReload)
		}
	}

	a.health.Start(ctx)
	defer a.health.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	a.health.SetReady(false)
	if err := a.server.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	envFile := flag.String("env-file", ".env", "optional .env file loaded before the configuration")
	watch := flag.Bool("watch", true, "reload the configuration file when it changes")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("receiptscrapexter-server %s (built %s, commit %s)\n", version, buildTime, gitCommit)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := run(ctx, *configPath, *envFile, *watch); err != nil {
		logger.Errorf("server stopped: %v", err)
		os.Exit(1)
	}
	logger.Infof("server stopped after %s", utils.FormatDuration(time.Since(start)))
}
