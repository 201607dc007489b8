// internal/output/recorder.go
package output

import (
	"context"
	"fmt"
	"time"

	"github.com/valpere/ReceiptScrapexter/internal/config"
	"github.com/valpere/ReceiptScrapexter/internal/receipt"
	"github.com/valpere/ReceiptScrapexter/internal/utils"
)

// Recorder persists extraction records to an audit sink
type Recorder interface {
	Record(ctx context.Context, record Record) error
	Ping(ctx context.Context) error
	Driver() string
	Close() error
}

// NewRecorder opens the sink named by cfg.Driver
func NewRecorder(ctx context.Context, cfg config.AuditConfig) (Recorder, error) {
	switch cfg.Driver {
	case config.AuditDriverSQLite, config.AuditDriverPostgres, config.AuditDriverMySQL:
		return NewSQLRecorder(ctx, SQLOptions{
			Driver: cfg.Driver,
			DSN:    cfg.DSN,
			Table:  cfg.Table,
		})
	case config.AuditDriverMongoDB:
		return NewMongoRecorder(ctx, MongoOptions{
			URI:        cfg.DSN,
			Database:   cfg.Database,
			Collection: cfg.Table,
			Timeout:    cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported audit driver: %q", cfg.Driver)
	}
}

// AuditObserver receives audit outcomes. monitoring.MetricsManager satisfies it.
type AuditObserver interface {
	RecordAudit(driver string, err error)
}

// Auditor records extraction results on a best-effort basis. A sink failure
// is logged and counted, never returned.
type Auditor struct {
	recorder Recorder
	observer AuditObserver
	timeout  time.Duration
	logger   utils.Logger
}

// NewAuditor wraps recorder. A nil recorder makes every call a no-op.
func NewAuditor(recorder Recorder, observer AuditObserver, timeout time.Duration) *Auditor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Auditor{
		recorder: recorder,
		observer: observer,
		timeout:  timeout,
		logger:   utils.NewComponentLogger("audit"),
	}
}

// Enabled reports whether a sink is attached
func (a *Auditor) Enabled() bool {
	return a != nil && a.recorder != nil
}

// Record stores the result. It detaches from ctx cancellation so a client
// hanging up after the response does not lose the audit row.
func (a *Auditor) Record(ctx context.Context, result receipt.Result) {
	if !a.Enabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	record := NewRecord(result)
	err := a.recorder.Record(ctx, record)
	if a.observer != nil {
		a.observer.RecordAudit(a.recorder.Driver(), err)
	}
	if err != nil {
		a.logger.WithFields(map[string]interface{}{
			"driver": a.recorder.Driver(),
			"link":   utils.TruncateString(record.Link, 120),
		}).Warnf("audit record dropped: %v", err)
	}
}

// Ping checks the sink, for health checks
func (a *Auditor) Ping(ctx context.Context) error {
	if !a.Enabled() {
		return nil
	}
	return a.recorder.Ping(ctx)
}

// Close releases the sink
func (a *Auditor) Close() error {
	if !a.Enabled() {
		return nil
	}
	return a.recorder.Close()
}
