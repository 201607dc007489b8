// internal/output/database.go
package output

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLOptions configures a SQL audit recorder
type SQLOptions struct {
	Driver string
	DSN    string
	Table  string
}

// SQLRecorder writes one row per extraction into a SQLite, PostgreSQL or
// MySQL table, creating the table on open.
type SQLRecorder struct {
	db         *sql.DB
	driver     string
	table      string
	insertStmt string
}

// NewSQLRecorder opens the database and ensures the audit table exists
func NewSQLRecorder(ctx context.Context, options SQLOptions) (*SQLRecorder, error) {
	if options.DSN == "" {
		return nil, fmt.Errorf("%s connection string is required", options.Driver)
	}
	if options.Table == "" {
		options.Table = "extractions"
	}
	if err := ValidateSQLIdentifier(options.Table); err != nil {
		return nil, fmt.Errorf("invalid table name: %w", err)
	}

	dsn := options.DSN
	switch options.Driver {
	case "sqlite3", "postgres":
	case "mysql":
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
		}
		cfg.ParseTime = true
		dsn = cfg.FormatDSN()
	default:
		return nil, fmt.Errorf("unsupported SQL driver: %q", options.Driver)
	}

	db, err := sql.Open(options.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", options.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", options.Driver, err)
	}

	if options.Driver == "sqlite3" {
		// SQLite works best with a single writer
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	r := &SQLRecorder{
		db:     db,
		driver: options.Driver,
		table:  options.Table,
	}
	r.insertStmt = r.buildInsert()

	if err := r.createTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLRecorder) quotedTable() string {
	switch r.driver {
	case "postgres":
		return pq.QuoteIdentifier(r.table)
	case "mysql":
		return "`" + r.table + "`"
	default:
		return `"` + r.table + `"`
	}
}

func (r *SQLRecorder) placeholder(n int) string {
	if r.driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (r *SQLRecorder) createTable(ctx context.Context) error {
	text, timestamp := "TEXT", "TIMESTAMP"
	id := "TEXT PRIMARY KEY"
	switch r.driver {
	case "postgres":
		timestamp = "TIMESTAMPTZ"
	case "mysql":
		text = "VARCHAR(2048)"
		id = "CHAR(36) PRIMARY KEY"
		timestamp = "DATETIME(6)"
	}

	types := map[string]string{
		"id":           id,
		"link":         text + " NOT NULL",
		"duration_ms":  "BIGINT",
		"extracted_at": timestamp + " NOT NULL",
	}
	columns := make([]string, len(Columns))
	for i, column := range Columns {
		columnType, ok := types[column]
		if !ok {
			columnType = text
		}
		columns[i] = r.quoteColumn(column) + " " + columnType
	}
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", r.quotedTable(), strings.Join(columns, ", "))
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", r.table, err)
	}
	return nil
}

func (r *SQLRecorder) buildInsert() string {
	placeholders := make([]string, len(Columns))
	for i := range Columns {
		placeholders[i] = r.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.quotedTable(),
		strings.Join(r.quotedColumns(), ", "),
		strings.Join(placeholders, ", "))
}

func (r *SQLRecorder) quotedColumns() []string {
	quoted := make([]string, len(Columns))
	for i, column := range Columns {
		quoted[i] = r.quoteColumn(column)
	}
	return quoted
}

// quoteColumn quotes a column name; "date", "value" and "fetch" are keywords in some dialects
func (r *SQLRecorder) quoteColumn(column string) string {
	if r.driver == "mysql" {
		return "`" + column + "`"
	}
	return `"` + column + `"`
}

// Record inserts one row
func (r *SQLRecorder) Record(ctx context.Context, record Record) error {
	_, err := r.db.ExecContext(ctx, r.insertStmt,
		record.ID,
		record.Link,
		nullable(record.Value),
		nullable(record.Date),
		record.ValueSource,
		record.DateSource,
		record.Outcome,
		record.Fetch,
		nullable(record.FetchError),
		record.DurationMS,
		record.ExtractedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Count returns the number of recorded rows
func (r *SQLRecorder) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+r.quotedTable()).Scan(&n)
	return n, err
}

// Ping checks the connection
func (r *SQLRecorder) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Driver returns the database driver name
func (r *SQLRecorder) Driver() string {
	return r.driver
}

// Close closes the database connection
func (r *SQLRecorder) Close() error {
	if r.db != nil {
		err := r.db.Close()
		r.db = nil
		return err
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
