// internal/output/types.go
package output

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/valpere/ReceiptScrapexter/internal/receipt"
)

// OutputFormat is a batch export file format
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatCSV   OutputFormat = "csv"
	FormatExcel OutputFormat = "xlsx"
)

// Writer writes extraction records to a destination
type Writer interface {
	Write(records []Record) error
	Close() error
	GetType() string
}

// Record is the flat, exportable form of one extraction
type Record struct {
	ID          string    `json:"id" bson:"_id"`
	Link        string    `json:"link" bson:"link"`
	Value       string    `json:"value,omitempty" bson:"value,omitempty"`
	Date        string    `json:"date,omitempty" bson:"date,omitempty"`
	ValueSource string    `json:"value_source" bson:"value_source"`
	DateSource  string    `json:"date_source" bson:"date_source"`
	Outcome     string    `json:"outcome" bson:"outcome"`
	Fetch       string    `json:"fetch" bson:"fetch"`
	FetchError  string    `json:"fetch_error,omitempty" bson:"fetch_error,omitempty"`
	DurationMS  int64     `json:"duration_ms" bson:"duration_ms"`
	ExtractedAt time.Time `json:"extracted_at" bson:"extracted_at"`
}

// Columns lists record fields in export order
var Columns = []string{
	"id",
	"link",
	"value",
	"date",
	"value_source",
	"date_source",
	"outcome",
	"fetch",
	"fetch_error",
	"duration_ms",
	"extracted_at",
}

// NewRecord builds a record from an extraction result with a fresh id
func NewRecord(result receipt.Result) Record {
	record := Record{
		ID:          uuid.NewString(),
		Link:        result.DocumentIdentifier,
		Value:       result.MonetaryValue,
		Date:        result.EmissionDate,
		ValueSource: sourceOf(result, receipt.FieldValue),
		DateSource:  sourceOf(result, receipt.FieldDate),
		Outcome:     result.Outcome(),
		Fetch:       string(result.Fetch),
		DurationMS:  result.Duration.Milliseconds(),
		ExtractedAt: time.Now().UTC(),
	}
	if result.FetchError != nil {
		record.FetchError = result.FetchError.Error()
	}
	return record
}

func sourceOf(result receipt.Result, field receipt.Field) string {
	if tier, ok := result.Sources[field]; ok {
		return tier.String()
	}
	return receipt.TierNone.String()
}

// Strings returns the record's values in Columns order
func (r Record) Strings() []string {
	return []string{
		r.ID,
		r.Link,
		r.Value,
		r.Date,
		r.ValueSource,
		r.DateSource,
		r.Outcome,
		r.Fetch,
		r.FetchError,
		strconv.FormatInt(r.DurationMS, 10),
		r.ExtractedAt.Format(time.RFC3339),
	}
}

// FormatFromPath picks the export format from a file extension
func FormatFromPath(path string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatExcel, nil
	default:
		return "", fmt.Errorf("unsupported output format for %q (use .json, .csv or .xlsx)", path)
	}
}

// MaxIdentifierLength is the shortest identifier limit among the SQL drivers (PostgreSQL)
const MaxIdentifierLength = 63

var sqlIdentifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var reservedWords = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true, "DROP": true,
	"CREATE": true, "ALTER": true, "TABLE": true, "INDEX": true, "FROM": true,
	"WHERE": true, "ORDER": true, "GROUP": true, "USER": true, "VALUES": true,
}

// ValidateSQLIdentifier checks a table name before it is interpolated into SQL
func ValidateSQLIdentifier(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(identifier) > MaxIdentifierLength {
		return fmt.Errorf("identifier too long (max %d characters): %s", MaxIdentifierLength, identifier)
	}
	if !sqlIdentifierRegex.MatchString(identifier) {
		return fmt.Errorf("invalid identifier format: %s", identifier)
	}
	if reservedWords[strings.ToUpper(identifier)] {
		return fmt.Errorf("identifier is a reserved SQL keyword: %s", identifier)
	}
	return nil
}
