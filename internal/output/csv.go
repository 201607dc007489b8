// internal/output/csv.go
package output

import (
	"encoding/csv"
	"io"
)

// CSVWriter writes records as CSV with a fixed header row
type CSVWriter struct {
	writer        *csv.Writer
	closer        io.Closer
	headerWritten bool
}

// NewCSVWriter creates a new CSV writer
func NewCSVWriter(w io.Writer) *CSVWriter {
	writer := &CSVWriter{writer: csv.NewWriter(w)}
	if closer, ok := w.(io.Closer); ok {
		writer.closer = closer
	}
	return writer
}

// Write writes records to CSV
func (w *CSVWriter) Write(records []Record) error {
	for _, record := range records {
		if err := w.WriteRecord(record); err != nil {
			return err
		}
	}
	return nil
}

// WriteRecord writes a single record, preceded by the header on first use
func (w *CSVWriter) WriteRecord(record Record) error {
	if !w.headerWritten {
		if err := w.writer.Write(Columns); err != nil {
			return err
		}
		w.headerWritten = true
	}
	return w.writer.Write(record.Strings())
}

// Flush flushes any buffered data
func (w *CSVWriter) Flush() error {
	if !w.headerWritten {
		if err := w.writer.Write(Columns); err != nil {
			return err
		}
		w.headerWritten = true
	}
	w.writer.Flush()
	return w.writer.Error()
}

// Close flushes the writer and closes the destination
func (w *CSVWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// GetType returns the output type
func (w *CSVWriter) GetType() string {
	return string(FormatCSV)
}
