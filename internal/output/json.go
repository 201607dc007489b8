// internal/output/json.go
package output

import (
	"encoding/json"
	"io"
)

// JSONWriter writes records as one indented JSON array
type JSONWriter struct {
	writer  io.Writer
	records []Record
}

// NewJSONWriter creates a new JSON writer
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{
		writer:  w,
		records: make([]Record, 0),
	}
}

// Write buffers records until Flush or Close
func (w *JSONWriter) Write(records []Record) error {
	w.records = append(w.records, records...)
	return nil
}

// WriteRecord buffers a single record
func (w *JSONWriter) WriteRecord(record Record) error {
	w.records = append(w.records, record)
	return nil
}

// Flush writes all buffered records
func (w *JSONWriter) Flush() error {
	encoder := json.NewEncoder(w.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(w.records)
}

// Close flushes the records and closes the underlying writer if it can be closed
func (w *JSONWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if closer, ok := w.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// GetType returns the output type
func (w *JSONWriter) GetType() string {
	return string(FormatJSON)
}
