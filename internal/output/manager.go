// internal/output/manager.go
package output

import (
	"fmt"
	"os"
	"path/filepath"
)

// NewFileWriter creates a writer for path, choosing the format from its extension
func NewFileWriter(path string) (Writer, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	if format == FormatExcel {
		return NewExcelWriter(path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	switch format {
	case FormatJSON:
		return NewJSONWriter(file), nil
	case FormatCSV:
		return NewCSVWriter(file), nil
	default:
		file.Close()
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteFile writes records to path in the format its extension names
func WriteFile(path string, records []Record) (OutputFormat, error) {
	writer, err := NewFileWriter(path)
	if err != nil {
		return "", err
	}
	if err := writer.Write(records); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to write %s output: %w", writer.GetType(), err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finish %s output: %w", writer.GetType(), err)
	}
	return OutputFormat(writer.GetType()), nil
}
