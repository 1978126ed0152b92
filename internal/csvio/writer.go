package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Writer writes output rows. Rows are buffered until Flush, and encoding/csv
// only emits whole records, so a flushed file never ends mid-record.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a comma separated writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// Write buffers one row.
func (w *Writer) Write(row []string) error {
	return w.csv.Write(row)
}

// Flush writes buffered rows to the underlying writer.
func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}

// CreateFile creates the output file at path. The parent directory must
// already exist; it is not created.
func CreateFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("output directory %q does not exist", dir)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return f, nil
}
