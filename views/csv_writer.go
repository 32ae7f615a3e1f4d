package views

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"

	"accel-dashboard/models"
)

// CSVWriter streams window rows as CSV. It is safe for concurrent use;
// rows are buffered until Flush.
type CSVWriter struct {
	mu   sync.Mutex
	buf  *bufio.Writer
	csv  *csv.Writer
	rows uint64
}

// NewCSVWriter wraps w and writes an index column plus header.
func NewCSVWriter(w io.Writer, header []string, bufSizeBytes int) (*CSVWriter, error) {
	if bufSizeBytes <= 0 {
		bufSizeBytes = 32 * 1024
	}
	bw := bufio.NewWriterSize(w, bufSizeBytes)
	cw := csv.NewWriter(bw)
	if err := cw.Write(append([]string{"index"}, header...)); err != nil {
		return nil, fmt.Errorf("csv write header: %w", err)
	}
	return &CSVWriter{buf: bw, csv: cw}, nil
}

// WriteRecord appends one row. The index column counts rows written,
// starting at 0.
func (w *CSVWriter) WriteRecord(rec models.CSVRowWriter) {
	row := rec.CSVRow()
	w.mu.Lock()
	_ = w.csv.Write(append([]string{strconv.FormatUint(w.rows, 10)}, row...)) // error is buffered; checked on Flush
	w.rows++
	w.mu.Unlock()
}

// Flush pushes buffered rows to the underlying writer.
func (w *CSVWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	return w.buf.Flush()
}

// Rows returns the number of data rows written (excludes header).
func (w *CSVWriter) Rows() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// WriteCSV writes every sample followed by a flush.
func WriteCSV(dst io.Writer, samples []models.Sample) (uint64, error) {
	w, err := NewCSVWriter(dst, models.Sample{}.CSVHeader(), 0)
	if err != nil {
		return 0, err
	}
	for i := range samples {
		w.WriteRecord(&samples[i])
	}
	return w.Rows(), w.Flush()
}
