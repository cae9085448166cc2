package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/albertoperdomo2/llm-d-bench/internal/telemetry"
)

// Paths computes the session-stamped CSV and JSON file pair inside dir.
// Both outputs of one session share the same start-time stamp.
func Paths(dir string, start time.Time) (csvPath, jsonPath string) {
	base := filepath.Join(dir, "metrics_"+start.Format("20060102_150405"))
	return base + ".csv", base + ".json"
}

// CSVWriter appends one row per tick to the session's CSV file. The file
// is opened and closed inside every call, so an abrupt crash still leaves
// a valid, readable file covering every completed tick.
type CSVWriter struct {
	path   string
	schema *Schema
}

// NewCSVWriter returns a writer for path. No file is touched until Begin.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

// Path returns the CSV file location.
func (w *CSVWriter) Path() string {
	return w.path
}

// Begin pins the schema and writes the header row, truncating any
// existing file at the path.
func (w *CSVWriter) Begin(schema *Schema) error {
	w.schema = schema
	header := append([]string{"timestamp", "collection_time"}, schema.Headers()...)
	return w.writeRow(header, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
}

// Append projects one record onto the pinned schema and appends its row.
func (w *CSVWriter) Append(rec *telemetry.CollectionRecord) error {
	if w.schema == nil {
		return errors.New("sink: csv append before Begin")
	}
	row := make([]string, 0, w.schema.Len()+2)
	row = append(row, strconv.FormatFloat(rec.Timestamp, 'f', -1, 64), rec.TimeISO)
	row = append(row, w.schema.Project(rec)...)
	return w.writeRow(row, os.O_CREATE|os.O_APPEND|os.O_WRONLY)
}

func (w *CSVWriter) writeRow(row []string, flags int) error {
	f, err := os.OpenFile(w.path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("sink: open csv: %w", err)
	}

	cw := csv.NewWriter(f)
	err = cw.Write(row)
	cw.Flush()
	if err == nil {
		err = cw.Error()
	}
	cerr := f.Close()

	if err != nil {
		return fmt.Errorf("sink: write csv row: %w", err)
	}
	if cerr != nil {
		return fmt.Errorf("sink: close csv: %w", cerr)
	}
	return nil
}
