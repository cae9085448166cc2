// Package sink persists collection records: an append-only CSV whose
// column schema is frozen at the first tick, and a cumulative JSON
// snapshot written once at session end.
package sink

import (
	"strconv"

	"github.com/albertoperdomo2/llm-d-bench/internal/telemetry"
	"github.com/albertoperdomo2/llm-d-bench/pkg/catalog"
)

// Column identifies one CSV data column. Scalar metrics project their
// single value, histogram metrics project one query label each, and node
// columns read from the record's node samples.
type Column struct {
	Metric string
	Label  string
	Node   bool
}

// Name renders the column header: the plain metric name for scalar and
// node columns, "metric:label" for histogram columns. Downstream tooling
// addresses histogram columns by this convention.
func (c Column) Name() string {
	if c.Node || c.Label == telemetry.ScalarLabel {
		return c.Metric
	}
	return c.Metric + ":" + c.Label
}

// Schema is the ordered CSV column set. It is derived exactly once, from
// the first record of a session, and never changes afterwards: metrics
// that first appear on a later tick are dropped from the CSV (they remain
// in the JSON snapshot).
type Schema struct {
	columns []Column
}

// Derive maps a collection record onto its column set: backend metrics in
// record order (histograms expanded to one column per query label), then
// node metrics in record order.
func Derive(rec *telemetry.CollectionRecord) *Schema {
	var cols []Column
	for _, m := range rec.Metrics {
		if m.Result.Kind == catalog.KindHistogram {
			for _, label := range m.Result.Labels() {
				cols = append(cols, Column{Metric: m.Name, Label: label})
			}
		} else {
			cols = append(cols, Column{Metric: m.Name, Label: telemetry.ScalarLabel})
		}
	}
	for _, n := range rec.Node {
		cols = append(cols, Column{Metric: n.Name, Node: true})
	}
	return &Schema{columns: cols}
}

// Headers returns the column names in schema order.
func (s *Schema) Headers() []string {
	headers := make([]string, len(s.columns))
	for i, c := range s.columns {
		headers[i] = c.Name()
	}
	return headers
}

// Len returns the number of data columns.
func (s *Schema) Len() int {
	return len(s.columns)
}

// Project renders a record onto the schema in column order. Absent
// samples and metrics missing from the record render as empty fields.
func (s *Schema) Project(rec *telemetry.CollectionRecord) []string {
	fields := make([]string, len(s.columns))
	for i, col := range s.columns {
		var v telemetry.SampleValue
		switch {
		case col.Node:
			v = rec.NodeValue(col.Metric)
		default:
			if res, ok := rec.Metric(col.Metric); ok {
				v = res.Value(col.Label)
			}
		}
		fields[i] = formatValue(v)
	}
	return fields
}

func formatValue(v telemetry.SampleValue) string {
	f, ok := v.Float64()
	if !ok {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
