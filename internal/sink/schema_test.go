package sink

import (
	"reflect"
	"testing"
	"time"

	"github.com/albertoperdomo2/llm-d-bench/internal/telemetry"
	"github.com/albertoperdomo2/llm-d-bench/pkg/catalog"
)

func sampleRecord() *telemetry.CollectionRecord {
	rec := telemetry.NewRecord(time.Unix(1700000000, 0))
	rec.AddMetric("requests_running", telemetry.Scalar(catalog.KindGauge, telemetry.Some(5)))
	rec.AddMetric("prompt_tokens_total", telemetry.Scalar(catalog.KindCounter, telemetry.Some(100)))
	rec.AddMetric("latency_seconds", telemetry.Distribution([]telemetry.DistributionPoint{
		{Label: "avg", Value: telemetry.Some(0.2)},
		{Label: "p50", Value: telemetry.Some(0.18)},
		{Label: "p95", Value: telemetry.Some(0.4)},
	}))
	rec.AddNode("node_cpu_percent", telemetry.Some(12.5))
	rec.AddNode("node_memory_percent", telemetry.Some(40))
	return rec
}

func TestDerive_Headers(t *testing.T) {
	schema := Derive(sampleRecord())

	want := []string{
		"requests_running",
		"prompt_tokens_total",
		"latency_seconds:avg",
		"latency_seconds:p50",
		"latency_seconds:p95",
		"node_cpu_percent",
		"node_memory_percent",
	}
	if got := schema.Headers(); !reflect.DeepEqual(got, want) {
		t.Errorf("Headers() = %v, want %v", got, want)
	}
	if schema.Len() != len(want) {
		t.Errorf("Len() = %d, want %d", schema.Len(), len(want))
	}
}

func TestColumnName(t *testing.T) {
	tests := []struct {
		name string
		col  Column
		want string
	}{
		{"scalar", Column{Metric: "requests_running", Label: "value"}, "requests_running"},
		{"histogram avg", Column{Metric: "latency_seconds", Label: "avg"}, "latency_seconds:avg"},
		{"histogram percentile", Column{Metric: "latency_seconds", Label: "p95"}, "latency_seconds:p95"},
		{"node", Column{Metric: "node_cpu_percent", Node: true}, "node_cpu_percent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.col.Name(); got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProject_FullRecord(t *testing.T) {
	rec := sampleRecord()
	schema := Derive(rec)

	want := []string{"5", "100", "0.2", "0.18", "0.4", "12.5", "40"}
	if got := schema.Project(rec); !reflect.DeepEqual(got, want) {
		t.Errorf("Project() = %v, want %v", got, want)
	}
}

func TestProject_AbsentAndMissing(t *testing.T) {
	schema := Derive(sampleRecord())

	// A later record missing one metric entirely, with another absent, and
	// carrying a metric the schema has never seen.
	rec := telemetry.NewRecord(time.Unix(1700000001, 0))
	rec.AddMetric("requests_running", telemetry.Scalar(catalog.KindGauge, telemetry.Absent()))
	rec.AddMetric("latency_seconds", telemetry.Distribution([]telemetry.DistributionPoint{
		{Label: "avg", Value: telemetry.Some(0.3)},
		{Label: "p50", Value: telemetry.Absent()},
		{Label: "p95", Value: telemetry.Some(0.5)},
	}))
	rec.AddMetric("late_arrival_total", telemetry.Scalar(catalog.KindCounter, telemetry.Some(9)))
	rec.AddNode("node_cpu_percent", telemetry.Some(50))

	got := schema.Project(rec)
	want := []string{"", "", "0.3", "", "0.5", "50", ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Project() = %v, want %v", got, want)
	}

	// The never-seen metric must not widen the projection.
	if len(got) != schema.Len() {
		t.Errorf("projection width = %d, want %d", len(got), schema.Len())
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		v    telemetry.SampleValue
		want string
	}{
		{"integer valued", telemetry.Some(5), "5"},
		{"fraction", telemetry.Some(0.25), "0.25"},
		{"zero", telemetry.Some(0), "0"},
		{"large", telemetry.Some(1e16), "1e+16"},
		{"absent", telemetry.Absent(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(tt.v); got != tt.want {
				t.Errorf("formatValue = %q, want %q", got, tt.want)
			}
		})
	}
}
