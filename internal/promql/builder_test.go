package promql

import (
	"reflect"
	"testing"

	"github.com/albertoperdomo2/llm-d-bench/pkg/catalog"
)

func TestSelector(t *testing.T) {
	tests := []struct {
		name   string
		labels map[string]string
		want   string
	}{
		{"nil", nil, ""},
		{"empty", map[string]string{}, ""},
		{"single", map[string]string{"model": "llama"}, `{model="llama"}`},
		{
			name:   "keys sorted",
			labels: map[string]string{"namespace": "bench", "model": "llama"},
			want:   `{model="llama",namespace="bench"}`,
		},
		{
			name:   "value quoted",
			labels: map[string]string{"pod": `vllm-"0"`},
			want:   `{pod="vllm-\"0\""}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Selector(tt.labels); got != tt.want {
				t.Errorf("Selector(%v) = %q, want %q", tt.labels, got, tt.want)
			}
		})
	}
}

func TestPercentileLabel(t *testing.T) {
	tests := []struct {
		p    float64
		want string
	}{
		{0.5, "p50"},
		{0.9, "p90"},
		{0.95, "p95"},
		{0.99, "p99"},
		{0.25, "p25"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := PercentileLabel(tt.p); got != tt.want {
				t.Errorf("PercentileLabel(%v) = %q, want %q", tt.p, got, tt.want)
			}
		})
	}
}

func TestBuildQueries_Gauge(t *testing.T) {
	d := catalog.Descriptor{Name: "vllm:num_requests_running", Kind: catalog.KindGauge}
	got := BuildQueries(d, map[string]string{"model": "llama"}, "1m")

	want := []QuerySpec{
		{Label: "value", Query: `vllm:num_requests_running{model="llama"}`},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildQueries = %v, want %v", got, want)
	}
}

func TestBuildQueries_Counter(t *testing.T) {
	d := catalog.Descriptor{Name: "vllm:prompt_tokens_total", Kind: catalog.KindCounter}
	got := BuildQueries(d, nil, "5m")

	want := []QuerySpec{
		{Label: "value", Query: "rate(vllm:prompt_tokens_total[5m])"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildQueries = %v, want %v", got, want)
	}
}

func TestBuildQueries_Histogram(t *testing.T) {
	d := catalog.Descriptor{
		Name:        "vllm:e2e_request_latency_seconds",
		Kind:        catalog.KindHistogram,
		Percentiles: []float64{0.5, 0.9, 0.95, 0.99},
	}
	got := BuildQueries(d, nil, "1m")

	if len(got) != 5 {
		t.Fatalf("expected 5 query specs, got %d", len(got))
	}
	wantLabels := []string{"avg", "p50", "p90", "p95", "p99"}
	for i, spec := range got {
		if spec.Label != wantLabels[i] {
			t.Errorf("spec[%d].Label = %q, want %q", i, spec.Label, wantLabels[i])
		}
	}

	wantAvg := "rate(vllm:e2e_request_latency_seconds_sum[1m]) / rate(vllm:e2e_request_latency_seconds_count[1m])"
	if got[0].Query != wantAvg {
		t.Errorf("avg query = %q, want %q", got[0].Query, wantAvg)
	}
	wantP95 := "histogram_quantile(0.95, rate(vllm:e2e_request_latency_seconds_bucket[1m]))"
	if got[3].Query != wantP95 {
		t.Errorf("p95 query = %q, want %q", got[3].Query, wantP95)
	}
}

func TestBuildQueries_HistogramWithLabels(t *testing.T) {
	d := catalog.Descriptor{
		Name:        "vllm:time_to_first_token_seconds",
		Kind:        catalog.KindHistogram,
		Percentiles: []float64{0.5},
	}
	got := BuildQueries(d, map[string]string{"model": "llama"}, "1m")

	wantAvg := `rate(vllm:time_to_first_token_seconds_sum{model="llama"}[1m]) / rate(vllm:time_to_first_token_seconds_count{model="llama"}[1m])`
	wantP50 := `histogram_quantile(0.5, rate(vllm:time_to_first_token_seconds_bucket{model="llama"}[1m]))`

	if len(got) != 2 {
		t.Fatalf("expected 2 query specs, got %d", len(got))
	}
	if got[0].Query != wantAvg {
		t.Errorf("avg query = %q, want %q", got[0].Query, wantAvg)
	}
	if got[1].Query != wantP50 {
		t.Errorf("p50 query = %q, want %q", got[1].Query, wantP50)
	}
}

// Percentile order follows the descriptor, not numeric order.
func TestBuildQueries_PercentileOrderPreserved(t *testing.T) {
	d := catalog.Descriptor{
		Name:        "latency_seconds",
		Kind:        catalog.KindHistogram,
		Percentiles: []float64{0.99, 0.5},
	}
	got := BuildQueries(d, nil, "1m")

	wantLabels := []string{"avg", "p99", "p50"}
	if len(got) != len(wantLabels) {
		t.Fatalf("expected %d specs, got %d", len(wantLabels), len(got))
	}
	for i, spec := range got {
		if spec.Label != wantLabels[i] {
			t.Errorf("spec[%d].Label = %q, want %q", i, spec.Label, wantLabels[i])
		}
	}
}
