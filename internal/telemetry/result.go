package telemetry

import (
	"encoding/json"

	"github.com/albertoperdomo2/llm-d-bench/pkg/catalog"
)

// ScalarLabel is the query label carried by gauge and counter results.
const ScalarLabel = "value"

// DistributionPoint is one labeled value of a histogram result, e.g.
// {"avg", 0.2} or {"p95", 0.4}.
type DistributionPoint struct {
	Label string
	Value SampleValue
}

// MetricResult is the outcome of querying one metric for one tick. It is
// a tagged variant discriminated by Kind: gauge and counter results carry
// a single scalar, histogram results carry an ordered distribution of
// labeled values ("avg" first, then the configured percentiles).
type MetricResult struct {
	Kind   catalog.Kind
	Scalar SampleValue
	Points []DistributionPoint
}

// Scalar builds a gauge or counter result.
func Scalar(kind catalog.Kind, v SampleValue) MetricResult {
	return MetricResult{Kind: kind, Scalar: v}
}

// Distribution builds a histogram result from labeled points in emission
// order.
func Distribution(points []DistributionPoint) MetricResult {
	return MetricResult{Kind: catalog.KindHistogram, Points: points}
}

// Value returns the sample stored under a query label. Scalar results
// answer only ScalarLabel; unknown labels yield Absent.
func (r MetricResult) Value(label string) SampleValue {
	if r.Kind == catalog.KindHistogram {
		for _, p := range r.Points {
			if p.Label == label {
				return p.Value
			}
		}
		return Absent()
	}
	if label == ScalarLabel {
		return r.Scalar
	}
	return Absent()
}

// Labels returns the query labels of this result in emission order.
func (r MetricResult) Labels() []string {
	if r.Kind != catalog.KindHistogram {
		return []string{ScalarLabel}
	}
	labels := make([]string, len(r.Points))
	for i, p := range r.Points {
		labels[i] = p.Label
	}
	return labels
}

// HasData reports whether at least one sample of this result is present.
func (r MetricResult) HasData() bool {
	if r.Kind == catalog.KindHistogram {
		for _, p := range r.Points {
			if p.Value.Present() {
				return true
			}
		}
		return false
	}
	return r.Scalar.Present()
}

// MarshalJSON renders the result as a flat object carrying the kind under
// "type" and every sample under its query label, absent samples as null:
//
//	{"type":"gauge","value":5}
//	{"type":"histogram","avg":0.2,"p50":0.18,"p95":0.4}
func (r MetricResult) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(r.Points)+2)
	fields["type"] = string(r.Kind)
	if r.Kind == catalog.KindHistogram {
		for _, p := range r.Points {
			fields[p.Label] = p.Value
		}
	} else {
		fields[ScalarLabel] = r.Scalar
	}
	return json.Marshal(fields)
}
