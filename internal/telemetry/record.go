package telemetry

import (
	"encoding/json"
	"time"
)

// MetricSample pairs a backend metric name with its per-tick result.
type MetricSample struct {
	Name   string
	Result MetricResult
}

// NodeSample pairs a node metric name with its sampled value.
type NodeSample struct {
	Name  string
	Value SampleValue
}

// CollectionRecord is everything collected in one tick. Metrics keeps the
// configured metric order and Node keeps the sampler's emission order;
// both orders feed the CSV schema derived from the session's first record.
// A record is immutable once handed to the sinks.
type CollectionRecord struct {
	Timestamp float64 // epoch seconds
	TimeISO   string
	Metrics   []MetricSample
	Node      []NodeSample
}

// NewRecord starts a record stamped with the tick's wall-clock time.
func NewRecord(at time.Time) *CollectionRecord {
	return &CollectionRecord{
		Timestamp: float64(at.UnixNano()) / float64(time.Second),
		TimeISO:   at.Format(time.RFC3339Nano),
	}
}

// AddMetric appends a backend metric result, preserving insertion order.
func (r *CollectionRecord) AddMetric(name string, result MetricResult) {
	r.Metrics = append(r.Metrics, MetricSample{Name: name, Result: result})
}

// AddNode appends a node metric sample, preserving insertion order.
func (r *CollectionRecord) AddNode(name string, v SampleValue) {
	r.Node = append(r.Node, NodeSample{Name: name, Value: v})
}

// Metric returns the result recorded under name.
func (r *CollectionRecord) Metric(name string) (MetricResult, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m.Result, true
		}
	}
	return MetricResult{}, false
}

// NodeValue returns the node sample recorded under name, Absent when the
// record has none.
func (r *CollectionRecord) NodeValue(name string) SampleValue {
	for _, n := range r.Node {
		if n.Name == name {
			return n.Value
		}
	}
	return Absent()
}

// Counts tallies how many backend metrics and node samples carry data,
// for the per-tick summary log.
func (r *CollectionRecord) Counts() (backendOK, backendTotal, nodeOK, nodeTotal int) {
	for _, m := range r.Metrics {
		backendTotal++
		if m.Result.HasData() {
			backendOK++
		}
	}
	for _, n := range r.Node {
		nodeTotal++
		if n.Value.Present() {
			nodeOK++
		}
	}
	return backendOK, backendTotal, nodeOK, nodeTotal
}

// MarshalJSON renders the record with the backend metrics and node samples
// as separate objects:
//
//	{"collection_time":"...","collection_timestamp":1.7e9,
//	 "metrics":{...},"node_metrics":{...}}
func (r *CollectionRecord) MarshalJSON() ([]byte, error) {
	metrics := make(map[string]MetricResult, len(r.Metrics))
	for _, m := range r.Metrics {
		metrics[m.Name] = m.Result
	}
	node := make(map[string]SampleValue, len(r.Node))
	for _, n := range r.Node {
		node[n.Name] = n.Value
	}
	return json.Marshal(struct {
		TimeISO   string                  `json:"collection_time"`
		Timestamp float64                 `json:"collection_timestamp"`
		Metrics   map[string]MetricResult `json:"metrics"`
		Node      map[string]SampleValue  `json:"node_metrics"`
	}{r.TimeISO, r.Timestamp, metrics, node})
}
