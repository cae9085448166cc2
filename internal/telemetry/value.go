// Package telemetry defines the value and record types produced by a
// collection tick: optional sample values, per-metric results, and the
// per-tick record the sinks consume.
package telemetry

import (
	"encoding/json"
	"math"
)

// SampleValue is an optional numeric sample. Absent means the backend
// returned no data or the query failed, which is distinct from a
// legitimate zero. Absent values render as null in JSON and as an empty
// field in CSV.
type SampleValue struct {
	val     float64
	present bool
}

// Some returns a present sample carrying v.
func Some(v float64) SampleValue {
	return SampleValue{val: v, present: true}
}

// Absent returns the missing sample.
func Absent() SampleValue {
	return SampleValue{}
}

// Present reports whether the sample carries a value.
func (s SampleValue) Present() bool {
	return s.present
}

// Float64 returns the carried value and whether one is present.
func (s SampleValue) Float64() (float64, bool) {
	return s.val, s.present
}

// MarshalJSON renders the sample as a JSON number, or null when absent.
// Non-finite values also render as null since JSON cannot carry them.
func (s SampleValue) MarshalJSON() ([]byte, error) {
	if !s.present || math.IsNaN(s.val) || math.IsInf(s.val, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(s.val)
}
