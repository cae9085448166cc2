package catalog

import "strings"

// DefaultPercentiles are assigned to histogram descriptors produced by
// Infer, matching the percentile set used by the cataloged histograms.
var DefaultPercentiles = []float64{0.5, 0.9, 0.95, 0.99}

// componentSuffixes are the per-series suffixes a Prometheus histogram or
// counter family exposes. Requesting a component series means the caller
// wants the base metric.
var componentSuffixes = []string{"_bucket", "_sum", "_count", "_created"}

// Infer classifies a metric outside the static catalog by its name,
// following Prometheus naming conventions. Matching is case-insensitive.
//
// Order matters: "_total" marks a counter even though counter families
// also expose "_count" style components, and a duration suffix marks a
// histogram before the component checks run.
func Infer(name string) Descriptor {
	d := Descriptor{Name: name, Kind: KindGauge}
	lower := strings.ToLower(name)

	switch {
	case strings.HasSuffix(lower, "_total"):
		d.Kind = KindCounter
	case strings.HasSuffix(lower, "_seconds") || strings.HasSuffix(lower, "_milliseconds"):
		d.Kind = KindHistogram
	case strings.Contains(lower, "_bucket") || strings.Contains(lower, "_sum") || strings.Contains(lower, "_count"):
		d.Kind = KindHistogram
	}

	if d.Kind == KindHistogram {
		d.Percentiles = make([]float64, len(DefaultPercentiles))
		copy(d.Percentiles, DefaultPercentiles)
	}
	return d
}

// Normalize collapses histogram component names (name_bucket, name_sum,
// name_count, name_created) down to their base metric and deduplicates
// the result, preserving first-seen order. Collecting a component series
// directly would bypass percentile extraction, so the base metric is
// collected instead.
func Normalize(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		base := baseName(name)
		if seen[base] {
			continue
		}
		seen[base] = true
		out = append(out, base)
	}
	return out
}

// baseName strips the first matching component suffix from name, if any.
func baseName(name string) string {
	for _, suffix := range componentSuffixes {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}
