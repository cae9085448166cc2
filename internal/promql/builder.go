// Package promql builds the instant queries behind each metric kind and
// executes them against a Prometheus-compatible query endpoint.
//
// Gauges are read directly, counters as a rate over the configured window,
// and histograms as an avg (sum rate over count rate) plus one
// histogram_quantile per configured percentile.
package promql

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/albertoperdomo2/llm-d-bench/pkg/catalog"
)

// QuerySpec is one query to execute for a metric, tagged with the label
// the result is stored under ("value", "avg", "p95", ...).
type QuerySpec struct {
	Label string
	Query string
}

// Selector renders a label set as a PromQL equality selector with keys in
// sorted order so that equal label sets always produce identical query
// strings. An empty set yields no selector clause.
func Selector(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

// PercentileLabel renders a percentile fraction as its query label,
// e.g. 0.95 becomes "p95".
func PercentileLabel(p float64) string {
	return fmt.Sprintf("p%d", int(math.Round(p*100)))
}

// BuildQueries produces the ordered query set for one metric descriptor.
// Gauges and counters yield a single "value" query. Histograms yield
// "avg" first, then one quantile query per percentile in descriptor
// order.
func BuildQueries(d catalog.Descriptor, labels map[string]string, rateWindow string) []QuerySpec {
	sel := Selector(labels)

	switch d.Kind {
	case catalog.KindCounter:
		// rate() absorbs counter resets instead of going negative.
		return []QuerySpec{{
			Label: "value",
			Query: fmt.Sprintf("rate(%s%s[%s])", d.Name, sel, rateWindow),
		}}

	case catalog.KindHistogram:
		specs := make([]QuerySpec, 0, len(d.Percentiles)+1)
		specs = append(specs, QuerySpec{
			Label: "avg",
			Query: fmt.Sprintf("rate(%s_sum%s[%s]) / rate(%s_count%s[%s])",
				d.Name, sel, rateWindow, d.Name, sel, rateWindow),
		})
		for _, p := range d.Percentiles {
			specs = append(specs, QuerySpec{
				Label: PercentileLabel(p),
				Query: fmt.Sprintf("histogram_quantile(%v, rate(%s_bucket%s[%s]))",
					p, d.Name, sel, rateWindow),
			})
		}
		return specs

	default:
		return []QuerySpec{{
			Label: "value",
			Query: d.Name + sel,
		}}
	}
}
