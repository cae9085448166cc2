// Package catalog defines the static vLLM metric catalog and the
// name-based type inference used for metrics outside it. The catalog maps
// each known metric to its Prometheus kind and, for histograms, the
// percentiles extracted by the query layer. Column names derived from these
// descriptors (`metric` or `metric:p95`) are part of the CSV contract
// consumed by downstream tooling.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogRawData []byte

// Kind classifies a metric by its statistical shape. The values are wire
// values: they appear verbatim in the JSON snapshot's "type" field.
type Kind string

const (
	// KindGauge is an instantaneous value that can go up or down.
	KindGauge Kind = "gauge"
	// KindCounter is a monotonic total, meaningful only as a rate.
	KindCounter Kind = "counter"
	// KindHistogram is a bucketed distribution requiring percentile
	// extraction.
	KindHistogram Kind = "histogram"
)

// valid reports whether k is one of the three known kinds.
func (k Kind) valid() bool {
	switch k {
	case KindGauge, KindCounter, KindHistogram:
		return true
	}
	return false
}

// Descriptor describes a single metric: its backend name, kind, and, for
// histograms, the percentiles to extract. Descriptors are created once at
// process start and never mutated; callers must not modify Percentiles.
type Descriptor struct {
	Name        string    `yaml:"name"`
	Kind        Kind      `yaml:"kind"`
	Description string    `yaml:"description"`
	Unit        string    `yaml:"unit,omitempty"`
	Percentiles []float64 `yaml:"percentiles,omitempty"`
}

// validate checks internal consistency of a catalog entry.
func (d Descriptor) validate() error {
	if d.Name == "" {
		return fmt.Errorf("entry without name")
	}
	if !d.Kind.valid() {
		return fmt.Errorf("entry %q has unknown kind %q", d.Name, d.Kind)
	}
	if d.Kind == KindHistogram && len(d.Percentiles) == 0 {
		return fmt.Errorf("histogram entry %q has no percentiles", d.Name)
	}
	if d.Kind != KindHistogram && len(d.Percentiles) > 0 {
		return fmt.Errorf("%s entry %q must not define percentiles", d.Kind, d.Name)
	}
	for _, p := range d.Percentiles {
		if p <= 0 || p >= 1 {
			return fmt.Errorf("entry %q percentile %v outside (0,1)", d.Name, p)
		}
	}
	return nil
}

// catalogFile is the top-level structure of the embedded YAML.
type catalogFile struct {
	Metrics  []Descriptor `yaml:"metrics"`
	Defaults []string     `yaml:"default_collection"`
}

// Catalog is an immutable lookup table from metric name to descriptor.
// It is constructed once by Load and passed explicitly to consumers.
type Catalog struct {
	byName   map[string]Descriptor
	defaults []string
}

// Load parses the embedded YAML catalog and validates every entry.
func Load() (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(catalogRawData, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse yaml: %w", err)
	}
	return New(f.Metrics, f.Defaults)
}

// New builds a catalog from an explicit descriptor set. The defaults list
// names the metrics collected when no explicit list is configured; every
// default must be a cataloged metric.
func New(descriptors []Descriptor, defaults []string) (*Catalog, error) {
	byName := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		if err := d.validate(); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		if _, dup := byName[d.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate entry %q", d.Name)
		}
		byName[d.Name] = d
	}

	for _, name := range defaults {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("catalog: default_collection references unknown metric %q", name)
		}
	}

	return &Catalog{byName: byName, defaults: defaults}, nil
}

// Lookup returns the descriptor for a cataloged metric. The boolean is
// false for names outside the static catalog; callers fall back to Infer
// (or use Describe, which does both).
func (c *Catalog) Lookup(name string) (Descriptor, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// Describe resolves a metric name to a descriptor: the catalog entry when
// one exists, otherwise a descriptor inferred from naming conventions.
// Describe is pure and never fails.
func (c *Catalog) Describe(name string) Descriptor {
	if d, ok := c.byName[name]; ok {
		return d
	}
	return Infer(name)
}

// Len returns the number of cataloged metrics.
func (c *Catalog) Len() int {
	return len(c.byName)
}

// DefaultMetrics returns the built-in collection set used when no explicit
// metric list is configured. The returned slice is a copy.
func (c *Catalog) DefaultMetrics() []string {
	out := make([]string, len(c.defaults))
	copy(out, c.defaults)
	return out
}
