// Package config loads collector settings from defaults, an optional
// YAML file, LLMDBENCH_* environment variables, and command-line
// overrides, in rising precedence.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/prometheus/common/model"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// DefaultTokenFile is the service account token mounted into every
// Kubernetes pod.
const DefaultTokenFile = "/var/run/secrets/kubernetes.io/serviceaccount/token"

// Config is the full collector configuration.
type Config struct {
	Backend    Backend    `mapstructure:"backend"`
	Collection Collection `mapstructure:"collection"`
	Node       Node       `mapstructure:"node"`
	Output     Output     `mapstructure:"output"`
	History    History    `mapstructure:"history"`
	Log        Log        `mapstructure:"log"`
}

// Backend describes the Thanos or Prometheus query endpoint.
type Backend struct {
	URL                string        `mapstructure:"url"`
	TokenFile          string        `mapstructure:"token_file"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// Collection controls what is collected and how often.
type Collection struct {
	// Interval is the sleep between ticks, in seconds.
	Interval int `mapstructure:"interval"`
	// Metrics lists backend metric names; empty selects the catalog's
	// default collection.
	Metrics []string `mapstructure:"metrics"`
	// Labels filter every query.
	Labels map[string]string `mapstructure:"labels"`
	// RateWindow is the span for rate() and quantile queries.
	RateWindow string `mapstructure:"rate_window"`
	// MaxCollections stops after this many ticks; 0 runs until signalled.
	MaxCollections int `mapstructure:"max_collections"`
}

// Node controls host-level metric sampling.
type Node struct {
	Enabled bool `mapstructure:"enabled"`
}

// Output holds the result directory.
type Output struct {
	Dir string `mapstructure:"dir"`
}

// History configures the optional SQLite mirror of collected ticks.
type History struct {
	// Path is the database file; empty disables the mirror.
	Path string `mapstructure:"path"`
}

// Log holds logging settings.
type Log struct {
	Level string `mapstructure:"level"`
}

// Default returns the built-in configuration. Backend.URL has no default
// and must be provided.
func Default() Config {
	return Config{
		Backend: Backend{
			TokenFile:          DefaultTokenFile,
			InsecureSkipVerify: true,
			Timeout:            10 * time.Second,
		},
		Collection: Collection{
			Interval:   1,
			RateWindow: "1m",
		},
		Node:   Node{Enabled: true},
		Output: Output{Dir: "metrics_output"},
		Log:    Log{Level: "info"},
	}
}

// Load builds the effective configuration. Precedence, lowest to
// highest: Default, the YAML file at path (skipped when path is empty),
// environment variables, overrides. Override keys use the dotted form,
// for example "backend.url".
func Load(path string, overrides map[string]any) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("LLMDBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, val := range overrides {
		v.Set(key, val)
	}

	var cfg Config
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToLabelsHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hooks); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Collection.Metrics = cleanList(cfg.Collection.Metrics)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("backend.url", d.Backend.URL)
	v.SetDefault("backend.token_file", d.Backend.TokenFile)
	v.SetDefault("backend.insecure_skip_verify", d.Backend.InsecureSkipVerify)
	v.SetDefault("backend.timeout", d.Backend.Timeout)
	v.SetDefault("collection.interval", d.Collection.Interval)
	v.SetDefault("collection.metrics", []string{})
	v.SetDefault("collection.labels", map[string]string{})
	v.SetDefault("collection.rate_window", d.Collection.RateWindow)
	v.SetDefault("collection.max_collections", d.Collection.MaxCollections)
	v.SetDefault("node.enabled", d.Node.Enabled)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("log.level", d.Log.Level)
}

// Validate reports the first configuration error.
func (c Config) Validate() error {
	if c.Backend.URL == "" {
		return errors.New("config: backend.url is required")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("config: backend.timeout must be positive, got %s", c.Backend.Timeout)
	}
	if c.Collection.Interval < 1 {
		return fmt.Errorf("config: collection.interval must be at least 1 second, got %d", c.Collection.Interval)
	}
	if c.Collection.MaxCollections < 0 {
		return fmt.Errorf("config: collection.max_collections must not be negative, got %d", c.Collection.MaxCollections)
	}
	if _, err := model.ParseDuration(c.Collection.RateWindow); err != nil {
		return fmt.Errorf("config: collection.rate_window: %w", err)
	}
	if c.Output.Dir == "" {
		return errors.New("config: output.dir is required")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	return nil
}

// ParseLabels parses comma-separated "key=value" pairs. Entries without
// a key or without "=" are returned in malformed so callers can report
// them.
func ParseLabels(s string) (labels map[string]string, malformed []string) {
	labels = map[string]string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" {
			malformed = append(malformed, part)
			continue
		}
		labels[key] = value
	}
	return labels, malformed
}

// stringToLabelsHookFunc lets label maps arrive as "k=v,k2=v2" strings
// from environment variables and flags. Malformed entries are dropped
// here; flag parsing reports them before they reach the hook.
func stringToLabelsHookFunc() mapstructure.DecodeHookFuncType {
	mapType := reflect.TypeOf(map[string]string(nil))
	return func(f, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != mapType {
			return data, nil
		}
		labels, _ := ParseLabels(data.(string))
		return labels, nil
	}
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
