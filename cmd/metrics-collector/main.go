package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/albertoperdomo2/llm-d-bench/internal/config"
	"github.com/albertoperdomo2/llm-d-bench/internal/history"
	"github.com/albertoperdomo2/llm-d-bench/internal/nodestats"
	"github.com/albertoperdomo2/llm-d-bench/internal/promql"
	"github.com/albertoperdomo2/llm-d-bench/internal/session"
	"github.com/albertoperdomo2/llm-d-bench/internal/sink"
	"github.com/albertoperdomo2/llm-d-bench/internal/version"
	"github.com/albertoperdomo2/llm-d-bench/pkg/catalog"
)

// flagKeys maps command-line flags onto their configuration keys. Only
// flags the user actually set override the file and environment.
var flagKeys = map[string]string{
	"backend-url":          "backend.url",
	"token-file":           "backend.token_file",
	"insecure-skip-verify": "backend.insecure_skip_verify",
	"query-timeout":        "backend.timeout",
	"interval":             "collection.interval",
	"metrics":              "collection.metrics",
	"rate-window":          "collection.rate_window",
	"max-collections":      "collection.max_collections",
	"output-dir":           "output.dir",
	"history-db":           "history.path",
	"log-level":            "log.level",
}

func main() {
	d := config.Default()
	configPath := flag.String("config", "", "path to configuration file")
	labelsFlag := flag.String("labels", "", "comma-separated key=value label filters")
	noNode := flag.Bool("no-node-metrics", false, "disable node-level metric sampling")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.String("backend-url", "", "Thanos or Prometheus query URL")
	flag.String("token-file", d.Backend.TokenFile, "bearer token file for backend auth")
	flag.Bool("insecure-skip-verify", d.Backend.InsecureSkipVerify, "skip TLS certificate verification")
	flag.Duration("query-timeout", d.Backend.Timeout, "timeout for each backend query")
	flag.Int("interval", d.Collection.Interval, "seconds between collections")
	flag.String("metrics", "", "comma-separated metric names, default is the catalog's default collection")
	flag.String("rate-window", d.Collection.RateWindow, "window for rate and quantile queries")
	flag.Int("max-collections", d.Collection.MaxCollections, "stop after this many collections, 0 runs until signalled")
	flag.String("output-dir", d.Output.Dir, "directory for CSV and JSON results")
	flag.String("history-db", "", "SQLite file mirroring collected ticks")
	flag.String("log-level", d.Log.Level, "log level: debug, info, warn, error")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	overrides := map[string]any{}
	labelsSet := false
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "no-node-metrics":
			overrides["node.enabled"] = !*noNode
		case "labels":
			labelsSet = true
		default:
			if key, ok := flagKeys[f.Name]; ok {
				overrides[key] = f.Value.String()
			}
		}
	})
	labels, malformed := config.ParseLabels(*labelsFlag)
	if labelsSet {
		overrides["collection.labels"] = labels
	}

	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintln(os.Stderr, "metrics-collector:", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "metrics-collector:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("metrics collector starting", zap.String("version", version.Short()))
	for _, m := range malformed {
		logger.Warn("ignoring malformed label", zap.String("label", m))
	}

	cat, err := catalog.Load()
	if err != nil {
		logger.Fatal("failed to load metric catalog", zap.Error(err))
	}
	names := cfg.Collection.Metrics
	if len(names) == 0 {
		names = cat.DefaultMetrics()
	}
	names = catalog.Normalize(names)

	client, err := promql.NewClient(promql.ClientConfig{
		URL:                cfg.Backend.URL,
		TokenFile:          cfg.Backend.TokenFile,
		InsecureSkipVerify: cfg.Backend.InsecureSkipVerify,
		Timeout:            cfg.Backend.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal("failed to build query client", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		logger.Fatal("failed to create output directory", zap.Error(err))
	}
	csvPath, jsonPath := sink.Paths(cfg.Output.Dir, time.Now())

	var sampler session.NodeSampler
	if cfg.Node.Enabled {
		sampler = nodestats.NewSampler(logger)
	}

	var recorder session.Recorder
	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			logger.Fatal("failed to open history store", zap.Error(err))
		}
		defer store.Close()
		recorder = store
	}

	sess := session.New(session.Config{
		Metrics:        names,
		Labels:         cfg.Collection.Labels,
		RateWindow:     cfg.Collection.RateWindow,
		Interval:       time.Duration(cfg.Collection.Interval) * time.Second,
		MaxCollections: cfg.Collection.MaxCollections,
		CSVPath:        csvPath,
		JSONPath:       jsonPath,
		Metadata: sink.Metadata{
			BackendURL:       strings.TrimRight(cfg.Backend.URL, "/"),
			Interval:         cfg.Collection.Interval,
			RateWindow:       cfg.Collection.RateWindow,
			Labels:           cfg.Collection.Labels,
			CollectorVersion: version.Short(),
			Build:            version.Map(),
		},
	}, session.Deps{
		Catalog:  cat,
		Executor: client,
		Sampler:  sampler,
		Recorder: recorder,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("metrics collector ready",
		zap.String("backend", cfg.Backend.URL),
		zap.Int("metrics", len(names)),
		zap.String("csv", csvPath),
		zap.String("json", jsonPath))

	if err := sess.Run(ctx); err != nil {
		logger.Fatal("collection session failed", zap.Error(err))
	}
	logger.Info("metrics collector stopped")
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
