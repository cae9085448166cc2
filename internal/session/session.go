// Package session drives the collection loop: strictly sequential ticks
// from the first query to the final JSON snapshot. A tick that has
// started always completes, shutdown signals are observed only between
// ticks and during the inter-tick sleep, and the snapshot is written on
// every exit path.
package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/albertoperdomo2/llm-d-bench/internal/sink"
	"github.com/albertoperdomo2/llm-d-bench/internal/telemetry"
	"github.com/albertoperdomo2/llm-d-bench/pkg/catalog"
)

// State is the lifecycle phase of a session.
type State int32

const (
	// StateIdle is the phase before Run is called.
	StateIdle State = iota
	// StateRunning covers the tick loop.
	StateRunning
	// StateDraining covers the final snapshot write; it is terminal.
	StateDraining
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Executor runs one instant query, reducing every failure to an absent
// sample.
type Executor interface {
	Execute(ctx context.Context, query string) telemetry.SampleValue
}

// NodeSampler reads host counters once per tick.
type NodeSampler interface {
	Sample(ctx context.Context) []telemetry.NodeSample
}

// Recorder mirrors completed ticks into secondary storage.
type Recorder interface {
	InsertRecord(ctx context.Context, sessionID string, tick int, rec *telemetry.CollectionRecord) error
}

// Config carries the immutable parameters of one collection session.
type Config struct {
	// Metrics are the backend metric names to collect, already
	// normalized, in collection order.
	Metrics []string
	// Labels filter every query of the session.
	Labels map[string]string
	// RateWindow is the time span for rate() and quantile queries.
	RateWindow string
	// Interval is the sleep between ticks.
	Interval time.Duration
	// MaxCollections stops the session after this many ticks; 0 runs
	// until a shutdown signal.
	MaxCollections int
	// CSVPath and JSONPath are the session's output files.
	CSVPath  string
	JSONPath string
	// Metadata seeds the JSON snapshot header. SessionID, StartTime,
	// EndTime, and TotalCollections are filled in by the session.
	Metadata sink.Metadata
}

// Deps are the collaborators of a session.
type Deps struct {
	Catalog  *catalog.Catalog
	Executor Executor
	// Sampler may be nil, disabling node metrics.
	Sampler NodeSampler
	// Recorder may be nil, disabling the history mirror.
	Recorder Recorder
}

// Session owns one collection run. Not safe for concurrent use: Run is
// the only goroutine touching the collected state.
type Session struct {
	cfg      Config
	plan     []metricPlan
	executor Executor
	sampler  NodeSampler
	recorder Recorder
	logger   *zap.Logger

	id      string
	csv     *sink.CSVWriter
	schema  *sink.Schema
	records []*telemetry.CollectionRecord
	state   atomic.Int32
}

// New prepares a session: resolves every configured metric to its
// descriptor (warning once per inferred kind) and precomputes the query
// plan, which is constant for the session's lifetime.
func New(cfg Config, deps Deps, logger *zap.Logger) *Session {
	s := &Session{
		cfg:      cfg,
		plan:     buildPlan(cfg, deps.Catalog, logger),
		executor: deps.Executor,
		sampler:  deps.Sampler,
		recorder: deps.Recorder,
		logger:   logger,
		id:       uuid.New().String(),
		csv:      sink.NewCSVWriter(cfg.CSVPath),
	}
	s.state.Store(int32(StateIdle))
	return s
}

// ID returns the session identifier stamped into the JSON metadata.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle phase. Safe to call from other
// goroutines.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run drives the session until ctx is cancelled, the configured number of
// collections completes, or a tick fails fatally. Draining always writes
// the JSON snapshot before Run returns. The returned error is nil for
// signal-driven and max-collection shutdowns.
func (s *Session) Run(ctx context.Context) error {
	s.state.Store(int32(StateRunning))
	s.logger.Info("starting metrics collection",
		zap.String("session_id", s.id),
		zap.Int("metric_count", len(s.plan)),
		zap.Duration("interval", s.cfg.Interval),
		zap.Bool("node_metrics", s.sampler != nil))

	var fatal error

loop:
	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			s.logger.Info("shutdown requested, draining")
			break loop
		default:
		}

		s.logger.Info("collection tick", zap.Int("tick", tick))
		if err := s.runTick(tick); err != nil {
			fatal = err
			s.logger.Error("fatal tick error, draining", zap.Int("tick", tick), zap.Error(err))
			break loop
		}

		if s.cfg.MaxCollections > 0 && tick >= s.cfg.MaxCollections {
			s.logger.Info("configured collection count reached, draining",
				zap.Int("collections", tick))
			break loop
		}

		// Sleep between ticks only while still running; a signal during
		// the sleep wakes the loop immediately instead of adding
		// shutdown latency.
		select {
		case <-ctx.Done():
			s.logger.Info("shutdown requested during sleep, draining")
			break loop
		case <-time.After(s.cfg.Interval):
		}
	}

	return s.drain(fatal)
}

// runTick performs one full collection. Nothing inside the tick body is
// allowed to escape uncaught: a panic is converted into the fatal error
// that drains the session.
func (s *Session) runTick(tick int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session: tick %d panicked: %v", tick, r)
		}
	}()

	// The tick runs on its own context: an arriving shutdown signal must
	// not cancel in-flight queries, it is observed at the loop
	// boundaries instead.
	ctx := context.Background()

	rec := s.collect(ctx)
	s.records = append(s.records, rec)

	if s.schema == nil {
		s.schema = sink.Derive(rec)
		if err := s.csv.Begin(s.schema); err != nil {
			return fmt.Errorf("session: write csv header: %w", err)
		}
		s.logger.Info("csv schema frozen",
			zap.Int("columns", s.schema.Len()),
			zap.String("path", s.csv.Path()))
	}
	if err := s.csv.Append(rec); err != nil {
		return fmt.Errorf("session: append csv row: %w", err)
	}

	if s.recorder != nil {
		if err := s.recorder.InsertRecord(ctx, s.id, tick, rec); err != nil {
			s.logger.Error("history insert failed", zap.Int("tick", tick), zap.Error(err))
		}
	}

	s.logTickSummary(tick, rec)
	return nil
}

// drain writes the JSON snapshot covering every completed tick. A fatal
// tick error takes precedence over a snapshot write error in the result.
func (s *Session) drain(fatal error) error {
	s.state.Store(int32(StateDraining))

	meta := s.cfg.Metadata
	meta.SessionID = s.id
	s.logger.Info("writing json snapshot",
		zap.String("path", s.cfg.JSONPath),
		zap.Int("total_collections", len(s.records)))

	if err := sink.WriteJSON(s.cfg.JSONPath, meta, s.records); err != nil {
		s.logger.Error("json snapshot write failed", zap.Error(err))
		if fatal == nil {
			fatal = err
		}
	}

	s.logger.Info("collection session complete",
		zap.Int("total_collections", len(s.records)),
		zap.String("csv", s.cfg.CSVPath),
		zap.String("json", s.cfg.JSONPath))
	return fatal
}
