// Package history optionally mirrors every collection tick into a local
// SQLite database for ad-hoc SQL over past sessions. The CSV and JSON
// sinks stay authoritative; history writes are best-effort and never fail
// a tick.
package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/albertoperdomo2/llm-d-bench/internal/telemetry"
	"github.com/albertoperdomo2/llm-d-bench/pkg/catalog"
)

// Store records per-tick samples in SQLite, one row per (metric, query
// label) pair.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at the given path and applies
// recommended pragmas plus the samples schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite %q: %w", path, err)
	}

	// SQLite performs best with a single write connection. WAL enables
	// concurrent readers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping sqlite %q: %w", path, err)
	}

	// Apply recommended pragmas (modernc.org/sqlite requires SQL
	// statements, not DSN params).
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: exec %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS samples (
			session_id   TEXT    NOT NULL,
			tick         INTEGER NOT NULL,
			collected_at REAL    NOT NULL,
			metric       TEXT    NOT NULL,
			label        TEXT    NOT NULL,
			kind         TEXT    NOT NULL,
			value        REAL,
			PRIMARY KEY (session_id, tick, metric, label)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_metric
			ON samples(metric, collected_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("history: migrate: %w", err)
		}
	}
	return nil
}

// DB returns the underlying *sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// tx executes fn within a database transaction. The transaction is
// committed if fn returns nil, rolled back otherwise.
func (s *Store) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("history: rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}

// InsertRecord stores every sample of one tick in a single transaction.
// Absent samples are stored as NULL values; node samples are stored under
// the scalar label with gauge kind.
func (s *Store) InsertRecord(ctx context.Context, sessionID string, tick int, rec *telemetry.CollectionRecord) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO samples (session_id, tick, collected_at, metric, label, kind, value)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("history: prepare insert: %w", err)
		}
		defer stmt.Close()

		insert := func(metric, label string, kind catalog.Kind, v telemetry.SampleValue) error {
			var value sql.NullFloat64
			if f, ok := v.Float64(); ok {
				value = sql.NullFloat64{Float64: f, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, sessionID, tick, rec.Timestamp, metric, label, string(kind), value); err != nil {
				return fmt.Errorf("history: insert %s/%s: %w", metric, label, err)
			}
			return nil
		}

		for _, m := range rec.Metrics {
			for _, label := range m.Result.Labels() {
				if err := insert(m.Name, label, m.Result.Kind, m.Result.Value(label)); err != nil {
					return err
				}
			}
		}
		for _, n := range rec.Node {
			if err := insert(n.Name, telemetry.ScalarLabel, catalog.KindGauge, n.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Sample is one stored sample row.
type Sample struct {
	SessionID   string
	Tick        int
	CollectedAt float64
	Metric      string
	Label       string
	Kind        string
	Value       telemetry.SampleValue
}

// MetricRange returns all samples of one metric with collected_at inside
// [from, to], ordered by collection time then label.
func (s *Store) MetricRange(ctx context.Context, metric string, from, to float64) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, tick, collected_at, metric, label, kind, value
		FROM samples
		WHERE metric = ? AND collected_at >= ? AND collected_at <= ?
		ORDER BY collected_at, label`,
		metric, from, to)
	if err != nil {
		return nil, fmt.Errorf("history: query range: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var sm Sample
		var v sql.NullFloat64
		if err := rows.Scan(&sm.SessionID, &sm.Tick, &sm.CollectedAt, &sm.Metric, &sm.Label, &sm.Kind, &v); err != nil {
			return nil, fmt.Errorf("history: scan sample: %w", err)
		}
		if v.Valid {
			sm.Value = telemetry.Some(v.Float64)
		} else {
			sm.Value = telemetry.Absent()
		}
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate samples: %w", err)
	}
	return out, nil
}

// TickCount reports how many distinct ticks a session stored.
func (s *Store) TickCount(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT tick) FROM samples WHERE session_id = ?",
		sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("history: count ticks: %w", err)
	}
	return n, nil
}
