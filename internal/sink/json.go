package sink

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/albertoperdomo2/llm-d-bench/internal/telemetry"
)

// Metadata is the session header of the JSON snapshot.
type Metadata struct {
	SessionID        string            `json:"session_id"`
	BackendURL       string            `json:"backend_url"`
	Interval         int               `json:"collection_interval"`
	RateWindow       string            `json:"rate_window"`
	Labels           map[string]string `json:"labels"`
	StartTime        *string           `json:"start_time"`
	EndTime          *string           `json:"end_time"`
	TotalCollections int               `json:"total_collections"`
	CollectorVersion string            `json:"collector_version"`
	// Build is the collector's full build identity (commit, build date,
	// Go version, platform).
	Build map[string]string `json:"collector_build,omitempty"`
}

type snapshot struct {
	Metadata Metadata                      `json:"metadata"`
	Metrics  []*telemetry.CollectionRecord `json:"metrics"`
}

// WriteJSON writes the cumulative session snapshot in full, overwriting
// any previous snapshot at path. StartTime, EndTime, and TotalCollections
// are filled in from the records; a session with no completed ticks gets
// null times and an empty metrics array.
func WriteJSON(path string, meta Metadata, records []*telemetry.CollectionRecord) error {
	meta.TotalCollections = len(records)
	if len(records) > 0 {
		meta.StartTime = &records[0].TimeISO
		meta.EndTime = &records[len(records)-1].TimeISO
	}
	if meta.Labels == nil {
		meta.Labels = map[string]string{}
	}
	if records == nil {
		records = []*telemetry.CollectionRecord{}
	}

	data, err := json.MarshalIndent(snapshot{Metadata: meta, Metrics: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("sink: marshal json snapshot: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("sink: write json snapshot: %w", err)
	}
	return nil
}
