package sink

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/albertoperdomo2/llm-d-bench/internal/telemetry"
	"github.com/albertoperdomo2/llm-d-bench/pkg/catalog"
)

type snapshotFile struct {
	Metadata struct {
		SessionID        string            `json:"session_id"`
		BackendURL       string            `json:"backend_url"`
		Interval         int               `json:"collection_interval"`
		RateWindow       string            `json:"rate_window"`
		Labels           map[string]string `json:"labels"`
		StartTime        *string           `json:"start_time"`
		EndTime          *string           `json:"end_time"`
		TotalCollections int               `json:"total_collections"`
		CollectorVersion string            `json:"collector_version"`
		Build            map[string]string `json:"collector_build"`
	} `json:"metadata"`
	Metrics []map[string]any `json:"metrics"`
}

func readSnapshot(t *testing.T, path string) snapshotFile {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("parse snapshot: %v", err)
	}
	return snap
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.json")

	first := sampleRecord()
	second := telemetry.NewRecord(time.Unix(1700000001, 0))
	second.AddMetric("requests_running", telemetry.Scalar(catalog.KindGauge, telemetry.Absent()))

	meta := Metadata{
		SessionID:        "f3b9",
		BackendURL:       "https://thanos.example:9091",
		Interval:         1,
		RateWindow:       "1m",
		Labels:           map[string]string{"model": "llama"},
		CollectorVersion: "1.2.3",
		Build:            map[string]string{"git_commit": "abc1234", "go_version": "go1.25.7"},
	}
	records := []*telemetry.CollectionRecord{first, second}
	if err := WriteJSON(path, meta, records); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	snap := readSnapshot(t, path)
	if snap.Metadata.BackendURL != "https://thanos.example:9091" {
		t.Errorf("backend_url = %q", snap.Metadata.BackendURL)
	}
	if snap.Metadata.Interval != 1 {
		t.Errorf("collection_interval = %d, want 1", snap.Metadata.Interval)
	}
	if snap.Metadata.RateWindow != "1m" {
		t.Errorf("rate_window = %q, want 1m", snap.Metadata.RateWindow)
	}
	if snap.Metadata.Labels["model"] != "llama" {
		t.Errorf("labels = %v", snap.Metadata.Labels)
	}
	if snap.Metadata.TotalCollections != 2 {
		t.Errorf("total_collections = %d, want 2", snap.Metadata.TotalCollections)
	}
	if snap.Metadata.StartTime == nil || *snap.Metadata.StartTime != first.TimeISO {
		t.Errorf("start_time = %v, want %q", snap.Metadata.StartTime, first.TimeISO)
	}
	if snap.Metadata.EndTime == nil || *snap.Metadata.EndTime != second.TimeISO {
		t.Errorf("end_time = %v, want %q", snap.Metadata.EndTime, second.TimeISO)
	}
	if snap.Metadata.CollectorVersion != "1.2.3" {
		t.Errorf("collector_version = %q", snap.Metadata.CollectorVersion)
	}
	if snap.Metadata.Build["git_commit"] != "abc1234" {
		t.Errorf("collector_build = %v, want git_commit abc1234", snap.Metadata.Build)
	}

	if len(snap.Metrics) != 2 {
		t.Fatalf("metrics array len = %d, want 2", len(snap.Metrics))
	}
	if _, ok := snap.Metrics[0]["collection_timestamp"]; !ok {
		t.Error("record missing collection_timestamp")
	}

	// Absent values survive as explicit nulls, not dropped keys.
	obj, ok := snap.Metrics[1]["metrics"].(map[string]any)
	if !ok {
		t.Fatalf("record metrics not an object: %v", snap.Metrics[1])
	}
	entry, ok := obj["requests_running"].(map[string]any)
	if !ok {
		t.Fatalf("requests_running missing: %v", obj)
	}
	if v, present := entry["value"]; !present || v != nil {
		t.Errorf("absent value = %v, want explicit null", v)
	}
}

func TestWriteJSON_NoTicks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.json")
	if err := WriteJSON(path, Metadata{SessionID: "f3b9"}, nil); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	snap := readSnapshot(t, path)
	if snap.Metadata.TotalCollections != 0 {
		t.Errorf("total_collections = %d, want 0", snap.Metadata.TotalCollections)
	}
	if snap.Metadata.StartTime != nil || snap.Metadata.EndTime != nil {
		t.Errorf("start/end = %v/%v, want nulls", snap.Metadata.StartTime, snap.Metadata.EndTime)
	}
	if snap.Metrics == nil || len(snap.Metrics) != 0 {
		t.Errorf("metrics = %v, want empty array", snap.Metrics)
	}
	if snap.Metadata.Labels == nil {
		t.Error("labels = null, want empty object")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if !strings.Contains(string(data), "\"metrics\": []") {
		t.Errorf("metrics not an empty array:\n%s", data)
	}
}

func TestWriteJSON_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.json")

	if err := WriteJSON(path, Metadata{}, []*telemetry.CollectionRecord{sampleRecord()}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if err := WriteJSON(path, Metadata{}, nil); err != nil {
		t.Fatalf("WriteJSON rewrite: %v", err)
	}

	snap := readSnapshot(t, path)
	if snap.Metadata.TotalCollections != 0 {
		t.Errorf("total_collections after rewrite = %d, want 0", snap.Metadata.TotalCollections)
	}
}
