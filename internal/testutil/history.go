package testutil

import (
	"testing"

	"github.com/albertoperdomo2/llm-d-bench/internal/history"
)

// NewHistory creates an in-memory history store for testing.
// The store is automatically closed when the test completes.
func NewHistory(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.Open(":memory:")
	if err != nil {
		t.Fatalf("testutil.NewHistory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
