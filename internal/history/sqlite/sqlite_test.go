package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/smokeprobe/internal/history"
)

func TestSQLiteSink_Integration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	sink, err := New("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	ctx := context.Background()
	events := []history.Event{
		{Type: history.EventLaunch, RunID: "run-1", Target: "backend", PID: 4242, OccurredAt: time.Now()},
		{Type: history.EventReady, RunID: "run-1", Target: "backend", PID: 4242, Attempt: 3, URL: "http://localhost:8080/api/health", Status: 401, OccurredAt: time.Now()},
		{Type: history.EventRun, RunID: "run-1", Detail: "success", OccurredAt: time.Now()},
		{Type: history.EventRun, RunID: "run-2", Detail: "timeout", OccurredAt: time.Now()},
	}
	for _, e := range events {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("Failed to send %s event: %v", e.Type, err)
		}
	}

	n, err := sink.CountRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 events for run-1, got %d", n)
	}
}

func TestSQLiteSink_SchemaIsReentrant(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "twice.db")
	for i := 0; i < 2; i++ {
		s, err := New(dbPath)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if err := s.Send(context.Background(), history.Event{Type: history.EventStop, RunID: "r", Target: "frontend"}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		_ = s.Close()
	}
}

func TestSQLiteSink_EmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}
