package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type mockPurger struct {
	mu    sync.Mutex
	calls int
	n     int64
	err   error
}

func (m *mockPurger) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.n, m.err
}

func (m *mockPurger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockMetrics struct {
	purged []int64
}

func (m *mockMetrics) RecordSessionsPurged(n int64) { m.purged = append(m.purged, n) }

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestSessionCleanupJob_Run_RecordsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	store := &mockPurger{n: 7}
	metrics := &mockMetrics{}
	job := NewSessionCleanupJob(store, metrics, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if store.callCount() != 1 {
		t.Errorf("DeleteExpired calls = %d, want 1", store.callCount())
	}
	if len(metrics.purged) != 1 || metrics.purged[0] != 7 {
		t.Errorf("purged metrics = %v, want [7]", metrics.purged)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v\nraw: %s", err, buf.String())
	}
	if entry["deleted_count"] != float64(7) {
		t.Errorf("deleted_count = %v, want 7", entry["deleted_count"])
	}
}

func TestSessionCleanupJob_Run_ReturnsStoreError(t *testing.T) {
	var buf bytes.Buffer
	store := &mockPurger{err: errors.New("connection refused")}
	metrics := &mockMetrics{}
	job := NewSessionCleanupJob(store, metrics, newTestLogger(&buf))

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("Run() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error = %v, want to wrap the store error", err)
	}
	if len(metrics.purged) != 0 {
		t.Errorf("purged metrics = %v, want none on failure", metrics.purged)
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Error("failure was not logged at ERROR level")
	}
}

func TestSessionCleanupJob_Run_NilMetrics(t *testing.T) {
	job := NewSessionCleanupJob(&mockPurger{n: 1}, nil, nil)
	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestSessionCleanupJob_Start_RunsImmediatelyAndStops(t *testing.T) {
	var buf bytes.Buffer
	store := &mockPurger{}
	job := NewSessionCleanupJob(store, nil, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for store.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.callCount() == 0 {
		t.Fatal("Start did not run the job immediately")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
