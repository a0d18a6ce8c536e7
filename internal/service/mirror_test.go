package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"partygame/internal/logging"
	"partygame/internal/repository"
	"partygame/pkg/config"
)

func newTestMirror(t *testing.T, workers, queue, retries int) *Mirror {
	t.Helper()
	m := NewMirror(config.PersistenceConfig{
		Workers:      workers,
		QueueSize:    queue,
		Retries:      retries,
		RetryBackoff: time.Millisecond,
		Timeout:      time.Second,
	}, logging.Nop())
	t.Cleanup(m.Close)
	return m
}

func flushMirror(t *testing.T, m *Mirror) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func TestMirror_RetriesTransientFailures(t *testing.T) {
	m := newTestMirror(t, 1, 8, 3)

	var calls atomic.Int32
	m.Enqueue("ABC", "flaky", func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	flushMirror(t, m)

	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestMirror_DoesNotRetryMissingRecords(t *testing.T) {
	m := newTestMirror(t, 1, 8, 5)

	var calls atomic.Int32
	m.Enqueue("ABC", "missing", func(context.Context) error {
		calls.Add(1)
		return repository.ErrNotFound
	})
	flushMirror(t, m)

	if got := calls.Load(); got != 1 {
		t.Errorf("Expected a single attempt, got %d", got)
	}
}

func TestMirror_PreservesPerSessionOrder(t *testing.T) {
	m := newTestMirror(t, 4, 256, 1)

	var mu sync.Mutex
	seen := make(map[string][]int)
	for i := 0; i < 50; i++ {
		for _, code := range []string{"AAA", "BBB", "CCC"} {
			m.Enqueue(code, "write", func(context.Context) error {
				mu.Lock()
				seen[code] = append(seen[code], i)
				mu.Unlock()
				return nil
			})
		}
	}
	flushMirror(t, m)

	for code, order := range seen {
		for i := range order {
			if order[i] != i {
				t.Fatalf("writes for %s out of order: %v", code, order)
			}
		}
	}
}

func TestMirror_DropsWhenFullOrClosed(t *testing.T) {
	m := newTestMirror(t, 1, 1, 1)

	release := make(chan struct{})
	started := make(chan struct{})
	m.Enqueue("ABC", "block", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	if !m.Enqueue("ABC", "queued", func(context.Context) error { return nil }) {
		t.Fatal("Expected second write to fit in the queue")
	}
	if m.Enqueue("ABC", "overflow", func(context.Context) error { return nil }) {
		t.Error("Expected overflow write to be dropped")
	}
	close(release)
	flushMirror(t, m)

	m.Close()
	if m.Enqueue("ABC", "late", func(context.Context) error { return nil }) {
		t.Error("Expected write after Close to be dropped")
	}
	if m.Pending() != 0 {
		t.Errorf("Expected no pending writes, got %d", m.Pending())
	}
}
