package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"partygame/internal/logging"
	"partygame/internal/repository"
	"partygame/pkg/config"
)

type recordedEvent struct {
	target  string
	event   string
	payload any
}

// recorder 記錄所有廣播，取代真正的 Hub
type recorder struct {
	mu     sync.Mutex
	room   []recordedEvent
	direct []recordedEvent
	joined map[string]string
}

func newRecorder() *recorder {
	return &recorder{joined: make(map[string]string)}
}

func (r *recorder) EmitToRoom(code, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.room = append(r.room, recordedEvent{target: code, event: event, payload: payload})
}

func (r *recorder) EmitToConnection(connID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct = append(r.direct, recordedEvent{target: connID, event: event, payload: payload})
}

func (r *recorder) JoinRoom(connID, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joined[connID] = code
}

func (r *recorder) LeaveRoom(connID, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.joined[connID] == code {
		delete(r.joined, connID)
	}
}

func (r *recorder) roomEvents(event string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.room {
		if e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

func (r *recorder) directEvents(connID, event string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.direct {
		if e.target == connID && e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

// fakeClock 讓測試手動觸發回合計時器
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *fakeClock) afterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// fire 不論是否已停止都執行回呼，模擬計時器與停止呼叫的競爭
func (c *fakeClock) fire(i int) {
	c.mu.Lock()
	t := c.timers[i]
	c.mu.Unlock()
	t.f()
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

type testEnv struct {
	reg   *Registry
	bus   *recorder
	store *repository.MemoryStore
	clock *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := repository.NewMemoryStore()
	mirror := NewMirror(config.PersistenceConfig{
		Workers:      2,
		QueueSize:    256,
		Retries:      2,
		RetryBackoff: time.Millisecond,
		Timeout:      time.Second,
	}, logging.Nop())
	t.Cleanup(mirror.Close)

	bus := newRecorder()
	reg := NewRegistry(store, mirror, bus, nil, Options{
		IdleTTL:     time.Minute,
		Defaults:    RoundDefaults{TimeLimit: 20 * time.Second, Points: 100},
		CodeLength:  6,
		CodeRetries: 5,
	}, logging.Nop())

	clock := &fakeClock{}
	reg.afterFunc = clock.afterFunc

	return &testEnv{reg: reg, bus: bus, store: store, clock: clock}
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	code, err := e.reg.CreateSession(context.Background(), "host")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	return code
}

func (e *testEnv) join(t *testing.T, code, connID, name string) {
	t.Helper()
	if _, err := e.reg.JoinParticipant(context.Background(), code, connID, name); err != nil {
		t.Fatalf("JoinParticipant(%s) error = %v", connID, err)
	}
}

func (e *testEnv) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.reg.mirror.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func intPtr(v int) *int {
	return &v
}
