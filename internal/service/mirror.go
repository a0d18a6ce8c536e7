package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"partygame/internal/repository"
	"partygame/pkg/config"
)

type mirrorJob struct {
	code string
	op   string
	fn   func(ctx context.Context) error
}

// Mirror 在背景執行持久化寫入，同一場次固定落在同一個 worker 以保持順序
type Mirror struct {
	queues  []chan mirrorJob
	retries int
	backoff time.Duration
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	closed  bool
	pending atomic.Int64
	wg      sync.WaitGroup
}

func NewMirror(cfg config.PersistenceConfig, logger *slog.Logger) *Mirror {
	workers := max(cfg.Workers, 1)
	queueSize := max(cfg.QueueSize, 1)

	m := &Mirror{
		queues:  make([]chan mirrorJob, workers),
		retries: max(cfg.Retries, 1),
		backoff: cfg.RetryBackoff,
		timeout: cfg.Timeout,
		logger:  logger,
	}
	if m.timeout <= 0 {
		m.timeout = 5 * time.Second
	}
	for i := range m.queues {
		m.queues[i] = make(chan mirrorJob, queueSize)
		m.wg.Add(1)
		go m.worker(m.queues[i])
	}
	return m
}

// Enqueue 不會阻塞，佇列已滿或已關閉時丟棄並記錄
func (m *Mirror) Enqueue(code, op string, fn func(ctx context.Context) error) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		m.logger.Warn("persistence mirror closed, write dropped", slog.String("session", code), slog.String("op", op))
		return false
	}

	m.pending.Add(1)
	select {
	case m.queues[m.shard(code)] <- mirrorJob{code: code, op: op, fn: fn}:
		return true
	default:
		m.pending.Add(-1)
		m.logger.Warn("persistence queue full, write dropped", slog.String("session", code), slog.String("op", op))
		return false
	}
}

// Pending 回傳尚未完成的寫入數量
func (m *Mirror) Pending() int64 {
	return m.pending.Load()
}

// Flush 等待目前佇列中的寫入全部完成
func (m *Mirror) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for m.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Close 停止接受新的寫入並等待佇列清空
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, q := range m.queues {
		close(q)
	}
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Mirror) shard(code string) int {
	h := fnv.New32a()
	h.Write([]byte(code))
	return int(h.Sum32() % uint32(len(m.queues)))
}

func (m *Mirror) worker(queue <-chan mirrorJob) {
	defer m.wg.Done()
	for job := range queue {
		if err := m.run(job); err != nil {
			m.logger.Warn("persistence write failed",
				slog.String("session", job.code),
				slog.String("op", job.op),
				slog.Any("error", err))
		}
		m.pending.Add(-1)
	}
}

func (m *Mirror) run(job mirrorJob) error {
	var err error
	for attempt := 1; attempt <= m.retries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		err = job.fn(ctx)
		cancel()

		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrDuplicate) {
			return err
		}
		if attempt < m.retries {
			m.logger.Debug("persistence write retry",
				slog.String("session", job.code),
				slog.String("op", job.op),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			time.Sleep(m.backoff * time.Duration(attempt))
		}
	}
	return fmt.Errorf("%w: %s after %d attempts: %v", ErrPersistenceUnavailable, job.op, m.retries, err)
}
