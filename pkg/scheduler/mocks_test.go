package scheduler

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"

	"github.com/platinummonkey/billrun/pkg/observability"
)

// mockBiller counts calls. BillAllPendingFunc overrides the default no-op.
type mockBiller struct {
	calls atomic.Int32

	BillAllPendingFunc func(ctx context.Context) error
}

func (m *mockBiller) BillAllPending(ctx context.Context) error {
	m.calls.Add(1)
	if m.BillAllPendingFunc != nil {
		return m.BillAllPendingFunc(ctx)
	}
	return nil
}

// mockLocker returns the configured outcome and counts releases. Closing
// lost simulates the lock being taken away.
type mockLocker struct {
	mu       sync.Mutex
	ok       bool
	err      error
	lost     chan struct{}
	released int
}

func (m *mockLocker) TryLock(ctx context.Context) (func(), <-chan struct{}, bool, error) {
	if m.err != nil || !m.ok {
		return nil, nil, false, m.err
	}
	var lost <-chan struct{}
	if m.lost != nil {
		lost = m.lost
	}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.released++
	}, lost, true, nil
}

func (m *mockLocker) releases() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

func newTestJob(biller Biller, locker Locker) (*Job, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.DebugLevel, &syncWriter{w: &buf})
	return NewJob(biller, locker, NewHistory(10), logger, nil), &buf
}

// syncWriter serializes writes from the cron goroutine and the test
type syncWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
