package async

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/billrun/pkg/observability"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestGroup() (*Group, *lockedBuffer) {
	buf := &lockedBuffer{}
	return NewGroup(observability.NewLogger(observability.DebugLevel, buf)), buf
}

func waitGroup(t *testing.T, g *Group) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, g.Wait(ctx))
}

func TestSafeGo_Success(t *testing.T) {
	g, logs := newTestGroup()
	executed := atomic.Bool{}

	g.SafeGo(context.Background(), time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})
	waitGroup(t, g)

	assert.True(t, executed.Load())
	assert.Empty(t, logs.String())
}

func TestSafeGo_WithError(t *testing.T) {
	g, logs := newTestGroup()

	g.SafeGo(context.Background(), 0, "test task", func(ctx context.Context) error {
		return errors.New("test error")
	})
	waitGroup(t, g)

	assert.Contains(t, logs.String(), "background task failed")
	assert.Contains(t, logs.String(), "test error")
	assert.Contains(t, logs.String(), `"task":"test task"`)
}

func TestSafeGo_Timeout(t *testing.T) {
	g, _ := newTestGroup()
	var gotErr error

	g.SafeGo(context.Background(), 50*time.Millisecond, "test task", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			gotErr = ctx.Err()
			return gotErr
		}
	})
	waitGroup(t, g)

	assert.ErrorIs(t, gotErr, context.DeadlineExceeded)
}

func TestSafeGo_NoTimeout(t *testing.T) {
	g, _ := newTestGroup()
	var hasDeadline bool

	g.SafeGo(context.Background(), 0, "test task", func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	})
	waitGroup(t, g)

	assert.False(t, hasDeadline)
}

func TestSafeGo_PanicRecovery(t *testing.T) {
	g, logs := newTestGroup()

	g.SafeGo(context.Background(), time.Second, "test task", func(ctx context.Context) error {
		panic("test panic")
	})
	waitGroup(t, g)

	assert.Contains(t, logs.String(), "PANIC recovered")
	assert.Contains(t, logs.String(), "test panic")
}

func TestSafeGo_RunIDLogged(t *testing.T) {
	g, logs := newTestGroup()
	ctx := observability.WithRunID(context.Background(), "run-123")

	g.SafeGo(ctx, 0, "billing run", func(ctx context.Context) error {
		return errors.New("failed")
	})
	waitGroup(t, g)

	assert.Contains(t, logs.String(), `"run_id":"run-123"`)
}

func TestGroup_WaitTimesOut(t *testing.T) {
	g, _ := newTestGroup()
	release := make(chan struct{})
	defer close(release)

	g.SafeGo(context.Background(), 0, "blocked", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.Wait(ctx), context.DeadlineExceeded)
}
