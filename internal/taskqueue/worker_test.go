package taskqueue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPolicy(max int) RetryPolicy {
	return RetryPolicy{MaxAttempts: max, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 20 * time.Millisecond, Multiplier: 2}
}

func runPool(t *testing.T, exec Executor, policy RetryPolicy) (*Pool, context.CancelFunc) {
	t.Helper()
	p := NewPool(NewInMemoryQueue(16), NewMemoryResults(time.Hour), exec, policy, 2, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p, cancel
}

func waitState(t *testing.T, p *Pool, id string, want State) *Info {
	t.Helper()
	var info *Info
	require.Eventually(t, func() bool {
		var err error
		info, err = p.Status(context.Background(), id)
		return err == nil && info != nil && info.State == want
	}, 3*time.Second, 5*time.Millisecond)
	return info
}

func TestPool_Success(t *testing.T) {
	p, _ := runPool(t, func(_ context.Context, task Task) Outcome {
		return Succeeded("started " + task.BotID)
	}, fastPolicy(3))

	info, err := p.Enqueue(context.Background(), TaskStart, "b1")
	require.NoError(t, err)
	assert.Equal(t, StatePending, info.State)
	assert.NotEmpty(t, info.ID)

	got := waitState(t, p, info.ID, StateSuccess)
	assert.Equal(t, "started b1", got.Result)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, TaskStart, got.Type)
}

func TestPool_FatalIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	p, _ := runPool(t, func(context.Context, Task) Outcome {
		calls.Add(1)
		return Failed(errors.New("bad config"))
	}, fastPolicy(3))

	info, err := p.Enqueue(context.Background(), TaskStart, "b1")
	require.NoError(t, err)

	got := waitState(t, p, info.ID, StateFailure)
	assert.Equal(t, "bad config", got.Error)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPool_RetryThenSuccess(t *testing.T) {
	var calls atomic.Int32
	p, _ := runPool(t, func(context.Context, Task) Outcome {
		if calls.Add(1) < 3 {
			return RetryLater(errors.New("telegram unreachable"))
		}
		return Succeeded("started")
	}, fastPolicy(3))

	info, err := p.Enqueue(context.Background(), TaskRestart, "b1")
	require.NoError(t, err)

	got := waitState(t, p, info.ID, StateSuccess)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPool_RetryExhausted(t *testing.T) {
	var calls atomic.Int32
	p, _ := runPool(t, func(context.Context, Task) Outcome {
		calls.Add(1)
		return RetryLater(errors.New("still stopping"))
	}, fastPolicy(3))

	info, err := p.Enqueue(context.Background(), TaskStart, "b1")
	require.NoError(t, err)

	got := waitState(t, p, info.ID, StateFailure)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, "still stopping", got.Error)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPool_PanicIsFatal(t *testing.T) {
	p, _ := runPool(t, func(context.Context, Task) Outcome {
		panic("executor bug")
	}, fastPolicy(3))

	info, err := p.Enqueue(context.Background(), TaskStop, "b1")
	require.NoError(t, err)

	got := waitState(t, p, info.ID, StateFailure)
	assert.Contains(t, got.Error, "executor bug")
}

func TestPool_UnknownTask(t *testing.T) {
	p := NewPool(NewInMemoryQueue(1), NewMemoryResults(0), nil, fastPolicy(1), 1, testLogger())
	info, err := p.Status(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 5*time.Second, p.Backoff(1))
	assert.Equal(t, 10*time.Second, p.Backoff(2))
	assert.Equal(t, 40*time.Second, p.Backoff(4))
	assert.Equal(t, 60*time.Second, p.Backoff(5))
	assert.Equal(t, 60*time.Second, p.Backoff(10))

	assert.True(t, p.ShouldRetry(2))
	assert.False(t, p.ShouldRetry(3))
}

func TestMemoryResults_TTL(t *testing.T) {
	r := NewMemoryResults(20 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, r.Set(ctx, Info{ID: "t1", State: StatePending}))

	got, err := r.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)

	time.Sleep(30 * time.Millisecond)
	got, err = r.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInMemoryQueue_DequeueRespectsContext(t *testing.T) {
	q := NewInMemoryQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCodec(t *testing.T) {
	in := Task{ID: "t1", Type: TaskRestart, BotID: "b1", Attempts: 2, EnqueuedAt: time.Now().UTC()}
	data, err := EncodeTask(in)
	require.NoError(t, err)

	out, err := DecodeTask(data)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Attempts, out.Attempts)
	assert.True(t, in.EnqueuedAt.Equal(out.EnqueuedAt))

	_, err = DecodeTask([]byte{0x00, 0xff})
	assert.Error(t, err)
}
