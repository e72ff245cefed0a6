package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wiltort/bot-constructor/internal/lib/sl"

	"github.com/google/uuid"
)

// Executor runs one attempt of a task.
type Executor func(ctx context.Context, t Task) Outcome

// Pool pulls tasks from a Queue and runs them on a fixed number of workers,
// recording every state change in the ResultStore.
type Pool struct {
	queue   Queue
	results ResultStore
	exec    Executor
	policy  RetryPolicy
	workers int
	log     *slog.Logger

	timersMu sync.Mutex
	timers   map[string]*time.Timer
}

func NewPool(queue Queue, results ResultStore, exec Executor, policy RetryPolicy, workers int, log *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return &Pool{
		queue:   queue,
		results: results,
		exec:    exec,
		policy:  policy,
		workers: workers,
		log:     log.With(sl.Module("taskqueue")),
		timers:  make(map[string]*time.Timer),
	}
}

// Enqueue records a pending task and puts it on the queue.
func (p *Pool) Enqueue(ctx context.Context, taskType TaskType, botID string) (Info, error) {
	t := Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		BotID:      botID,
		EnqueuedAt: time.Now(),
	}
	info := Info{
		ID:        t.ID,
		Type:      t.Type,
		BotID:     t.BotID,
		State:     StatePending,
		UpdatedAt: t.EnqueuedAt,
	}
	if err := p.results.Set(ctx, info); err != nil {
		return Info{}, fmt.Errorf("saving task state: %w", err)
	}
	if err := p.queue.Enqueue(ctx, t); err != nil {
		return Info{}, fmt.Errorf("enqueue task: %w", err)
	}
	return info, nil
}

// Status returns the task record, nil if unknown.
func (p *Pool) Status(ctx context.Context, id string) (*Info, error) {
	return p.results.Get(ctx, id)
}

// Run starts the workers and blocks until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				processed, err := p.ProcessOne(ctx)
				if ctx.Err() != nil {
					return
				}
				if err != nil && !processed {
					p.log.Error("dequeue", sl.Err(err))
					time.Sleep(time.Second)
				}
			}
		}()
	}
	wg.Wait()

	p.timersMu.Lock()
	for id, t := range p.timers {
		t.Stop()
		delete(p.timers, id)
	}
	p.timersMu.Unlock()
}

// ProcessOne pulls a single task from the queue and runs one attempt.
func (p *Pool) ProcessOne(ctx context.Context) (bool, error) {
	task, err := p.queue.Dequeue(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		return false, err
	}
	if task == nil {
		return false, nil
	}
	p.handle(ctx, *task)
	return true, nil
}

func (p *Pool) handle(ctx context.Context, t Task) {
	log := p.log.With(
		slog.String("task_id", t.ID),
		slog.String("type", string(t.Type)),
		slog.String("bot_id", t.BotID),
	)

	t.Attempts++
	p.record(ctx, t, StateStarted, "", nil)

	out := p.run(ctx, t)

	switch out.Kind {
	case Success:
		p.record(ctx, t, StateSuccess, out.Result, nil)
		log.Info("task done", slog.String("result", out.Result))
	case Retryable:
		if !p.policy.ShouldRetry(t.Attempts) {
			p.record(ctx, t, StateFailure, "", out.Err)
			log.Error("task failed, no attempts left", slog.Int("attempts", t.Attempts), sl.Err(out.Err))
			return
		}
		delay := p.policy.Backoff(t.Attempts)
		p.record(ctx, t, StateRetry, "", out.Err)
		log.Warn("task will be retried",
			slog.Int("attempts", t.Attempts),
			slog.Duration("delay", delay),
			sl.Err(out.Err),
		)
		p.retryAfter(t, delay)
	default:
		p.record(ctx, t, StateFailure, "", out.Err)
		log.Error("task failed", sl.Err(out.Err))
	}
}

func (p *Pool) run(ctx context.Context, t Task) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Failed(fmt.Errorf("task panic: %v", r))
		}
	}()
	return p.exec(ctx, t)
}

func (p *Pool) retryAfter(t Task, delay time.Duration) {
	p.timersMu.Lock()
	defer p.timersMu.Unlock()
	p.timers[t.ID] = time.AfterFunc(delay, func() {
		p.timersMu.Lock()
		delete(p.timers, t.ID)
		p.timersMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.queue.Enqueue(ctx, t); err != nil {
			p.record(ctx, t, StateFailure, "", fmt.Errorf("re-enqueue: %w", err))
			p.log.Error("re-enqueue task", slog.String("task_id", t.ID), sl.Err(err))
		}
	})
}

func (p *Pool) record(ctx context.Context, t Task, state State, result string, err error) {
	info := Info{
		ID:        t.ID,
		Type:      t.Type,
		BotID:     t.BotID,
		State:     state,
		Result:    result,
		Attempts:  t.Attempts,
		UpdatedAt: time.Now(),
	}
	if err != nil {
		info.Error = err.Error()
	}
	if setErr := p.results.Set(ctx, info); setErr != nil {
		p.log.Error("saving task state", slog.String("task_id", t.ID), sl.Err(setErr))
	}
}
