package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/wiltort/bot-constructor/bot/runtime"
	repository "github.com/wiltort/bot-constructor/internal/database"
	"github.com/wiltort/bot-constructor/internal/taskqueue"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRegistry struct {
	mu      sync.Mutex
	running map[string]bool
	errs    map[string]error
	pingErr map[string]error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		running: make(map[string]bool),
		errs:    make(map[string]error),
		pingErr: make(map[string]error),
	}
}

func (r *fakeRegistry) setRunning(id string, running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[id] = running
}

func (r *fakeRegistry) Start(_ context.Context, id string) (runtime.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errs[id]; err != nil {
		return "", err
	}
	if r.running[id] {
		return runtime.ResultAlreadyRunning, nil
	}
	r.running[id] = true
	return runtime.ResultStarted, nil
}

func (r *fakeRegistry) Stop(_ context.Context, id string) (runtime.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running[id] {
		return runtime.ResultAlreadyStopped, nil
	}
	r.running[id] = false
	return runtime.ResultStopped, nil
}

func (r *fakeRegistry) Restart(_ context.Context, id string) (runtime.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errs[id]; err != nil {
		return "", err
	}
	r.running[id] = true
	return runtime.ResultRestarted, nil
}

func (r *fakeRegistry) Status(id string) runtime.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[id] {
		return runtime.Status{BotID: id, Phase: runtime.PhaseRunning, IsRunning: true}
	}
	return runtime.Status{BotID: id, Phase: runtime.PhaseStopped}
}

func (r *fakeRegistry) IsRunning(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running[id]
}

func (r *fakeRegistry) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, ok := range r.running {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (r *fakeRegistry) Ping(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pingErr[id]
}

func (r *fakeRegistry) StopAll(ctx context.Context) int {
	n := 0
	for _, id := range r.Running() {
		if res, _ := r.Stop(ctx, id); res == runtime.ResultStopped {
			n++
		}
	}
	return n
}

type fakePool struct {
	mu    sync.Mutex
	tasks []taskqueue.Info
	fail  error
}

func (p *fakePool) Enqueue(_ context.Context, taskType taskqueue.TaskType, botID string) (taskqueue.Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return taskqueue.Info{}, p.fail
	}
	info := taskqueue.Info{
		ID:        fmt.Sprintf("task-%d", len(p.tasks)+1),
		Type:      taskType,
		BotID:     botID,
		State:     taskqueue.StatePending,
		UpdatedAt: time.Now(),
	}
	p.tasks = append(p.tasks, info)
	return info, nil
}

func (p *fakePool) Status(_ context.Context, id string) (*taskqueue.Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, info := range p.tasks {
		if info.ID == id {
			cp := info
			return &cp, nil
		}
	}
	return nil, nil
}

func (p *fakePool) count(taskType taskqueue.TaskType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, info := range p.tasks {
		if info.Type == taskType {
			n++
		}
	}
	return n
}

type fakeNotifier struct {
	mu     sync.Mutex
	failed map[string]error
}

func (n *fakeNotifier) PublishUnreachable(botID string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failed == nil {
		n.failed = make(map[string]error)
	}
	n.failed[botID] = err
}

var errNetwork = errors.New("connection reset")

type testEnv struct {
	core     *Core
	repo     *repository.SQLite
	registry *fakeRegistry
	pool     *fakePool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo, err := repository.NewSQLite(db, discardLogger())
	require.NoError(t, err)

	env := &testEnv{
		repo:     repo,
		registry: newFakeRegistry(),
		pool:     &fakePool{},
	}
	env.core = New(discardLogger())
	env.core.SetRepository(repo)
	env.core.SetRegistry(env.registry)
	env.core.SetTaskPool(env.pool)
	env.core.SetRestartDelay(50 * time.Millisecond)
	t.Cleanup(func() {
		env.core.Shutdown(context.Background())
	})
	return env
}

func (c *Core) pendingRestarts() int {
	c.restartMu.Lock()
	defer c.restartMu.Unlock()
	return len(c.restartTimers)
}
