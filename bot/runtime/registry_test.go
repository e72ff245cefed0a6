package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wiltort/bot-constructor/bot/chat"
	"github.com/wiltort/bot-constructor/bot/scenario"
	"github.com/wiltort/bot-constructor/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore() *fakeStore {
	s := newFakeStore()
	s.bots["b1"] = &entity.Bot{
		Id: "b1", Name: "support", TelegramToken: "1:abc", GptApiKey: "sk-test",
		CurrentScenario: "sc1", IsActive: true,
	}
	s.scenarios["sc1"] = &entity.Scenario{Id: "sc1", Title: "support", ScenarioType: entity.ScenarioConversation}
	s.steps["sc1"] = []entity.Step{
		{Id: "st1", ScenarioId: "sc1", Title: "start", Template: entity.TemplateStart, IsActive: true,
			IsEntryPoint: true, Priority: 1, ResultState: "greeted", Message: "Hello!"},
		{Id: "st2", ScenarioId: "sc1", Title: "ask", Template: entity.TemplateQuestion, IsActive: true,
			OnState: "greeted", Priority: 2, ResultState: "greeted", IsUsingAI: true},
	}
	return s
}

func newTestRegistry(store *fakeStore, pool *transportPool, opts Options) *Registry {
	return NewRegistry(store, pool.factory, completers, opts, discardLogger())
}

func waitRunning(t *testing.T, tr *fakeTransport) chat.HandlerFunc {
	t.Helper()
	select {
	case h := <-tr.handle:
		return h
	case <-time.After(2 * time.Second):
		t.Fatal("transport did not start")
		return nil
	}
}

func TestRegistry_StartStop(t *testing.T) {
	store := seededStore()
	pool := &transportPool{}
	reg := newTestRegistry(store, pool, Options{})
	ctx := context.Background()

	res, err := reg.Start(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, ResultStarted, res)
	waitRunning(t, pool.last())

	st := reg.Status("b1")
	assert.Equal(t, PhaseRunning, st.Phase)
	assert.True(t, st.IsRunning)
	assert.False(t, st.LastStarted.IsZero())

	saved, ok := store.lastStatus("b1")
	require.True(t, ok)
	assert.True(t, saved.IsRunning)

	res, err = reg.Stop(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, ResultStopped, res)
	assert.False(t, reg.IsRunning("b1"))

	st = reg.Status("b1")
	assert.Equal(t, PhaseStopped, st.Phase)
	assert.False(t, st.LastStopped.IsZero())

	saved, _ = store.lastStatus("b1")
	assert.False(t, saved.IsRunning)
}

func TestRegistry_StartWhenRunning(t *testing.T) {
	store := seededStore()
	pool := &transportPool{}
	reg := newTestRegistry(store, pool, Options{})
	ctx := context.Background()

	_, err := reg.Start(ctx, "b1")
	require.NoError(t, err)

	res, err := reg.Start(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadyRunning, res)
	assert.Equal(t, int32(1), pool.instances.Load())

	_, _ = reg.Stop(ctx, "b1")
}

func TestRegistry_StopWhenStopped(t *testing.T) {
	store := seededStore()
	reg := newTestRegistry(store, &transportPool{}, Options{})

	res, err := reg.Stop(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadyStopped, res)

	saved, ok := store.lastStatus("b1")
	require.True(t, ok)
	assert.False(t, saved.IsRunning)
}

func TestRegistry_ConcurrentStartsYieldOneRuntime(t *testing.T) {
	store := seededStore()
	pool := &transportPool{}
	reg := newTestRegistry(store, pool, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan Result, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := reg.Start(ctx, "b1")
			if err == nil {
				results <- res
			}
		}()
	}
	wg.Wait()
	close(results)

	started := 0
	for res := range results {
		if res == ResultStarted {
			started++
		} else {
			assert.Equal(t, ResultAlreadyRunning, res)
		}
	}
	assert.Equal(t, 1, started)
	assert.Equal(t, int32(1), pool.instances.Load())
	assert.Equal(t, []string{"b1"}, reg.Running())

	_, _ = reg.Stop(ctx, "b1")
}

func TestRegistry_RestartRecompiles(t *testing.T) {
	store := seededStore()
	pool := &transportPool{}
	reg := newTestRegistry(store, pool, Options{})
	ctx := context.Background()

	_, err := reg.Start(ctx, "b1")
	require.NoError(t, err)
	first := pool.last()
	handle := waitRunning(t, first)
	require.NoError(t, handle(ctx, first, chat.Update{ChatID: "1", Text: "/start"}))
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"Hello!"}, first.texts())
	}, 2*time.Second, 10*time.Millisecond)

	store.setMessage("sc1", "st1", "Welcome back!")

	res, err := reg.Restart(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, ResultRestarted, res)

	second := pool.last()
	require.NotSame(t, first, second)
	handle = waitRunning(t, second)
	require.NoError(t, handle(ctx, second, chat.Update{ChatID: "1", Text: "/start"}))
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"Welcome back!"}, second.texts())
	}, 2*time.Second, 10*time.Millisecond)

	_, _ = reg.Stop(ctx, "b1")
}

func TestRegistry_RestartWhenStopped(t *testing.T) {
	reg := newTestRegistry(seededStore(), &transportPool{}, Options{})
	ctx := context.Background()

	res, err := reg.Restart(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, ResultRestarted, res)
	assert.True(t, reg.IsRunning("b1"))

	_, _ = reg.Stop(ctx, "b1")
}

func TestRegistry_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *fakeStore)
		wantErr error
	}{
		{"missing bot", func(s *fakeStore) { delete(s.bots, "b1") }, ErrBotNotFound},
		{"inactive", func(s *fakeStore) { s.bots["b1"].IsActive = false }, ErrConfiguration},
		{"no token", func(s *fakeStore) { s.bots["b1"].TelegramToken = "" }, ErrConfiguration},
		{"no scenario", func(s *fakeStore) { s.bots["b1"].CurrentScenario = "" }, ErrConfiguration},
		{"unknown scenario", func(s *fakeStore) { s.bots["b1"].CurrentScenario = "nope" }, ErrConfiguration},
		{"ai without key", func(s *fakeStore) { s.bots["b1"].GptApiKey = "" }, ErrConfiguration},
		{"no entry points", func(s *fakeStore) { s.steps["sc1"][0].IsEntryPoint = false }, scenario.ErrCompilation},
		{"no active steps", func(s *fakeStore) { s.steps["sc1"] = nil }, scenario.ErrNoActiveSteps},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seededStore()
			tt.mutate(store)
			pool := &transportPool{}
			reg := newTestRegistry(store, pool, Options{})

			_, err := reg.Start(context.Background(), "b1")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, reg.IsRunning("b1"))
			assert.Equal(t, int32(0), pool.instances.Load())

			st := reg.Status("b1")
			assert.Equal(t, PhaseStopped, st.Phase)
			assert.NotEmpty(t, st.Error)
		})
	}
}

func TestRegistry_TransportConnectFailure(t *testing.T) {
	reg := newTestRegistry(seededStore(), &transportPool{fail: errBoom}, Options{})

	_, err := reg.Start(context.Background(), "b1")
	assert.ErrorIs(t, err, ErrTransport)
	assert.False(t, reg.IsRunning("b1"))
}

func TestRegistry_RunErrorMarksStopped(t *testing.T) {
	store := seededStore()
	pool := &transportPool{next: func() *fakeTransport {
		tr := newFakeTransport()
		tr.runErr = errBoom
		return tr
	}}
	reg := newTestRegistry(store, pool, Options{})

	res, err := reg.Start(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, ResultStarted, res)

	require.Eventually(t, func() bool { return !reg.IsRunning("b1") }, 2*time.Second, 10*time.Millisecond)

	st := reg.Status("b1")
	assert.Equal(t, PhaseStopped, st.Phase)
	assert.Contains(t, st.Error, "boom")
	require.Eventually(t, func() bool {
		saved, _ := store.lastStatus("b1")
		return !saved.IsRunning && !saved.LastStopped.IsZero()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRegistry_PanicMarksStopped(t *testing.T) {
	pool := &transportPool{next: func() *fakeTransport {
		tr := newFakeTransport()
		tr.panicMsg = "polling exploded"
		return tr
	}}
	reg := newTestRegistry(seededStore(), pool, Options{})

	_, err := reg.Start(context.Background(), "b1")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !reg.IsRunning("b1") }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, reg.Status("b1").Error, "polling exploded")
}

func TestRegistry_StopTimeoutDrains(t *testing.T) {
	pool := &transportPool{next: func() *fakeTransport {
		tr := newFakeTransport()
		tr.stuck = true
		return tr
	}}
	reg := newTestRegistry(seededStore(), pool, Options{
		StopTimeout: 50 * time.Millisecond,
		StartGrace:  50 * time.Millisecond,
	})
	ctx := context.Background()

	_, err := reg.Start(ctx, "b1")
	require.NoError(t, err)
	stuck := pool.last()
	waitRunning(t, stuck)

	res, err := reg.Stop(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, ResultStopped, res)
	assert.False(t, reg.IsRunning("b1"))

	// The old goroutine is still alive, so a new start is refused.
	_, err = reg.Start(ctx, "b1")
	assert.ErrorIs(t, err, ErrStillStopping)

	close(stuck.release)
	require.Eventually(t, func() bool {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		return len(reg.draining) == 0
	}, 2*time.Second, 10*time.Millisecond)

	pool.next = nil
	res, err = reg.Start(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, ResultStarted, res)

	_, _ = reg.Stop(ctx, "b1")
}

func TestRegistry_IndependentBots(t *testing.T) {
	store := seededStore()
	b2 := *store.bots["b1"]
	b2.Id = "b2"
	store.bots["b2"] = &b2
	pool := &transportPool{}
	reg := newTestRegistry(store, pool, Options{})
	ctx := context.Background()

	_, err := reg.Start(ctx, "b1")
	require.NoError(t, err)
	_, err = reg.Start(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2"}, reg.Running())

	assert.Equal(t, 2, reg.StopAll(ctx))
	assert.Empty(t, reg.Running())
}

func TestRegistry_StatusListener(t *testing.T) {
	reg := newTestRegistry(seededStore(), &transportPool{}, Options{})
	var mu sync.Mutex
	var phases []Phase
	reg.SetStatusListener(func(st Status) {
		mu.Lock()
		phases = append(phases, st.Phase)
		mu.Unlock()
	})
	ctx := context.Background()

	_, err := reg.Start(ctx, "b1")
	require.NoError(t, err)
	_, err = reg.Stop(ctx, "b1")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Phase{PhaseStarting, PhaseRunning, PhaseStopping, PhaseStopped}, phases)
}

func TestRegistry_Ping(t *testing.T) {
	pool := &transportPool{}
	reg := newTestRegistry(seededStore(), pool, Options{})
	ctx := context.Background()

	assert.Error(t, reg.Ping(ctx, "b1"))

	_, err := reg.Start(ctx, "b1")
	require.NoError(t, err)
	assert.NoError(t, reg.Ping(ctx, "b1"))

	pool.last().pingErr = errBoom
	assert.ErrorIs(t, reg.Ping(ctx, "b1"), errBoom)

	_, _ = reg.Stop(ctx, "b1")
}
