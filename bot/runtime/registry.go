package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/wiltort/bot-constructor/bot/chat"
	"github.com/wiltort/bot-constructor/bot/scenario"
	"github.com/wiltort/bot-constructor/entity"
	"github.com/wiltort/bot-constructor/internal/lib/keylock"
	"github.com/wiltort/bot-constructor/internal/lib/sl"
)

type Options struct {
	StartGrace  time.Duration
	StopTimeout time.Duration
	HistorySize int
}

func (o Options) withDefaults() Options {
	if o.StartGrace <= 0 {
		o.StartGrace = 3 * time.Second
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 10 * time.Second
	}
	if o.HistorySize <= 0 {
		o.HistorySize = chat.DefaultHistorySize
	}
	return o
}

// Registry owns all bot runtimes. Lifecycle commands for one bot id are
// serialized; different ids proceed in parallel.
type Registry struct {
	store      Store
	transports TransportFactory
	completers CompleterFactory
	opts       Options
	locks      *keylock.Locks
	listener   StatusListener
	log        *slog.Logger

	mu       sync.Mutex
	runtimes map[string]*Runtime
	draining map[string]*Runtime
	statuses map[string]Status
}

func NewRegistry(store Store, transports TransportFactory, completers CompleterFactory, opts Options, log *slog.Logger) *Registry {
	return &Registry{
		store:      store,
		transports: transports,
		completers: completers,
		opts:       opts.withDefaults(),
		locks:      keylock.New(),
		log:        log.With(sl.Module("runtime")),
		runtimes:   make(map[string]*Runtime),
		draining:   make(map[string]*Runtime),
		statuses:   make(map[string]Status),
	}
}

// SetStatusListener registers a callback for every status change.
func (r *Registry) SetStatusListener(l StatusListener) {
	r.listener = l
}

// Start launches the bot runtime unless it is already running.
func (r *Registry) Start(ctx context.Context, id string) (Result, error) {
	r.locks.Lock(id)
	defer r.locks.Unlock(id)
	return r.start(ctx, id)
}

// Stop cancels the bot runtime and waits a bounded time for it to exit.
func (r *Registry) Stop(ctx context.Context, id string) (Result, error) {
	r.locks.Lock(id)
	defer r.locks.Unlock(id)
	return r.stop(ctx, id)
}

// Restart stops the runtime if it is running and starts it again with
// freshly loaded configuration and scenario.
func (r *Registry) Restart(ctx context.Context, id string) (Result, error) {
	r.locks.Lock(id)
	defer r.locks.Unlock(id)

	if _, err := r.stop(ctx, id); err != nil {
		return "", err
	}
	if _, err := r.start(ctx, id); err != nil {
		return "", err
	}
	return ResultRestarted, nil
}

// Status returns the in-memory status of the bot.
func (r *Registry) Status(id string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.statuses[id]; ok {
		return st
	}
	return Status{BotID: id, Phase: PhaseStopped}
}

// IsRunning reports whether a live runtime exists for the bot.
func (r *Registry) IsRunning(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.runtimes[id]
	return ok
}

// Running lists the ids of all live runtimes, sorted.
func (r *Registry) Running() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.runtimes))
	for id := range r.runtimes {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Ping checks the transport of a running bot.
func (r *Registry) Ping(ctx context.Context, id string) error {
	r.mu.Lock()
	rt, ok := r.runtimes[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("bot %s is not running", id)
	}
	return rt.transport.Ping(ctx)
}

// StopAll stops every running bot in parallel and returns how many were stopped.
func (r *Registry) StopAll(ctx context.Context) int {
	ids := r.Running()
	var wg sync.WaitGroup
	var mu sync.Mutex
	stopped := 0
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			res, err := r.Stop(ctx, id)
			if err != nil {
				r.log.Error("stopping bot", slog.String("bot_id", id), sl.Err(err))
				return
			}
			if res == ResultStopped {
				mu.Lock()
				stopped++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return stopped
}

func (r *Registry) start(ctx context.Context, id string) (Result, error) {
	log := r.log.With(slog.String("bot_id", id))

	if r.IsRunning(id) {
		r.persist(id, entity.BotStatus{IsRunning: true})
		log.Debug("bot already running")
		return ResultAlreadyRunning, nil
	}

	if err := r.awaitDrain(id); err != nil {
		log.Warn("start rejected", sl.Err(err))
		return "", err
	}

	r.setPhase(id, PhaseStarting)

	rt, err := r.build(ctx, id, log)
	if err != nil {
		st := r.update(id, func(st *Status) {
			st.Phase = PhaseStopped
			st.IsRunning = false
			st.Error = err.Error()
		})
		r.notify(st)
		log.Error("start failed", sl.Err(err))
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel
	rt.startedAt = time.Now()

	r.mu.Lock()
	r.runtimes[id] = rt
	st := r.statuses[id]
	st.BotID = id
	st.Phase = PhaseRunning
	st.IsRunning = true
	st.LastStarted = rt.startedAt
	st.Error = ""
	r.statuses[id] = st
	r.mu.Unlock()

	r.persist(id, entity.BotStatus{IsRunning: true, LastStarted: rt.startedAt})
	r.notify(st)

	go r.run(runCtx, rt)

	log.Info("bot started", slog.String("name", rt.botName), slog.String("scenario_id", rt.scenario))
	return ResultStarted, nil
}

func (r *Registry) build(ctx context.Context, id string, log *slog.Logger) (*Runtime, error) {
	bot, err := r.store.GetBot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading bot: %w", err)
	}
	if bot == nil {
		return nil, fmt.Errorf("%w: %s", ErrBotNotFound, id)
	}
	if !bot.IsActive {
		return nil, fmt.Errorf("%w: bot is not active", ErrConfiguration)
	}
	if bot.TelegramToken == "" {
		return nil, fmt.Errorf("%w: telegram token is empty", ErrConfiguration)
	}
	if bot.CurrentScenario == "" {
		return nil, fmt.Errorf("%w: no scenario assigned", ErrConfiguration)
	}

	sc, err := r.store.GetScenario(ctx, bot.CurrentScenario)
	if err != nil {
		return nil, fmt.Errorf("loading scenario: %w", err)
	}
	if sc == nil {
		return nil, fmt.Errorf("%w: scenario %s not found", ErrConfiguration, bot.CurrentScenario)
	}

	steps, err := r.store.ActiveSteps(ctx, sc.Id)
	if err != nil {
		return nil, fmt.Errorf("loading steps: %w", err)
	}

	machine, err := scenario.Compile(sc.ScenarioType, steps)
	if err != nil {
		return nil, err
	}

	var ai chat.Completer
	if usesAI(steps) {
		if bot.GptApiKey == "" {
			return nil, fmt.Errorf("%w: scenario uses AI but the bot has no API key", ErrConfiguration)
		}
		ai = r.completers(bot.GptApiKey, bot.GptApiUrl)
	}

	tr, err := r.transports(bot.TelegramToken, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	log.Debug("scenario compiled",
		slog.String("scenario_id", sc.Id),
		slog.Int("steps", len(steps)),
		slog.Int("states", len(machine.States)),
	)

	return &Runtime{
		botID:     id,
		botName:   bot.Name,
		scenario:  sc.Id,
		engine:    chat.NewEngine(machine, ai, bot.AiModel, r.opts.HistorySize, log),
		transport: tr,
		done:      make(chan struct{}),
	}, nil
}

func usesAI(steps []entity.Step) bool {
	for _, s := range steps {
		if s.IsActive && s.IsUsingAI {
			return true
		}
	}
	return false
}

func (r *Registry) run(ctx context.Context, rt *Runtime) {
	defer close(rt.done)

	var err error
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("runtime panic: %v", p)
		}
		r.onExit(rt, err)
	}()

	seq := chat.NewSequencer(rt.engine.HandleMessage, r.log.With(slog.String("bot_id", rt.botID)))
	defer seq.Wait()
	err = rt.transport.Run(ctx, seq.Handle)
}

// onExit handles a runtime goroutine that returned. Exits requested by
// Stop are accounted there; anything else forces the bot to stopped and
// keeps the exit error in its status.
func (r *Registry) onExit(rt *Runtime, err error) {
	r.mu.Lock()
	if r.draining[rt.botID] == rt {
		delete(r.draining, rt.botID)
	}
	if rt.stopping || r.runtimes[rt.botID] != rt {
		r.mu.Unlock()
		return
	}
	delete(r.runtimes, rt.botID)
	now := time.Now()
	st := r.statuses[rt.botID]
	st.Phase = PhaseStopped
	st.IsRunning = false
	st.LastStopped = now
	if err != nil {
		st.Error = err.Error()
	} else {
		st.Error = "polling ended unexpectedly"
	}
	r.statuses[rt.botID] = st
	r.mu.Unlock()

	rt.cancel()
	r.log.With(slog.String("bot_id", rt.botID)).Error("runtime exited", slog.String("error", st.Error))
	r.persist(rt.botID, entity.BotStatus{IsRunning: false, LastStopped: now})
	r.notify(st)
}

func (r *Registry) stop(_ context.Context, id string) (Result, error) {
	log := r.log.With(slog.String("bot_id", id))

	r.mu.Lock()
	rt, ok := r.runtimes[id]
	if !ok {
		r.mu.Unlock()
		r.persist(id, entity.BotStatus{IsRunning: false})
		log.Debug("bot already stopped")
		return ResultAlreadyStopped, nil
	}
	rt.stopping = true
	st := r.statuses[id]
	st.Phase = PhaseStopping
	r.statuses[id] = st
	r.mu.Unlock()
	r.notify(st)

	rt.cancel()

	timer := time.NewTimer(r.opts.StopTimeout)
	defer timer.Stop()
	select {
	case <-rt.done:
	case <-timer.C:
		log.Warn("runtime did not stop in time, leaving it to drain",
			slog.Duration("timeout", r.opts.StopTimeout),
		)
		r.mu.Lock()
		select {
		case <-rt.done:
		default:
			r.draining[id] = rt
		}
		r.mu.Unlock()
	}

	now := time.Now()
	r.mu.Lock()
	if r.runtimes[id] == rt {
		delete(r.runtimes, id)
	}
	st = r.statuses[id]
	st.Phase = PhaseStopped
	st.IsRunning = false
	st.LastStopped = now
	st.Error = ""
	r.statuses[id] = st
	r.mu.Unlock()

	r.persist(id, entity.BotStatus{IsRunning: false, LastStopped: now})
	r.notify(st)

	log.Info("bot stopped")
	return ResultStopped, nil
}

// awaitDrain waits for a runtime left over from a timed-out stop.
func (r *Registry) awaitDrain(id string) error {
	r.mu.Lock()
	rt, ok := r.draining[id]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	timer := time.NewTimer(r.opts.StartGrace)
	defer timer.Stop()
	select {
	case <-rt.done:
		r.mu.Lock()
		if r.draining[id] == rt {
			delete(r.draining, id)
		}
		r.mu.Unlock()
		return nil
	case <-timer.C:
		return ErrStillStopping
	}
}

func (r *Registry) setPhase(id string, phase Phase) {
	st := r.update(id, func(st *Status) { st.Phase = phase })
	r.notify(st)
}

func (r *Registry) update(id string, fn func(st *Status)) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.statuses[id]
	st.BotID = id
	fn(&st)
	r.statuses[id] = st
	return st
}

func (r *Registry) persist(id string, status entity.BotStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.SaveBotStatus(ctx, id, status); err != nil {
		r.log.With(slog.String("bot_id", id)).Error("saving bot status", sl.Err(err))
	}
}

func (r *Registry) notify(st Status) {
	if r.listener != nil {
		r.listener(st)
	}
}
