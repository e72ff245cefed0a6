package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/wiltort/bot-constructor/bot/runtime"
	"github.com/wiltort/bot-constructor/entity"
	"github.com/wiltort/bot-constructor/internal/lib/sl"
	"github.com/wiltort/bot-constructor/internal/taskqueue"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid request")
	ErrConflict = errors.New("conflict")
)

type Repository interface {
	runtime.Store

	ListBots(ctx context.Context) ([]entity.Bot, error)
	BotsByScenario(ctx context.Context, scenarioID string) ([]entity.Bot, error)
	UpsertBot(ctx context.Context, bot *entity.Bot) error

	UpsertScenario(ctx context.Context, sc *entity.Scenario) error
	ListSteps(ctx context.Context, scenarioID string) ([]entity.Step, error)
	GetStep(ctx context.Context, scenarioID, stepID string) (*entity.Step, error)
	CreateStep(ctx context.Context, step *entity.Step) error
	UpdateStep(ctx context.Context, step *entity.Step) error
	DeleteStep(ctx context.Context, scenarioID, stepID string) error
	CountSteps(ctx context.Context) (total int, active int, err error)
}

// Registry is the lifecycle manager of bot runtimes.
type Registry interface {
	Start(ctx context.Context, id string) (runtime.Result, error)
	Stop(ctx context.Context, id string) (runtime.Result, error)
	Restart(ctx context.Context, id string) (runtime.Result, error)
	Status(id string) runtime.Status
	IsRunning(id string) bool
	Running() []string
	Ping(ctx context.Context, id string) error
	StopAll(ctx context.Context) int
}

type TaskPool interface {
	Enqueue(ctx context.Context, taskType taskqueue.TaskType, botID string) (taskqueue.Info, error)
	Status(ctx context.Context, id string) (*taskqueue.Info, error)
}

// Notifier receives health check failures.
type Notifier interface {
	PublishUnreachable(botID string, err error)
}

type Core struct {
	repo     Repository
	registry Registry
	tasks    TaskPool
	notifier Notifier
	authKey  string

	restartDelay   time.Duration
	healthInterval time.Duration

	restartMu     sync.Mutex
	restartTimers map[string]*time.Timer

	log *slog.Logger
}

func New(log *slog.Logger) *Core {
	return &Core{
		restartDelay:  time.Second,
		restartTimers: make(map[string]*time.Timer),
		log:           log.With(sl.Module("core")),
	}
}

func (c *Core) SetRepository(repo Repository) {
	c.repo = repo
}

func (c *Core) SetRegistry(registry Registry) {
	c.registry = registry
}

func (c *Core) SetTaskPool(tasks TaskPool) {
	c.tasks = tasks
}

func (c *Core) SetNotifier(notifier Notifier) {
	c.notifier = notifier
}

func (c *Core) SetAuthKey(key string) {
	c.authKey = key
}

// SetRestartDelay sets the cooldown used to coalesce restarts after step edits.
func (c *Core) SetRestartDelay(delay time.Duration) {
	if delay > 0 {
		c.restartDelay = delay
	}
}

// SetHealthInterval enables the periodic transport check of running bots.
func (c *Core) SetHealthInterval(interval time.Duration) {
	c.healthInterval = interval
}

// Init queues a start task for every active bot when autostart is set and
// launches the health check loop. Background work ends with ctx.
func (c *Core) Init(ctx context.Context, autostart bool) {
	if autostart {
		if tasks, err := c.StartAll(ctx); err != nil {
			c.log.Error("autostart bots", sl.Err(err))
		} else {
			c.log.Info("autostart queued", slog.Int("bots", len(tasks)))
		}
	}
	if c.healthInterval > 0 {
		go c.healthLoop(ctx)
	}
}

// Shutdown cancels pending restarts and stops every running bot.
func (c *Core) Shutdown(ctx context.Context) int {
	c.restartMu.Lock()
	for id, timer := range c.restartTimers {
		timer.Stop()
		delete(c.restartTimers, id)
	}
	c.restartMu.Unlock()

	return c.registry.StopAll(ctx)
}
