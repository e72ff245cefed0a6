package runtime

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/wiltort/bot-constructor/bot/chat"
	"github.com/wiltort/bot-constructor/entity"
)

var (
	ErrConfiguration = errors.New("invalid bot configuration")
	ErrTransport     = errors.New("transport failure")
	ErrStillStopping = errors.New("previous runtime is still stopping")
	ErrBotNotFound   = errors.New("bot not found")
)

type Phase string

const (
	PhaseStopped  Phase = "stopped"
	PhaseStarting Phase = "starting"
	PhaseRunning  Phase = "running"
	PhaseStopping Phase = "stopping"
)

// Result is the informational outcome of a lifecycle command.
type Result string

const (
	ResultStarted        Result = "started"
	ResultAlreadyRunning Result = "already_running"
	ResultStopped        Result = "stopped"
	ResultAlreadyStopped Result = "already_stopped"
	ResultRestarted      Result = "restarted"
)

// Transport is a live connection of one bot to its messaging platform.
type Transport interface {
	chat.Messenger
	// Run delivers inbound messages to handle until ctx is cancelled.
	Run(ctx context.Context, handle chat.HandlerFunc) error
	Ping(ctx context.Context) error
}

type TransportFactory func(token string, log *slog.Logger) (Transport, error)

type CompleterFactory func(apiKey, baseURL string) chat.Completer

// Store is the read side of bot configuration plus status persistence.
// Get methods return nil without error when the record does not exist.
type Store interface {
	GetBot(ctx context.Context, id string) (*entity.Bot, error)
	GetScenario(ctx context.Context, id string) (*entity.Scenario, error)
	ActiveSteps(ctx context.Context, scenarioID string) ([]entity.Step, error)
	SaveBotStatus(ctx context.Context, id string, status entity.BotStatus) error
}

// Status is the runtime view of one bot.
type Status struct {
	BotID       string    `json:"bot_id"`
	Phase       Phase     `json:"phase"`
	IsRunning   bool      `json:"is_running"`
	LastStarted time.Time `json:"last_started"`
	LastStopped time.Time `json:"last_stopped"`
	Error       string    `json:"error,omitempty"`
}

type StatusListener func(status Status)

// Runtime is one running bot: a polling goroutine with its engine.
type Runtime struct {
	botID     string
	botName   string
	scenario  string
	engine    *chat.Engine
	transport Transport
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	stopping  bool
}
