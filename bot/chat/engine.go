package chat

import (
	"context"
	"log/slog"

	"github.com/wiltort/bot-constructor/bot/scenario"
	"github.com/wiltort/bot-constructor/internal/lib/keylock"
)

// Engine routes inbound messages through a compiled scenario.
// Messages of one chat are handled one at a time; different chats run in parallel.
type Engine struct {
	machine *scenario.StateMachine
	runner  *ActionRunner
	states  StateStorage
	history *History
	locks   *keylock.Locks
	log     *slog.Logger
}

// NewEngine creates an engine with fresh in-memory sessions and history.
func NewEngine(machine *scenario.StateMachine, ai Completer, model string, historySize int, log *slog.Logger) *Engine {
	history := NewHistory(historySize)
	return &Engine{
		machine: machine,
		runner:  NewActionRunner(machine, history, ai, model, log),
		states:  NewMemoryStateStorage(),
		history: history,
		locks:   keylock.New(),
		log:     log,
	}
}

// HandleMessage processes a text message. Unmatched input is ignored.
func (e *Engine) HandleMessage(ctx context.Context, m Messenger, u Update) error {
	e.locks.Lock(u.ChatID)
	defer e.locks.Unlock(u.ChatID)

	route, ok := e.match(u.ChatID, u.Text)
	if !ok {
		e.log.Debug("chat engine: no route",
			slog.String("chat_id", u.ChatID),
		)
		return nil
	}

	result := e.runner.Run(ctx, m, u, route.Step)
	return e.processResult(u, route, result)
}

func (e *Engine) match(chatID, text string) (scenario.Route, bool) {
	state, active := e.states.Load(chatID)
	if !active {
		return firstMatch(e.machine.EntryPoints, text)
	}
	if route, ok := firstMatch(e.machine.Table[state], text); ok {
		return route, true
	}
	return firstMatch(e.machine.Fallbacks, text)
}

func firstMatch(routes []scenario.Route, text string) (scenario.Route, bool) {
	for _, route := range routes {
		if route.Trigger.Match(text) {
			return route, true
		}
	}
	return scenario.Route{}, false
}

func (e *Engine) processResult(u Update, route scenario.Route, result StepResult) error {
	if result.Error != nil {
		e.log.Error("chat engine: step error",
			slog.String("chat_id", u.ChatID),
			slog.String("step", route.Step.Title),
			slog.String("error", result.Error.Error()),
		)
		return result.Error
	}

	if result.Complete {
		e.log.Debug("chat engine: conversation ended",
			slog.String("chat_id", u.ChatID),
			slog.String("step", route.Step.Title),
		)
		e.states.Delete(u.ChatID)
		return nil
	}

	if result.HasNext {
		e.states.Save(u.ChatID, result.NextState)
	}
	return nil
}

// State returns the current state index of a chat.
func (e *Engine) State(chatID string) (int, bool) {
	return e.states.Load(chatID)
}
