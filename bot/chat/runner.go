package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wiltort/bot-constructor/bot/scenario"
	"github.com/wiltort/bot-constructor/entity"
	"github.com/wiltort/bot-constructor/internal/lib/sl"
)

// ErrorReply is sent to the user when a step fails.
const ErrorReply = "Sorry, something went wrong. Please try again later."

var ErrNoCompleter = errors.New("step uses AI but the bot has no AI client")

// ActionRunner executes the actions of a triggered step.
type ActionRunner struct {
	machine *scenario.StateMachine
	history *History
	ai      Completer
	model   string
	log     *slog.Logger
}

func NewActionRunner(machine *scenario.StateMachine, history *History, ai Completer, model string, log *slog.Logger) *ActionRunner {
	return &ActionRunner{
		machine: machine,
		history: history,
		ai:      ai,
		model:   model,
		log:     log,
	}
}

// Run executes the step and decides the next state. On failure the user
// gets a generic error reply and the state is left unchanged.
func (r *ActionRunner) Run(ctx context.Context, m Messenger, u Update, step entity.Step) StepResult {
	if err := r.execute(ctx, m, u, step); err != nil {
		if sendErr := m.SendText(u.ChatID, ErrorReply); sendErr != nil {
			r.log.With(
				slog.String("chat_id", u.ChatID),
			).Warn("sending error reply", sl.Err(sendErr))
		}
		return StepResult{Error: fmt.Errorf("step %q: %w", step.Title, err)}
	}

	if step.IsEnd {
		return StepResult{Complete: true}
	}
	if step.ResultState == "" {
		return StepResult{}
	}
	idx, ok := r.machine.StateIndex(step.ResultState)
	return StepResult{NextState: idx, HasNext: ok}
}

func (r *ActionRunner) execute(ctx context.Context, m Messenger, u Update, step entity.Step) error {
	if step.Template == entity.TemplateClear {
		r.history.Clear(u.ChatID)
	}

	if step.IsUsingAI {
		if err := r.ask(ctx, m, u, step); err != nil {
			return err
		}
	}

	if step.Message != "" {
		text := FormatMessage(step.Message, u)
		if err := sendChunks(m, u.ChatID, text, KeyboardRows(step.HandlerData.Keyboard)); err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
	}
	return nil
}

func (r *ActionRunner) ask(ctx context.Context, m Messenger, u Update, step entity.Step) error {
	if r.ai == nil {
		return ErrNoCompleter
	}

	if err := m.SendTyping(u.ChatID); err != nil {
		r.log.Debug("sending typing action", sl.Err(err))
	}

	var messages []Message
	if step.HandlerData.SystemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: step.HandlerData.SystemPrompt})
	}
	messages = append(messages, r.history.Messages(u.ChatID)...)

	text := u.Text
	if step.HandlerData.ExtraContext != "" {
		text = fmt.Sprintf("%s\nAdditional context: %s", text, step.HandlerData.ExtraContext)
	}
	question := Message{Role: RoleUser, Content: text}
	messages = append(messages, question)

	answer, err := r.ai.Complete(ctx, r.model, messages)
	if err != nil {
		return fmt.Errorf("ai completion: %w", err)
	}

	r.history.Append(u.ChatID, question, Message{Role: RoleAssistant, Content: answer})

	if answer == "" {
		return nil
	}
	if err := sendChunks(m, u.ChatID, answer, nil); err != nil {
		return fmt.Errorf("sending answer: %w", err)
	}
	return nil
}

// sendChunks sends text split to the message limit; the keyboard rides on the last chunk.
func sendChunks(m Messenger, chatID, text string, rows [][]MenuButton) error {
	parts := SplitMessage(text, MaxMessageLength)
	for i, part := range parts {
		var err error
		if i == len(parts)-1 && len(rows) > 0 {
			err = m.SendMenu(chatID, part, rows)
		} else {
			err = m.SendText(chatID, part)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
