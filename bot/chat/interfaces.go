package chat

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role/content entry of an AI conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer produces an assistant reply for a list of messages.
type Completer interface {
	Complete(ctx context.Context, model string, messages []Message) (string, error)
}

// StateStorage keeps the current state index per chat.
type StateStorage interface {
	Load(chatID string) (int, bool)
	Save(chatID string, state int)
	Delete(chatID string)
}

// StepResult is the outcome of running a step.
type StepResult struct {
	NextState int
	HasNext   bool
	Complete  bool
	Error     error
}

// HandlerFunc handles one inbound message; m replies on the same transport.
type HandlerFunc func(ctx context.Context, m Messenger, u Update) error
