package chat

import "sync"

const DefaultHistorySize = 50

// History is the bounded per-chat conversation buffer used as AI context.
// When a chat exceeds the limit the oldest tenth is evicted, rounded up to
// whole user/assistant pairs.
type History struct {
	mu    sync.Mutex
	limit int
	chats map[string][]Message
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &History{
		limit: limit,
		chats: make(map[string][]Message),
	}
}

// Messages returns a copy of the chat history.
func (h *History) Messages(chatID string) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	msgs := h.chats[chatID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

func (h *History) Append(chatID string, msgs ...Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf := append(h.chats[chatID], msgs...)
	if len(buf) > h.limit {
		drop := h.limit / 10
		if drop < 1 {
			drop = 1
		}
		if excess := len(buf) - h.limit; excess > drop {
			drop = excess
		}
		// messages come in user/assistant pairs; never leave a reply orphaned
		if drop%2 == 1 {
			drop++
		}
		if drop > len(buf) {
			drop = len(buf)
		}
		buf = append([]Message(nil), buf[drop:]...)
	}
	h.chats[chatID] = buf
}

func (h *History) Clear(chatID string) {
	h.mu.Lock()
	delete(h.chats, chatID)
	h.mu.Unlock()
}
