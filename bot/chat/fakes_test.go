package chat

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

type sent struct {
	ChatID string
	Text   string
	Rows   [][]MenuButton
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sent
	failAll bool
}

func (f *fakeMessenger) SendText(chatID, text string) error {
	return f.record(chatID, text, nil)
}

func (f *fakeMessenger) SendMenu(chatID, text string, rows [][]MenuButton) error {
	return f.record(chatID, text, rows)
}

func (f *fakeMessenger) SendTyping(string) error { return nil }

func (f *fakeMessenger) record(chatID, text string, rows [][]MenuButton) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return io.ErrClosedPipe
	}
	f.sent = append(f.sent, sent{ChatID: chatID, Text: text, Rows: rows})
	return nil
}

func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, s := range f.sent {
		out[i] = s.Text
	}
	return out
}

type fakeCompleter struct {
	mu     sync.Mutex
	answer string
	err    error
	calls  [][]Message
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, messages []Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	return f.answer, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
