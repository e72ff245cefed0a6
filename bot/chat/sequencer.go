package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wiltort/bot-constructor/internal/lib/sl"
)

// Sequencer queues inbound messages per chat and hands them to the handler
// in arrival order. Each chat with pending messages has one worker, so chats
// do not wait on each other. Handle must be called in arrival order.
type Sequencer struct {
	handle HandlerFunc
	log    *slog.Logger

	mu     sync.Mutex
	queues map[string][]job
	wg     sync.WaitGroup
}

type job struct {
	ctx context.Context
	m   Messenger
	u   Update
}

func NewSequencer(handle HandlerFunc, log *slog.Logger) *Sequencer {
	return &Sequencer{
		handle: handle,
		log:    log,
		queues: make(map[string][]job),
	}
}

// Handle enqueues the message and returns without waiting for it.
func (s *Sequencer) Handle(ctx context.Context, m Messenger, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, busy := s.queues[u.ChatID]
	s.queues[u.ChatID] = append(pending, job{ctx: ctx, m: m, u: u})
	if !busy {
		s.wg.Add(1)
		go s.work(u.ChatID)
	}
	return nil
}

func (s *Sequencer) work(chatID string) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		pending := s.queues[chatID]
		if len(pending) == 0 {
			delete(s.queues, chatID)
			s.mu.Unlock()
			return
		}
		next := pending[0]
		s.queues[chatID] = pending[1:]
		s.mu.Unlock()

		if err := s.run(next); err != nil {
			s.log.Debug("handling message", slog.String("chat_id", chatID), sl.Err(err))
		}
	}
}

func (s *Sequencer) run(j job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return s.handle(j.ctx, j.m, j.u)
}

// Wait blocks until every queued message has been handled.
func (s *Sequencer) Wait() {
	s.wg.Wait()
}
