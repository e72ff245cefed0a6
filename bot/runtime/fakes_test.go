package runtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/wiltort/bot-constructor/bot/chat"
	"github.com/wiltort/bot-constructor/entity"
)

type fakeStore struct {
	mu        sync.Mutex
	bots      map[string]*entity.Bot
	scenarios map[string]*entity.Scenario
	steps     map[string][]entity.Step
	statuses  map[string][]entity.BotStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bots:      make(map[string]*entity.Bot),
		scenarios: make(map[string]*entity.Scenario),
		steps:     make(map[string][]entity.Step),
		statuses:  make(map[string][]entity.BotStatus),
	}
}

func (s *fakeStore) GetBot(_ context.Context, id string) (*entity.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bots[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (s *fakeStore) GetScenario(_ context.Context, id string) (*entity.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scenarios[id]
	if !ok {
		return nil, nil
	}
	cp := *sc
	return &cp, nil
}

func (s *fakeStore) ActiveSteps(_ context.Context, scenarioID string) ([]entity.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Step
	for _, st := range s.steps[scenarioID] {
		if st.IsActive {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *fakeStore) SaveBotStatus(_ context.Context, id string, status entity.BotStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = append(s.statuses[id], status)
	return nil
}

func (s *fakeStore) lastStatus(id string) (entity.BotStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.statuses[id]
	if len(list) == 0 {
		return entity.BotStatus{}, false
	}
	return list[len(list)-1], true
}

func (s *fakeStore) setMessage(scenarioID, stepID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.steps[scenarioID] {
		if s.steps[scenarioID][i].Id == stepID {
			s.steps[scenarioID][i].Message = message
		}
	}
}

// fakeTransport blocks in Run until cancelled. With stuck set it ignores
// cancellation until release is closed.
type fakeTransport struct {
	runErr   error
	panicMsg string
	stuck    bool
	release  chan struct{}
	running  chan struct{}
	handle   chan chat.HandlerFunc
	pingErr  error

	mu   sync.Mutex
	sent []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		release: make(chan struct{}),
		running: make(chan struct{}),
		handle:  make(chan chat.HandlerFunc, 1),
	}
}

func (t *fakeTransport) Run(ctx context.Context, handle chat.HandlerFunc) error {
	t.handle <- handle
	close(t.running)
	if t.panicMsg != "" {
		panic(t.panicMsg)
	}
	if t.runErr != nil {
		return t.runErr
	}
	if t.stuck {
		<-t.release
		return nil
	}
	<-ctx.Done()
	return nil
}

func (t *fakeTransport) Ping(context.Context) error { return t.pingErr }

func (t *fakeTransport) SendText(_, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, text)
	return nil
}

func (t *fakeTransport) SendMenu(_, text string, _ [][]chat.MenuButton) error {
	return t.SendText("", text)
}

func (t *fakeTransport) SendTyping(string) error { return nil }

func (t *fakeTransport) texts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sent...)
}

type transportPool struct {
	mu        sync.Mutex
	created   []*fakeTransport
	next      func() *fakeTransport
	fail      error
	instances atomic.Int32
}

func (p *transportPool) factory(_ string, _ *slog.Logger) (Transport, error) {
	if p.fail != nil {
		return nil, p.fail
	}
	t := newFakeTransport()
	if p.next != nil {
		t = p.next()
	}
	p.mu.Lock()
	p.created = append(p.created, t)
	p.mu.Unlock()
	p.instances.Add(1)
	return t, nil
}

func (p *transportPool) last() *fakeTransport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created[len(p.created)-1]
}

type nopCompleter struct{}

func (nopCompleter) Complete(context.Context, string, []chat.Message) (string, error) {
	return "ai answer", nil
}

func completers(string, string) chat.Completer { return nopCompleter{} }

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
