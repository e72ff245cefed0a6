package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// State is the lifecycle of a task as seen by clients.
type State string

const (
	StatePending State = "pending"
	StateStarted State = "started"
	StateSuccess State = "success"
	StateRetry   State = "retry"
	StateFailure State = "failure"
)

// Info is the queryable record of a task.
type Info struct {
	ID        string    `json:"task_id"`
	Type      TaskType  `json:"type"`
	BotID     string    `json:"bot_id"`
	State     State     `json:"state"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Attempts  int       `json:"attempts"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResultStore keeps task records for status queries.
// Get returns nil without error for unknown ids.
type ResultStore interface {
	Set(ctx context.Context, info Info) error
	Get(ctx context.Context, id string) (*Info, error)
}

type memoryEntry struct {
	info    Info
	expires time.Time
}

// MemoryResults is a ResultStore held in process memory.
type MemoryResults struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

func NewMemoryResults(ttl time.Duration) *MemoryResults {
	return &MemoryResults{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryResults) Set(_ context.Context, info Info) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, e := range m.entries {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(m.entries, id)
		}
	}
	e := memoryEntry{info: info}
	if m.ttl > 0 {
		e.expires = now.Add(m.ttl)
	}
	m.entries[info.ID] = e
	return nil
}

func (m *MemoryResults) Get(_ context.Context, id string) (*Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(m.entries, id)
		return nil, nil
	}
	info := e.info
	return &info, nil
}

// RedisResults stores task records as JSON under <prefix>task:<id>.
type RedisResults struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisResults(client *redis.Client, prefix string, ttl time.Duration) *RedisResults {
	return &RedisResults{
		client: client,
		prefix: prefix + "task:",
		ttl:    ttl,
	}
}

func (r *RedisResults) Set(ctx context.Context, info Info) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode task info: %w", err)
	}
	return r.client.Set(ctx, r.prefix+info.ID, data, r.ttl).Err()
}

func (r *RedisResults) Get(ctx context.Context, id string) (*Info, error) {
	data, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode task info: %w", err)
	}
	return &info, nil
}
