package taskqueue

import (
	"context"
	"time"
)

// TaskType identifies which lifecycle command the worker runs.
type TaskType string

const (
	TaskStart   TaskType = "start"
	TaskStop    TaskType = "stop"
	TaskRestart TaskType = "restart"
)

// Task is a lifecycle command for one bot.
type Task struct {
	ID         string
	Type       TaskType
	BotID      string
	Attempts   int
	EnqueuedAt time.Time
}

// Queue is a simple async task queue interface.
type Queue interface {
	// Enqueue adds a task to the queue. It should respect ctx for cancellation.
	Enqueue(ctx context.Context, t Task) error

	// Dequeue removes and returns the next task, blocking until one is available
	// or the context is cancelled.
	Dequeue(ctx context.Context) (*Task, error)

	// Len returns the approximate number of tasks queued.
	Len() int
}
