package bots

import (
	"context"

	"github.com/wiltort/bot-constructor/entity"
	"github.com/wiltort/bot-constructor/impl/core"
	"github.com/wiltort/bot-constructor/internal/taskqueue"
)

type Core interface {
	EnqueueTask(ctx context.Context, taskType taskqueue.TaskType, botID string) (*taskqueue.Info, error)
	BotStatus(ctx context.Context, botID string) (*core.BotStatus, error)
	StartAll(ctx context.Context) ([]taskqueue.Info, error)
	StopAll(ctx context.Context) ([]taskqueue.Info, error)
	Summary(ctx context.Context) (*entity.BotSummary, error)
}
