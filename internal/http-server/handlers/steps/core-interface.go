package steps

import (
	"context"

	"github.com/wiltort/bot-constructor/entity"
)

type Core interface {
	ListSteps(ctx context.Context, scenarioID string) ([]entity.Step, error)
	CreateStep(ctx context.Context, scenarioID string, step *entity.Step) (*entity.Step, error)
	UpdateStep(ctx context.Context, scenarioID, stepID string, step *entity.Step) (*entity.Step, error)
	DeleteStep(ctx context.Context, scenarioID, stepID string) error
}
