package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wiltort/bot-constructor/bot/scenario"
	"github.com/wiltort/bot-constructor/entity"
	repository "github.com/wiltort/bot-constructor/internal/database"
	"github.com/wiltort/bot-constructor/internal/lib/sl"
	"github.com/wiltort/bot-constructor/internal/taskqueue"
)

func (c *Core) ListSteps(ctx context.Context, scenarioID string) ([]entity.Step, error) {
	if err := c.checkScenario(ctx, scenarioID); err != nil {
		return nil, err
	}
	steps, err := c.repo.ListSteps(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	if steps == nil {
		steps = []entity.Step{}
	}
	return steps, nil
}

func (c *Core) CreateStep(ctx context.Context, scenarioID string, step *entity.Step) (*entity.Step, error) {
	if err := c.checkScenario(ctx, scenarioID); err != nil {
		return nil, err
	}
	step.Id = ""
	step.ScenarioId = scenarioID
	if err := step.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.repo.CreateStep(ctx, step); err != nil {
		return nil, repositoryError(err)
	}

	c.log.With(
		slog.String("scenario_id", scenarioID),
		slog.String("step_id", step.Id),
	).Info("step created")
	c.restartBound(ctx, scenarioID)
	return step, nil
}

func (c *Core) UpdateStep(ctx context.Context, scenarioID, stepID string, step *entity.Step) (*entity.Step, error) {
	step.Id = stepID
	step.ScenarioId = scenarioID
	if err := step.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.repo.UpdateStep(ctx, step); err != nil {
		return nil, repositoryError(err)
	}

	c.log.With(
		slog.String("scenario_id", scenarioID),
		slog.String("step_id", stepID),
	).Info("step updated")
	c.restartBound(ctx, scenarioID)
	return step, nil
}

func (c *Core) DeleteStep(ctx context.Context, scenarioID, stepID string) error {
	if err := c.repo.DeleteStep(ctx, scenarioID, stepID); err != nil {
		return repositoryError(err)
	}

	c.log.With(
		slog.String("scenario_id", scenarioID),
		slog.String("step_id", stepID),
	).Info("step deleted")
	c.restartBound(ctx, scenarioID)
	return nil
}

func (c *Core) checkScenario(ctx context.Context, scenarioID string) error {
	sc, err := c.repo.GetScenario(ctx, scenarioID)
	if err != nil {
		return err
	}
	if sc == nil {
		return fmt.Errorf("scenario %s: %w", scenarioID, ErrNotFound)
	}
	return nil
}

func repositoryError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("step: %w", ErrNotFound)
	case errors.Is(err, repository.ErrDuplicateTitle):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}

// restartBound schedules a restart of every running, active bot bound to
// the scenario. A scenario that no longer compiles is left alone so the
// running bots keep serving the previous version.
func (c *Core) restartBound(ctx context.Context, scenarioID string) {
	log := c.log.With(slog.String("scenario_id", scenarioID))

	bots, err := c.repo.BotsByScenario(ctx, scenarioID)
	if err != nil {
		log.Error("list bots of scenario", sl.Err(err))
		return
	}

	var targets []string
	for _, bot := range bots {
		if bot.IsActive && c.registry.IsRunning(bot.Id) {
			targets = append(targets, bot.Id)
		}
	}
	if len(targets) == 0 {
		return
	}

	sc, err := c.repo.GetScenario(ctx, scenarioID)
	if err != nil || sc == nil {
		log.Error("load scenario", sl.Err(err))
		return
	}
	steps, err := c.repo.ActiveSteps(ctx, scenarioID)
	if err != nil {
		log.Error("load active steps", sl.Err(err))
		return
	}
	if _, err := scenario.Compile(sc.ScenarioType, steps); err != nil {
		log.Warn("scenario does not compile, running bots keep the previous version", sl.Err(err))
		return
	}

	for _, id := range targets {
		c.ScheduleRestart(id)
	}
}

// ScheduleRestart queues a restart of the bot after the restart delay.
// Calls inside the window push the deadline back, so a burst of edits
// results in one restart.
func (c *Core) ScheduleRestart(botID string) {
	c.restartMu.Lock()
	defer c.restartMu.Unlock()

	if timer, ok := c.restartTimers[botID]; ok {
		timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(c.restartDelay, func() {
		c.fireRestart(botID, timer)
	})
	c.restartTimers[botID] = timer
}

func (c *Core) fireRestart(botID string, timer *time.Timer) {
	c.restartMu.Lock()
	if c.restartTimers[botID] != timer {
		c.restartMu.Unlock()
		return
	}
	delete(c.restartTimers, botID)
	c.restartMu.Unlock()

	log := c.log.With(slog.String("bot_id", botID))
	if !c.registry.IsRunning(botID) {
		log.Debug("bot stopped meanwhile, restart skipped")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	info, err := c.tasks.Enqueue(ctx, taskqueue.TaskRestart, botID)
	if err != nil {
		log.Error("queue restart task", sl.Err(err))
		return
	}
	log.Info("restart queued after scenario change", slog.String("task_id", info.ID))
}
