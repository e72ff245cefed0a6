package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wiltort/bot-constructor/bot/runtime"
	"github.com/wiltort/bot-constructor/bot/scenario"
	"github.com/wiltort/bot-constructor/entity"
	"github.com/wiltort/bot-constructor/internal/lib/sl"
	"github.com/wiltort/bot-constructor/internal/taskqueue"
)

// BotStatus is the runtime status of a bot merged with its stored record.
type BotStatus struct {
	runtime.Status
	Name        string `json:"name"`
	IsActive    bool   `json:"is_active"`
	ScenarioID  string `json:"scenario_id"`
	ActiveSteps int    `json:"active_handlers"`
}

// Execute runs one lifecycle task against the registry. It is the
// taskqueue executor.
func (c *Core) Execute(ctx context.Context, t taskqueue.Task) taskqueue.Outcome {
	var (
		res runtime.Result
		err error
	)
	switch t.Type {
	case taskqueue.TaskStart:
		res, err = c.registry.Start(ctx, t.BotID)
	case taskqueue.TaskStop:
		res, err = c.registry.Stop(ctx, t.BotID)
	case taskqueue.TaskRestart:
		res, err = c.registry.Restart(ctx, t.BotID)
	default:
		return taskqueue.Failed(fmt.Errorf("unknown task type %q", t.Type))
	}
	if err != nil {
		return classify(err)
	}
	return taskqueue.Succeeded(string(res))
}

// classify maps a lifecycle error to a task outcome. Only transient
// failures are retried.
func classify(err error) taskqueue.Outcome {
	switch {
	case errors.Is(err, scenario.ErrCompilation),
		errors.Is(err, runtime.ErrConfiguration),
		errors.Is(err, runtime.ErrBotNotFound):
		return taskqueue.Failed(err)
	default:
		return taskqueue.RetryLater(err)
	}
}

// EnqueueTask queues a lifecycle command for an existing bot.
func (c *Core) EnqueueTask(ctx context.Context, taskType taskqueue.TaskType, botID string) (*taskqueue.Info, error) {
	bot, err := c.repo.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, fmt.Errorf("bot %s: %w", botID, ErrNotFound)
	}

	info, err := c.tasks.Enqueue(ctx, taskType, botID)
	if err != nil {
		return nil, err
	}
	c.log.With(
		slog.String("bot_id", botID),
		slog.String("task_id", info.ID),
	).Debug("task queued", slog.String("type", string(taskType)))
	return &info, nil
}

// TaskStatus returns the recorded state of a task.
func (c *Core) TaskStatus(ctx context.Context, taskID string) (*taskqueue.Info, error) {
	info, err := c.tasks.Status(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return info, nil
}

func (c *Core) BotStatus(ctx context.Context, botID string) (*BotStatus, error) {
	bot, err := c.repo.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, fmt.Errorf("bot %s: %w", botID, ErrNotFound)
	}

	st := c.registry.Status(botID)
	if st.LastStarted.IsZero() {
		st.LastStarted = bot.LastStarted
	}
	if st.LastStopped.IsZero() {
		st.LastStopped = bot.LastStopped
	}

	status := &BotStatus{
		Status:     st,
		Name:       bot.Name,
		IsActive:   bot.IsActive,
		ScenarioID: bot.CurrentScenario,
	}
	if bot.CurrentScenario != "" {
		steps, err := c.repo.ActiveSteps(ctx, bot.CurrentScenario)
		if err != nil {
			return nil, err
		}
		status.ActiveSteps = len(steps)
	}
	return status, nil
}

// StartAll queues a start task for every active bot that is not running.
func (c *Core) StartAll(ctx context.Context) ([]taskqueue.Info, error) {
	bots, err := c.repo.ListBots(ctx)
	if err != nil {
		return nil, err
	}

	tasks := make([]taskqueue.Info, 0, len(bots))
	for _, bot := range bots {
		if !bot.IsActive || c.registry.IsRunning(bot.Id) {
			continue
		}
		info, err := c.tasks.Enqueue(ctx, taskqueue.TaskStart, bot.Id)
		if err != nil {
			c.log.Error("queue start task", slog.String("bot_id", bot.Id), sl.Err(err))
			continue
		}
		tasks = append(tasks, info)
	}
	return tasks, nil
}

// StopAll queues a stop task for every running bot.
func (c *Core) StopAll(ctx context.Context) ([]taskqueue.Info, error) {
	running := c.registry.Running()
	tasks := make([]taskqueue.Info, 0, len(running))
	for _, id := range running {
		info, err := c.tasks.Enqueue(ctx, taskqueue.TaskStop, id)
		if err != nil {
			return tasks, fmt.Errorf("queue stop task for %s: %w", id, err)
		}
		tasks = append(tasks, info)
	}
	return tasks, nil
}

func (c *Core) Summary(ctx context.Context) (*entity.BotSummary, error) {
	bots, err := c.repo.ListBots(ctx)
	if err != nil {
		return nil, err
	}

	var summary entity.BotSummary
	summary.TotalBots = len(bots)
	for _, bot := range bots {
		if bot.IsActive {
			summary.ActiveBots++
		}
		if c.registry.IsRunning(bot.Id) {
			summary.RunningBots++
		}
	}
	summary.InactiveBots = summary.TotalBots - summary.ActiveBots
	summary.StoppedBots = summary.TotalBots - summary.RunningBots

	total, active, err := c.repo.CountSteps(ctx)
	if err != nil {
		return nil, err
	}
	summary.TotalSteps = total
	summary.ActiveSteps = active
	summary.InactiveSteps = total - active
	return &summary, nil
}
