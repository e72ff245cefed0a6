package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/wiltort/bot-constructor/internal/lib/sl"
)

func (c *Core) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(c.healthInterval)
	defer ticker.Stop()

	c.log.With(
		slog.Duration("interval", c.healthInterval),
	).Info("health check started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CheckHealth(ctx)
		}
	}
}

// CheckHealth pings the transport of every running bot and returns the ids
// that failed. Failures are reported, never acted upon.
func (c *Core) CheckHealth(ctx context.Context) []string {
	var failed []string
	for _, id := range c.registry.Running() {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := c.registry.Ping(pingCtx, id)
		cancel()
		if err == nil {
			continue
		}
		failed = append(failed, id)
		c.log.Warn("bot is unreachable", slog.String("bot_id", id), sl.Err(err))
		if c.notifier != nil {
			c.notifier.PublishUnreachable(id, err)
		}
	}
	return failed
}
