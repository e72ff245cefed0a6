package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wiltort/bot-constructor/bot/scenario"
)

// ImportSeed stores the scenarios, steps and bots of a seed file. Existing
// records with the same ids are overwritten, runtime status is kept.
func (c *Core) ImportSeed(ctx context.Context, seed *scenario.Seed) error {
	for i := range seed.Scenarios {
		sc := &seed.Scenarios[i]
		if err := c.repo.UpsertScenario(ctx, sc); err != nil {
			return fmt.Errorf("scenario %s: %w", sc.Id, err)
		}
		for j := range sc.Steps {
			if err := c.repo.CreateStep(ctx, &sc.Steps[j]); err != nil {
				return fmt.Errorf("scenario %s step %q: %w", sc.Id, sc.Steps[j].Title, err)
			}
		}
	}
	for i := range seed.Bots {
		if err := c.repo.UpsertBot(ctx, &seed.Bots[i]); err != nil {
			return fmt.Errorf("bot %s: %w", seed.Bots[i].Id, err)
		}
	}

	c.log.With(
		slog.Int("scenarios", len(seed.Scenarios)),
		slog.Int("bots", len(seed.Bots)),
	).Info("seed imported")
	return nil
}
