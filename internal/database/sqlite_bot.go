package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wiltort/bot-constructor/entity"
)

const botColumns = `id, name, description, telegram_token, gpt_api_key, gpt_api_url, ai_model,
	current_scenario, owner, is_active, is_running, last_started, last_stopped, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBot(row rowScanner) (*entity.Bot, error) {
	var b entity.Bot
	var started, stopped, created, updated int64
	err := row.Scan(&b.Id, &b.Name, &b.Description, &b.TelegramToken, &b.GptApiKey, &b.GptApiUrl,
		&b.AiModel, &b.CurrentScenario, &b.Owner, &b.IsActive, &b.IsRunning,
		&started, &stopped, &created, &updated)
	if err != nil {
		return nil, err
	}
	b.LastStarted = fromMillis(started)
	b.LastStopped = fromMillis(stopped)
	b.CreatedAt = fromMillis(created)
	b.UpdatedAt = fromMillis(updated)
	return &b, nil
}

func (s *SQLite) GetBot(ctx context.Context, id string) (*entity.Bot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+botColumns+` FROM bots WHERE id = ?`, id)
	b, err := scanBot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get bot: %w", err)
	}
	return b, nil
}

func (s *SQLite) ListBots(ctx context.Context) ([]entity.Bot, error) {
	return s.queryBots(ctx, `SELECT `+botColumns+` FROM bots ORDER BY name, id`)
}

// BotsByScenario returns the bots bound to the scenario.
func (s *SQLite) BotsByScenario(ctx context.Context, scenarioID string) ([]entity.Bot, error) {
	return s.queryBots(ctx, `SELECT `+botColumns+` FROM bots WHERE current_scenario = ? ORDER BY name, id`, scenarioID)
}

func (s *SQLite) queryBots(ctx context.Context, query string, args ...any) ([]entity.Bot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bots: %w", err)
	}
	defer rows.Close()

	var bots []entity.Bot
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan bot: %w", err)
		}
		bots = append(bots, *b)
	}
	return bots, rows.Err()
}

// UpsertBot saves the bot configuration. Runtime status fields are left untouched.
func (s *SQLite) UpsertBot(ctx context.Context, bot *entity.Bot) error {
	if bot.Id == "" {
		bot.Id = newID()
	}
	now := time.Now().UTC()
	bot.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bots (id, name, description, telegram_token, gpt_api_key, gpt_api_url, ai_model,
			current_scenario, owner, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			telegram_token = excluded.telegram_token,
			gpt_api_key = excluded.gpt_api_key,
			gpt_api_url = excluded.gpt_api_url,
			ai_model = excluded.ai_model,
			current_scenario = excluded.current_scenario,
			owner = excluded.owner,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		bot.Id, bot.Name, bot.Description, bot.TelegramToken, bot.GptApiKey, bot.GptApiUrl, bot.AiModel,
		bot.CurrentScenario, bot.Owner, bot.IsActive, toMillis(now), toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("sqlite upsert bot: %w", err)
	}
	return nil
}

func (s *SQLite) SaveBotStatus(ctx context.Context, id string, status entity.BotStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bots SET
			is_running = ?,
			last_started = CASE WHEN ? = 0 THEN last_started ELSE ? END,
			last_stopped = CASE WHEN ? = 0 THEN last_stopped ELSE ? END
		WHERE id = ?`,
		status.IsRunning,
		toMillis(status.LastStarted), toMillis(status.LastStarted),
		toMillis(status.LastStopped), toMillis(status.LastStopped),
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite update bot status: %w", err)
	}
	return nil
}
