package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wiltort/bot-constructor/entity"
)

const stepColumns = `id, scenario_id, title, on_state, result_state, template, is_entry_point, is_fallback,
	is_end, is_active, is_using_ai, priority, message, handler_data`

func scanStep(row rowScanner) (*entity.Step, error) {
	var st entity.Step
	var handlerData string
	err := row.Scan(&st.Id, &st.ScenarioId, &st.Title, &st.OnState, &st.ResultState, &st.Template,
		&st.IsEntryPoint, &st.IsFallback, &st.IsEnd, &st.IsActive, &st.IsUsingAI, &st.Priority,
		&st.Message, &handlerData)
	if err != nil {
		return nil, err
	}
	if handlerData != "" {
		if err := json.Unmarshal([]byte(handlerData), &st.HandlerData); err != nil {
			return nil, fmt.Errorf("decode handler_data of step %s: %w", st.Id, err)
		}
	}
	return &st, nil
}

func (s *SQLite) GetScenario(ctx context.Context, id string) (*entity.Scenario, error) {
	var sc entity.Scenario
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, owner, scenario_type FROM scenarios WHERE id = ?`, id,
	).Scan(&sc.Id, &sc.Title, &sc.Owner, &sc.ScenarioType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get scenario: %w", err)
	}
	return &sc, nil
}

func (s *SQLite) UpsertScenario(ctx context.Context, sc *entity.Scenario) error {
	if sc.Id == "" {
		sc.Id = newID()
	}
	if sc.ScenarioType == "" {
		sc.ScenarioType = entity.ScenarioConversation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scenarios (id, title, owner, scenario_type) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			owner = excluded.owner,
			scenario_type = excluded.scenario_type`,
		sc.Id, sc.Title, sc.Owner, string(sc.ScenarioType),
	)
	if err != nil {
		return fmt.Errorf("sqlite upsert scenario: %w", err)
	}
	return nil
}

// ActiveSteps returns the active steps of a scenario ordered by priority, then id.
func (s *SQLite) ActiveSteps(ctx context.Context, scenarioID string) ([]entity.Step, error) {
	return s.querySteps(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE scenario_id = ? AND is_active = 1 ORDER BY priority, id`,
		scenarioID)
}

func (s *SQLite) ListSteps(ctx context.Context, scenarioID string) ([]entity.Step, error) {
	return s.querySteps(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE scenario_id = ? ORDER BY priority, id`,
		scenarioID)
}

func (s *SQLite) querySteps(ctx context.Context, query string, args ...any) ([]entity.Step, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query steps: %w", err)
	}
	defer rows.Close()

	var steps []entity.Step
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan step: %w", err)
		}
		steps = append(steps, *st)
	}
	return steps, rows.Err()
}

func (s *SQLite) GetStep(ctx context.Context, scenarioID, stepID string) (*entity.Step, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE scenario_id = ? AND id = ?`, scenarioID, stepID)
	st, err := scanStep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get step: %w", err)
	}
	return st, nil
}

// CreateStep inserts a new step, or replaces the step with the same id.
func (s *SQLite) CreateStep(ctx context.Context, step *entity.Step) error {
	if step.Id == "" {
		step.Id = newID()
	}
	handlerData, err := json.Marshal(step.HandlerData)
	if err != nil {
		return fmt.Errorf("encode handler_data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO steps (`+stepColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			scenario_id = excluded.scenario_id,
			title = excluded.title,
			on_state = excluded.on_state,
			result_state = excluded.result_state,
			template = excluded.template,
			is_entry_point = excluded.is_entry_point,
			is_fallback = excluded.is_fallback,
			is_end = excluded.is_end,
			is_active = excluded.is_active,
			is_using_ai = excluded.is_using_ai,
			priority = excluded.priority,
			message = excluded.message,
			handler_data = excluded.handler_data`,
		step.Id, step.ScenarioId, step.Title, step.OnState, step.ResultState, string(step.Template),
		step.IsEntryPoint, step.IsFallback, step.IsEnd, step.IsActive, step.IsUsingAI, step.Priority,
		step.Message, string(handlerData),
	)
	return stepWriteError(err)
}

func (s *SQLite) UpdateStep(ctx context.Context, step *entity.Step) error {
	handlerData, err := json.Marshal(step.HandlerData)
	if err != nil {
		return fmt.Errorf("encode handler_data: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE steps SET
			title = ?, on_state = ?, result_state = ?, template = ?, is_entry_point = ?, is_fallback = ?,
			is_end = ?, is_active = ?, is_using_ai = ?, priority = ?, message = ?, handler_data = ?
		WHERE scenario_id = ? AND id = ?`,
		step.Title, step.OnState, step.ResultState, string(step.Template), step.IsEntryPoint, step.IsFallback,
		step.IsEnd, step.IsActive, step.IsUsingAI, step.Priority, step.Message, string(handlerData),
		step.ScenarioId, step.Id,
	)
	if err != nil {
		return stepWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) DeleteStep(ctx context.Context, scenarioID, stepID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM steps WHERE scenario_id = ? AND id = ?`, scenarioID, stepID)
	if err != nil {
		return fmt.Errorf("sqlite delete step: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountSteps returns the total and active step counts.
func (s *SQLite) CountSteps(ctx context.Context) (int, int, error) {
	var total, active int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(is_active), 0) FROM steps`,
	).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("sqlite count steps: %w", err)
	}
	return total, active, nil
}

func stepWriteError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed: steps.scenario_id, steps.title") {
		return ErrDuplicateTitle
	}
	return fmt.Errorf("sqlite save step: %w", err)
}
