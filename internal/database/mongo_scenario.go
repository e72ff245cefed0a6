package repository

import (
	"context"
	"fmt"

	"github.com/wiltort/bot-constructor/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (m *MongoDB) GetScenario(ctx context.Context, id string) (*entity.Scenario, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(scenariosCollection)
	filter := bson.D{{"id", id}}

	var sc entity.Scenario
	err = collection.FindOne(ctx, filter).Decode(&sc)
	if err != nil {
		return nil, m.findError(err)
	}
	return &sc, nil
}

func (m *MongoDB) UpsertScenario(ctx context.Context, sc *entity.Scenario) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(scenariosCollection)

	if sc.Id == "" {
		sc.Id = newID()
	}
	if sc.ScenarioType == "" {
		sc.ScenarioType = entity.ScenarioConversation
	}

	filter := bson.D{{"id", sc.Id}}
	update := bson.D{{"$set", sc}}
	opts := options.Update().SetUpsert(true)

	_, err = collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("mongodb upsert scenario: %w", err)
	}
	return nil
}

// ActiveSteps returns the active steps of a scenario ordered by priority, then id.
func (m *MongoDB) ActiveSteps(ctx context.Context, scenarioID string) ([]entity.Step, error) {
	return m.findSteps(ctx, bson.D{{"scenario_id", scenarioID}, {"is_active", true}})
}

func (m *MongoDB) ListSteps(ctx context.Context, scenarioID string) ([]entity.Step, error) {
	return m.findSteps(ctx, bson.D{{"scenario_id", scenarioID}})
}

func (m *MongoDB) findSteps(ctx context.Context, filter bson.D) ([]entity.Step, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(stepsCollection)
	opts := options.Find().SetSort(bson.D{{"priority", 1}, {"id", 1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find steps: %w", err)
	}
	defer cursor.Close(ctx)

	var steps []entity.Step
	if err = cursor.All(ctx, &steps); err != nil {
		return nil, fmt.Errorf("mongodb decode steps: %w", err)
	}
	return steps, nil
}

func (m *MongoDB) GetStep(ctx context.Context, scenarioID, stepID string) (*entity.Step, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(stepsCollection)
	filter := bson.D{{"scenario_id", scenarioID}, {"id", stepID}}

	var step entity.Step
	err = collection.FindOne(ctx, filter).Decode(&step)
	if err != nil {
		return nil, m.findError(err)
	}
	return &step, nil
}

func (m *MongoDB) CreateStep(ctx context.Context, step *entity.Step) error {
	if step.Id == "" {
		step.Id = newID()
	}
	return m.saveStep(ctx, step, true)
}

func (m *MongoDB) UpdateStep(ctx context.Context, step *entity.Step) error {
	return m.saveStep(ctx, step, false)
}

func (m *MongoDB) saveStep(ctx context.Context, step *entity.Step, upsert bool) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(stepsCollection)

	dup, err := collection.CountDocuments(ctx, bson.D{
		{"scenario_id", step.ScenarioId},
		{"title", step.Title},
		{"id", bson.D{{"$ne", step.Id}}},
	})
	if err != nil {
		return fmt.Errorf("mongodb count steps: %w", err)
	}
	if dup > 0 {
		return ErrDuplicateTitle
	}

	filter := bson.D{{"scenario_id", step.ScenarioId}, {"id", step.Id}}
	update := bson.D{{"$set", step}}
	opts := options.Update().SetUpsert(upsert)

	res, err := collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("mongodb save step: %w", err)
	}
	if !upsert && res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoDB) DeleteStep(ctx context.Context, scenarioID, stepID string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(stepsCollection)
	filter := bson.D{{"scenario_id", scenarioID}, {"id", stepID}}

	res, err := collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("mongodb delete step: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CountSteps returns the total and active step counts.
func (m *MongoDB) CountSteps(ctx context.Context) (int, int, error) {
	connection, err := m.connect()
	if err != nil {
		return 0, 0, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(stepsCollection)

	total, err := collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, 0, fmt.Errorf("mongodb count steps: %w", err)
	}
	active, err := collection.CountDocuments(ctx, bson.D{{"is_active", true}})
	if err != nil {
		return 0, 0, fmt.Errorf("mongodb count steps: %w", err)
	}
	return int(total), int(active), nil
}
