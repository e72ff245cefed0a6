package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/wiltort/bot-constructor/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (m *MongoDB) GetBot(ctx context.Context, id string) (*entity.Bot, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(botsCollection)
	filter := bson.D{{"id", id}}

	var bot entity.Bot
	err = collection.FindOne(ctx, filter).Decode(&bot)
	if err != nil {
		return nil, m.findError(err)
	}
	return &bot, nil
}

func (m *MongoDB) ListBots(ctx context.Context) ([]entity.Bot, error) {
	return m.findBots(ctx, bson.D{})
}

// BotsByScenario returns the bots bound to the scenario.
func (m *MongoDB) BotsByScenario(ctx context.Context, scenarioID string) ([]entity.Bot, error) {
	return m.findBots(ctx, bson.D{{"current_scenario", scenarioID}})
}

func (m *MongoDB) findBots(ctx context.Context, filter bson.D) ([]entity.Bot, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(botsCollection)
	opts := options.Find().SetSort(bson.D{{"name", 1}, {"id", 1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find bots: %w", err)
	}
	defer cursor.Close(ctx)

	var bots []entity.Bot
	if err = cursor.All(ctx, &bots); err != nil {
		return nil, fmt.Errorf("mongodb decode bots: %w", err)
	}
	return bots, nil
}

// UpsertBot saves the bot configuration. Runtime status fields are left untouched.
func (m *MongoDB) UpsertBot(ctx context.Context, bot *entity.Bot) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(botsCollection)

	if bot.Id == "" {
		bot.Id = newID()
	}
	now := time.Now().UTC()
	bot.UpdatedAt = now

	filter := bson.D{{"id", bot.Id}}
	update := bson.D{
		{"$set", bson.D{
			{"name", bot.Name},
			{"description", bot.Description},
			{"telegram_token", bot.TelegramToken},
			{"gpt_api_key", bot.GptApiKey},
			{"gpt_api_url", bot.GptApiUrl},
			{"ai_model", bot.AiModel},
			{"current_scenario", bot.CurrentScenario},
			{"owner", bot.Owner},
			{"is_active", bot.IsActive},
			{"updated_at", now},
		}},
		{"$setOnInsert", bson.D{
			{"id", bot.Id},
			{"is_running", false},
			{"created_at", now},
		}},
	}
	opts := options.Update().SetUpsert(true)

	_, err = collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("mongodb upsert bot: %w", err)
	}
	return nil
}

func (m *MongoDB) SaveBotStatus(ctx context.Context, id string, status entity.BotStatus) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(botsCollection)

	set := bson.D{{"is_running", status.IsRunning}}
	if !status.LastStarted.IsZero() {
		set = append(set, bson.E{Key: "last_started", Value: status.LastStarted})
	}
	if !status.LastStopped.IsZero() {
		set = append(set, bson.E{Key: "last_stopped", Value: status.LastStopped})
	}

	filter := bson.D{{"id", id}}
	_, err = collection.UpdateOne(ctx, filter, bson.D{{"$set", set}})
	if err != nil {
		return fmt.Errorf("mongodb update bot status: %w", err)
	}
	return nil
}
