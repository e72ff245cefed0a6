package entity

import (
	"net/http"
	"time"

	"github.com/wiltort/bot-constructor/internal/lib/validate"
)

type Bot struct {
	Id              string    `json:"id" bson:"id" yaml:"id,omitempty"`
	Name            string    `json:"name" bson:"name" yaml:"name" validate:"required,max=100"`
	Description     string    `json:"description" bson:"description" yaml:"description,omitempty"`
	TelegramToken   string    `json:"telegram_token,omitempty" bson:"telegram_token" yaml:"telegram_token" validate:"omitempty,tgtoken"`
	GptApiKey       string    `json:"gpt_api_key,omitempty" bson:"gpt_api_key" yaml:"gpt_api_key,omitempty"`
	GptApiUrl       string    `json:"gpt_api_url,omitempty" bson:"gpt_api_url" yaml:"gpt_api_url,omitempty" validate:"omitempty,url"`
	AiModel         string    `json:"ai_model" bson:"ai_model" yaml:"ai_model,omitempty"`
	CurrentScenario string    `json:"current_scenario" bson:"current_scenario" yaml:"current_scenario,omitempty"`
	Owner           string    `json:"owner" bson:"owner" yaml:"owner,omitempty"`
	IsActive        bool      `json:"is_active" bson:"is_active" yaml:"is_active"`
	IsRunning       bool      `json:"is_running" bson:"is_running" yaml:"-"`
	LastStarted     time.Time `json:"last_started" bson:"last_started" yaml:"-"`
	LastStopped     time.Time `json:"last_stopped" bson:"last_stopped" yaml:"-"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at" yaml:"-"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at" yaml:"-"`
}

func (b *Bot) Bind(_ *http.Request) error {
	return validate.Struct(b)
}

// BotStatus is the persisted runtime status of a bot.
// Zero timestamps are left untouched when saved.
type BotStatus struct {
	IsRunning   bool      `json:"is_running" bson:"is_running"`
	LastStarted time.Time `json:"last_started" bson:"last_started"`
	LastStopped time.Time `json:"last_stopped" bson:"last_stopped"`
}

// BotSummary aggregates bot and step counters.
type BotSummary struct {
	TotalBots     int `json:"total_bots"`
	ActiveBots    int `json:"active_bots"`
	RunningBots   int `json:"running_bots"`
	StoppedBots   int `json:"stopped_bots"`
	InactiveBots  int `json:"inactive_bots"`
	TotalSteps    int `json:"total_handlers"`
	ActiveSteps   int `json:"active_handlers"`
	InactiveSteps int `json:"inactive_handlers"`
}
