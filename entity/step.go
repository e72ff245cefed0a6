package entity

import (
	"net/http"

	"github.com/wiltort/bot-constructor/internal/lib/validate"
)

// Template is the kind of a scenario step.
type Template string

const (
	TemplateStart    Template = "start"
	TemplateClear    Template = "clear"
	TemplateHelp     Template = "help"
	TemplateStop     Template = "stop"
	TemplateCustom   Template = "custom"
	TemplateQuestion Template = "question"
)

// IsCommand reports whether steps of this template are triggered by a /command.
func (t Template) IsCommand() bool {
	switch t {
	case TemplateStart, TemplateClear, TemplateHelp, TemplateStop:
		return true
	default:
		return false
	}
}

// Label is the canonical command name of the template.
func (t Template) Label() string {
	return string(t)
}

// HandlerConfig is the structured per-step handler data.
type HandlerConfig struct {
	Command      string     `json:"command,omitempty" bson:"command,omitempty" yaml:"command,omitempty" validate:"omitempty,excludesall=/"`
	FilterRegex  string     `json:"filter_regex,omitempty" bson:"filter_regex,omitempty" yaml:"filter_regex,omitempty" validate:"omitempty,regexp"`
	Keyboard     [][]string `json:"keyboard,omitempty" bson:"keyboard,omitempty" yaml:"keyboard,omitempty" validate:"omitempty,dive,min=1,dive,required"`
	SystemPrompt string     `json:"system,omitempty" bson:"system,omitempty" yaml:"system,omitempty"`
	ExtraContext string     `json:"context,omitempty" bson:"context,omitempty" yaml:"context,omitempty"`
}

type Step struct {
	Id           string        `json:"id" bson:"id" yaml:"id,omitempty"`
	ScenarioId   string        `json:"scenario_id" bson:"scenario_id" yaml:"-"`
	Title        string        `json:"title" bson:"title" yaml:"title" validate:"required,max=100"`
	OnState      string        `json:"on_state" bson:"on_state" yaml:"on_state,omitempty" validate:"max=100"`
	ResultState  string        `json:"result_state" bson:"result_state" yaml:"result_state,omitempty" validate:"max=100"`
	Template     Template      `json:"template" bson:"template" yaml:"template" validate:"required,oneof=start clear help stop custom question"`
	IsEntryPoint bool          `json:"is_entry_point" bson:"is_entry_point" yaml:"is_entry_point,omitempty"`
	IsFallback   bool          `json:"is_fallback" bson:"is_fallback" yaml:"is_fallback,omitempty"`
	IsEnd        bool          `json:"is_end" bson:"is_end" yaml:"is_end,omitempty"`
	IsActive     bool          `json:"is_active" bson:"is_active" yaml:"is_active"`
	IsUsingAI    bool          `json:"is_using_ai" bson:"is_using_ai" yaml:"is_using_ai,omitempty"`
	Priority     int           `json:"priority" bson:"priority" yaml:"priority"`
	Message      string        `json:"message" bson:"message" yaml:"message,omitempty"`
	HandlerData  HandlerConfig `json:"handler_data" bson:"handler_data" yaml:"handler_data,omitempty"`
}

func (s *Step) Bind(_ *http.Request) error {
	return validate.Struct(s)
}

// Validate checks the step the way the control surface does on every edit.
func (s *Step) Validate() error {
	return validate.Struct(s)
}
