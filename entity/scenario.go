package entity

import (
	"fmt"
	"net/http"

	"github.com/wiltort/bot-constructor/internal/lib/validate"
)

// ScenarioType selects the compiler used for a scenario.
type ScenarioType string

const (
	ScenarioConversation ScenarioType = "conversation"
)

type Scenario struct {
	Id           string       `json:"id" bson:"id" yaml:"id,omitempty"`
	Title        string       `json:"title" bson:"title" yaml:"title" validate:"required,max=100"`
	Owner        string       `json:"owner" bson:"owner" yaml:"owner,omitempty"`
	ScenarioType ScenarioType `json:"scenario_type" bson:"scenario_type" yaml:"scenario_type,omitempty" validate:"omitempty,oneof=conversation"`
	Steps        []Step       `json:"steps,omitempty" bson:"-" yaml:"steps,omitempty" validate:"dive"`
}

func (s *Scenario) Bind(_ *http.Request) error {
	return s.Validate()
}

// Validate checks field constraints and that step titles are unique.
func (s *Scenario) Validate() error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(s.Steps))
	for _, step := range s.Steps {
		if _, ok := seen[step.Title]; ok {
			return fmt.Errorf("duplicate step title %q", step.Title)
		}
		seen[step.Title] = struct{}{}
	}
	return nil
}
