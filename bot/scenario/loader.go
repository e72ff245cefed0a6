package scenario

import (
	"fmt"
	"os"

	"github.com/wiltort/bot-constructor/entity"

	"gopkg.in/yaml.v3"
)

// Seed is the content of a scenario seed file: scenarios with their steps
// and the bots bound to them.
type Seed struct {
	Scenarios []entity.Scenario `yaml:"scenarios"`
	Bots      []entity.Bot      `yaml:"bots"`
}

// LoadSeed reads and parses a seed YAML file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed parses seed YAML bytes. Every scenario must validate and compile.
func ParseSeed(data []byte) (*Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if len(s.Scenarios) == 0 {
		return nil, fmt.Errorf("seed must have at least one scenario")
	}

	ids := make(map[string]struct{}, len(s.Scenarios))
	for i := range s.Scenarios {
		sc := &s.Scenarios[i]
		if sc.Id == "" {
			return nil, fmt.Errorf("scenario %q: id is required", sc.Title)
		}
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.Id, err)
		}
		if _, err := Compile(sc.ScenarioType, sc.Steps); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.Id, err)
		}
		for j := range sc.Steps {
			sc.Steps[j].ScenarioId = sc.Id
			if sc.Steps[j].Id == "" {
				sc.Steps[j].Id = fmt.Sprintf("%s-%03d", sc.Id, j+1)
			}
		}
		ids[sc.Id] = struct{}{}
	}

	for i := range s.Bots {
		b := &s.Bots[i]
		if b.Id == "" {
			return nil, fmt.Errorf("bot %q: id is required", b.Name)
		}
		if err := b.Bind(nil); err != nil {
			return nil, fmt.Errorf("bot %q: %w", b.Id, err)
		}
		if b.CurrentScenario != "" {
			if _, ok := ids[b.CurrentScenario]; !ok {
				return nil, fmt.Errorf("bot %q: unknown scenario %q", b.Id, b.CurrentScenario)
			}
		}
	}
	return &s, nil
}
