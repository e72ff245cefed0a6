package scenario

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/wiltort/bot-constructor/entity"
)

var (
	ErrCompilation   = errors.New("scenario compilation failed")
	ErrNoActiveSteps = fmt.Errorf("%w: scenario has no active steps", ErrCompilation)
	ErrNoEntryPoints = fmt.Errorf("%w: scenario has no entry points", ErrCompilation)
)

// Route pairs a trigger with the step it activates.
type Route struct {
	Trigger Trigger
	Step    entity.Step
}

// StateMachine is the compiled, immutable form of a scenario.
type StateMachine struct {
	States      map[string]int
	EntryPoints []Route
	Table       map[int][]Route
	Fallbacks   []Route
}

// StateIndex returns the index of a named state.
func (m *StateMachine) StateIndex(name string) (int, bool) {
	idx, ok := m.States[name]
	return idx, ok
}

func (m *StateMachine) addState(name string) int {
	if idx, ok := m.States[name]; ok {
		return idx
	}
	idx := len(m.States)
	m.States[name] = idx
	return idx
}

// CompileFunc turns active steps into a state machine.
type CompileFunc func(steps []entity.Step) (*StateMachine, error)

// Compilers maps scenario types to their compiler.
var Compilers = map[entity.ScenarioType]CompileFunc{
	entity.ScenarioConversation: CompileConversation,
}

// Compile picks the compiler for the scenario type; empty type means conversation.
func Compile(scenarioType entity.ScenarioType, steps []entity.Step) (*StateMachine, error) {
	if scenarioType == "" {
		scenarioType = entity.ScenarioConversation
	}
	compile, ok := Compilers[scenarioType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown scenario type %q", ErrCompilation, scenarioType)
	}
	return compile(steps)
}

// CompileConversation builds a conversation state machine. Inactive steps are skipped.
func CompileConversation(steps []entity.Step) (*StateMachine, error) {
	active := make([]entity.Step, 0, len(steps))
	for _, s := range steps {
		if s.IsActive {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		return nil, ErrNoActiveSteps
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority < active[j].Priority
		}
		return active[i].Id < active[j].Id
	})

	m := &StateMachine{
		States: make(map[string]int),
		Table:  make(map[int][]Route),
	}

	for _, step := range active {
		trigger, err := triggerFor(step)
		if err != nil {
			return nil, err
		}
		route := Route{Trigger: trigger, Step: step}

		if step.IsEntryPoint {
			m.EntryPoints = append(m.EntryPoints, route)
		}
		if step.ResultState != "" {
			m.addState(step.ResultState)
		}
		if step.IsFallback {
			m.Fallbacks = append(m.Fallbacks, route)
		}
		if step.OnState != "" {
			idx := m.addState(step.OnState)
			m.Table[idx] = append(m.Table[idx], route)
		}
	}

	if len(m.EntryPoints) == 0 {
		return nil, ErrNoEntryPoints
	}
	return m, nil
}

func triggerFor(step entity.Step) (Trigger, error) {
	if step.Template.IsCommand() {
		name := step.HandlerData.Command
		if name == "" {
			name = step.Template.Label()
		}
		return CommandTrigger{Name: name}, nil
	}
	if step.HandlerData.FilterRegex != "" {
		re, err := regexp.Compile(step.HandlerData.FilterRegex)
		if err != nil {
			return nil, fmt.Errorf("%w: step %q: invalid filter_regex: %v", ErrCompilation, step.Title, err)
		}
		return PatternTrigger{Pattern: re}, nil
	}
	return TextTrigger{}, nil
}
