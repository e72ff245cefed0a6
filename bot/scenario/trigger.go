package scenario

import (
	"regexp"
	"strings"
)

// Trigger decides whether an inbound text activates a route.
type Trigger interface {
	Match(text string) bool
	String() string
}

// CommandTrigger matches "/name", "/name args" and "/name@botname",
// case-insensitively.
type CommandTrigger struct {
	Name string
}

func (t CommandTrigger) Match(text string) bool {
	name, ok := CommandName(text)
	return ok && strings.EqualFold(name, t.Name)
}

func (t CommandTrigger) String() string {
	return "command:/" + t.Name
}

// PatternTrigger matches when the pattern is found anywhere in the text.
type PatternTrigger struct {
	Pattern *regexp.Regexp
}

func (t PatternTrigger) Match(text string) bool {
	return t.Pattern.MatchString(text)
}

func (t PatternTrigger) String() string {
	return "pattern:" + t.Pattern.String()
}

// TextTrigger matches any non-empty text that is not a command.
type TextTrigger struct{}

func (TextTrigger) Match(text string) bool {
	if text == "" {
		return false
	}
	_, isCommand := CommandName(text)
	return !isCommand
}

func (TextTrigger) String() string {
	return "text"
}

// CommandName extracts the command name from a message like "/start@my_bot payload".
func CommandName(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	word, _, _ := strings.Cut(text[1:], " ")
	word, _, _ = strings.Cut(word, "\n")
	word, _, _ = strings.Cut(word, "@")
	if word == "" {
		return "", false
	}
	return word, true
}
