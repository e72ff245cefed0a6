package chat

import (
	"strings"
	"unicode"
)

// MaxMessageLength is the Telegram limit for a single text message, in characters.
const MaxMessageLength = 4096

// SplitMessage cuts text into chunks of at most limit characters. A chunk
// ends at the last newline inside the limit, else at the last space, else
// exactly at the limit. The remainder has its leading whitespace trimmed.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for len(runes) > 0 {
		if len(runes) <= limit {
			parts = append(parts, string(runes))
			break
		}
		window := string(runes[:limit])
		cut := strings.LastIndex(window, "\n")
		if cut <= 0 {
			cut = strings.LastIndex(window, " ")
		}
		var head string
		if cut <= 0 {
			head = window
		} else {
			head = window[:cut]
		}
		parts = append(parts, head)
		rest := strings.TrimLeftFunc(string(runes[len([]rune(head)):]), unicode.IsSpace)
		runes = []rune(rest)
	}
	return parts
}
