package chat

import "strings"

// DisplayName is how the sender is addressed in step messages.
func (u Update) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return u.UserName
}

// FormatMessage substitutes the {user} and {username} placeholders.
func FormatMessage(text string, u Update) string {
	if !strings.Contains(text, "{") {
		return text
	}
	display := u.DisplayName()
	username := display
	if u.UserName != "" {
		username = u.UserName
	}
	return strings.NewReplacer("{user}", display, "{username}", username).Replace(text)
}

// KeyboardRows converts stored keyboard labels into menu buttons.
func KeyboardRows(keyboard [][]string) [][]MenuButton {
	if len(keyboard) == 0 {
		return nil
	}
	rows := make([][]MenuButton, 0, len(keyboard))
	for _, labels := range keyboard {
		row := make([]MenuButton, len(labels))
		for i, label := range labels {
			row[i] = MenuButton{Text: label}
		}
		rows = append(rows, row)
	}
	return rows
}
