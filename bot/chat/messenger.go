package chat

// Messenger is the platform UI adapter interface.
// A transport implements it to deliver replies to a chat.
type Messenger interface {
	SendText(chatID, text string) error
	SendMenu(chatID, text string, rows [][]MenuButton) error
	SendTyping(chatID string) error
}

// MenuButton represents a button in a one-time reply keyboard.
type MenuButton struct {
	Text string
}

// Update is a normalized inbound text message.
type Update struct {
	ChatID    string
	UserID    string
	UserName  string
	FirstName string
	LastName  string
	Text      string
}
