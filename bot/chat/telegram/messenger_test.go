package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wiltort/bot-constructor/bot/chat"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	chatID  int64
	text    string
	opts    *tgbotapi.SendMessageOpts
	actions []string
}

func (f *fakeAPI) SendMessage(chatId int64, text string, opts *tgbotapi.SendMessageOpts) (*tgbotapi.Message, error) {
	f.chatID, f.text, f.opts = chatId, text, opts
	return &tgbotapi.Message{}, nil
}

func (f *fakeAPI) SendChatAction(_ int64, action string, _ *tgbotapi.SendChatActionOpts) (bool, error) {
	f.actions = append(f.actions, action)
	return true, nil
}

func (f *fakeAPI) GetMe(_ *tgbotapi.GetMeOpts) (*tgbotapi.User, error) {
	return &tgbotapi.User{Id: 1, IsBot: true}, nil
}

func TestMessenger_SendText(t *testing.T) {
	api := &fakeAPI{}
	m := NewMessenger(api)

	require.NoError(t, m.SendText("42", "hello"))
	assert.Equal(t, int64(42), api.chatID)
	assert.Equal(t, "hello", api.text)
	assert.Nil(t, api.opts)

	assert.Error(t, m.SendText("not-a-number", "x"))
}

func TestMessenger_SendMenuIsOneTime(t *testing.T) {
	api := &fakeAPI{}
	m := NewMessenger(api)

	rows := [][]chat.MenuButton{{{Text: "A"}, {Text: "B"}}, {{Text: "C"}}}
	require.NoError(t, m.SendMenu("7", "pick", rows))

	require.NotNil(t, api.opts)
	markup, ok := api.opts.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, markup.OneTimeKeyboard)
	assert.Equal(t, [][]tgbotapi.KeyboardButton{{{Text: "A"}, {Text: "B"}}, {{Text: "C"}}}, markup.Keyboard)
}

func TestMessenger_SendTyping(t *testing.T) {
	api := &fakeAPI{}
	require.NoError(t, NewMessenger(api).SendTyping("1"))
	assert.Equal(t, []string{"typing"}, api.actions)
}

func TestIsFatalPollingError(t *testing.T) {
	assert.True(t, isFatalPollingError(&tgbotapi.TelegramError{Code: 401, Description: "Unauthorized"}))
	assert.True(t, isFatalPollingError(&tgbotapi.TelegramError{Code: 409, Description: "Conflict"}))
	assert.False(t, isFatalPollingError(&tgbotapi.TelegramError{Code: 502}))
	assert.False(t, isFatalPollingError(errors.New("timeout")))
}

func TestNewUpdate(t *testing.T) {
	msg := &tgbotapi.Message{Text: "hi", Chat: tgbotapi.Chat{Id: -100}}
	user := &tgbotapi.User{Id: 5, Username: "ann", FirstName: "Ann"}

	u := newUpdate(msg, user)
	assert.Equal(t, chat.Update{ChatID: "-100", UserID: "5", UserName: "ann", FirstName: "Ann", Text: "hi"}, u)

	assert.Equal(t, chat.Update{ChatID: "-100", Text: "hi"}, newUpdate(msg, nil))
}

func TestPingOpts_UsesContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	opts := pingOpts(ctx)
	require.NotNil(t, opts.RequestOpts)
	assert.LessOrEqual(t, opts.RequestOpts.Timeout, 3*time.Second)
	assert.Greater(t, opts.RequestOpts.Timeout, 2*time.Second)
}

func TestPingOpts_DefaultWithoutDeadline(t *testing.T) {
	opts := pingOpts(context.Background())
	assert.Equal(t, pingTimeout, opts.RequestOpts.Timeout)
}

func TestPingOpts_ExpiredDeadline(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	assert.Equal(t, time.Millisecond, pingOpts(ctx).RequestOpts.Timeout)
}
