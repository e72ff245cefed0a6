package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/wiltort/bot-constructor/bot/chat"
	"github.com/wiltort/bot-constructor/internal/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/message"
)

// ErrPollingRejected is returned by Run when Telegram refuses getUpdates
// for good, e.g. a revoked token or a second poller on the same token.
var ErrPollingRejected = errors.New("telegram rejected polling")

// Transport is a long-polling Telegram connection for one bot.
type Transport struct {
	*Messenger
	api *tgbotapi.Bot
	log *slog.Logger
}

// NewTransport creates the bot API client. The token is checked with getMe.
func NewTransport(token string, log *slog.Logger) (*Transport, error) {
	api, err := tgbotapi.NewBot(token, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %w", err)
	}
	return &Transport{
		Messenger: NewMessenger(api),
		api:       api,
		log:       log.With(sl.Module("telegram"), slog.String("username", api.User.Username)),
	}, nil
}

// Run polls for updates until ctx is cancelled or Telegram rejects polling.
func (t *Transport) Run(ctx context.Context, handle chat.HandlerFunc) error {
	fatal := make(chan error, 1)

	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		// If an error is returned by a handler, log it and continue going.
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Debug("handling update", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		// Updates are handed over one at a time so each chat sees them in
		// arrival order. handle only enqueues, see chat.Sequencer.
		MaxRoutines: 1,
	})
	updater := ext.NewUpdater(dispatcher, &ext.UpdaterOpts{
		UnhandledErrFunc: func(err error) {
			if isFatalPollingError(err) {
				select {
				case fatal <- err:
				default:
				}
				return
			}
			t.log.Warn("polling", sl.Err(err))
		},
	})

	dispatcher.AddHandler(handlers.NewMessage(message.Text, func(b *tgbotapi.Bot, ec *ext.Context) error {
		return handle(ctx, t, newUpdate(ec.EffectiveMessage, ec.EffectiveUser))
	}))

	err := updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}

	t.log.Info("polling started")

	var runErr error
	select {
	case <-ctx.Done():
	case err = <-fatal:
		runErr = fmt.Errorf("%w: %v", ErrPollingRejected, err)
	}

	if err := updater.Stop(); err != nil {
		t.log.Warn("stopping updater", sl.Err(err))
	}
	t.log.Info("polling stopped")
	return runErr
}

// Ping checks that the token is still accepted.
func (t *Transport) Ping(ctx context.Context) error {
	_, err := t.api.GetMe(pingOpts(ctx))
	return err
}

const pingTimeout = 10 * time.Second

// pingOpts bounds the getMe request by the context deadline.
func pingOpts(ctx context.Context) *tgbotapi.GetMeOpts {
	timeout := pingTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			timeout = time.Millisecond
		}
	}
	return &tgbotapi.GetMeOpts{
		RequestOpts: &tgbotapi.RequestOpts{Timeout: timeout},
	}
}

func isFatalPollingError(err error) bool {
	var tgErr *tgbotapi.TelegramError
	if !errors.As(err, &tgErr) {
		return false
	}
	return tgErr.Code == 401 || tgErr.Code == 404 || tgErr.Code == 409
}

func newUpdate(msg *tgbotapi.Message, user *tgbotapi.User) chat.Update {
	u := chat.Update{}
	if msg != nil {
		u.ChatID = strconv.FormatInt(msg.Chat.Id, 10)
		u.Text = msg.Text
	}
	if user != nil {
		u.UserID = strconv.FormatInt(user.Id, 10)
		u.UserName = user.Username
		u.FirstName = user.FirstName
		u.LastName = user.LastName
	}
	return u
}
