package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"unicode/utf8"

	"github.com/jakovchuk/socalska-report-bot/core/logger"
	"github.com/jakovchuk/socalska-report-bot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// MaxMessageRunes is Telegram's limit for one text message.
const MaxMessageRunes = 4096

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes SendText through d. Nil restores synchronous sends.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// SendText replies to the update's chat with plain text, queued on the
// dispatcher when one is set. Over-long text is cut to the message limit.
func SendText(c tele.Context, text string, opts ...interface{}) error {
	text = clip(text)
	send := func() error { return c.Send(text, opts...) }

	d := dispatcher.Load()
	if d == nil {
		return send()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, "send.text", "sendMessage", send)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", "send.text"),
			slog.String("err", err.Error()),
		)
		return send()
	}
	return err
}

func clip(text string) string {
	if utf8.RuneCountInString(text) <= MaxMessageRunes {
		return text
	}
	r := []rune(text)
	return string(r[:MaxMessageRunes])
}
