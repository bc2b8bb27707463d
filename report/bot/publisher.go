package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jakovchuk/socalska-report-bot/core/logger"
	"github.com/jakovchuk/socalska-report-bot/core/telegram/sender"
)

// Channel is a publish destination given either as a numeric chat id
// ("-1001234567890") or a public username ("@reports").
type Channel string

// Recipient implements tele.Recipient.
func (c Channel) Recipient() string {
	return strings.TrimSpace(string(c))
}

// Valid reports whether c looks like a chat id or a channel username.
func (c Channel) Valid() bool {
	s := c.Recipient()
	if strings.HasPrefix(s, "@") {
		return len(s) > 1
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// ChannelPublisher posts finished reports to a channel. With a dispatcher the
// post is queued and Publish returns once it is accepted.
type ChannelPublisher struct {
	messenger  *Messenger
	channel    Channel
	dispatcher *sender.Dispatcher
}

// NewChannelPublisher returns a publisher posting to channel through m.
// dispatcher may be nil for synchronous delivery.
func NewChannelPublisher(m *Messenger, channel Channel, dispatcher *sender.Dispatcher) *ChannelPublisher {
	return &ChannelPublisher{messenger: m, channel: channel, dispatcher: dispatcher}
}

// Publish sends text to the channel.
func (p *ChannelPublisher) Publish(ctx context.Context, text string) error {
	run := func() error {
		api, err := p.messenger.client()
		if err != nil {
			return err
		}
		_, err = api.Send(p.channel, text)
		return err
	}
	if p.dispatcher == nil {
		return run()
	}

	err := p.dispatcher.Enqueue(ctx, "publish.report", "sendMessage", run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", "publish.report"),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}
