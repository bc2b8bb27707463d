package router

import (
	"context"
	"time"

	tg "github.com/jakovchuk/socalska-report-bot/core/telegram"
	tghelpers "github.com/jakovchuk/socalska-report-bot/core/telegram/helpers"
	"github.com/jakovchuk/socalska-report-bot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation is the part of a multi-step flow the text router needs.
type Conversation interface {
	InProgress(ctx context.Context, chatID int64) bool
	HandleText(c tele.Context) error
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoutes builds the handler for plain text. Text goes to the conversation
// while one is in progress, then to slash commands, then to the fallbacks.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if conv != nil && c.Chat() != nil && conv.InProgress(tghelpers.BuildContext(c), c.Chat().ID) {
			return handleWithSummary(c, "flow.text", start, func() error {
				return conv.HandleText(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
	}
}

// TextRoute binds an exact message text, such as a reply keyboard button, to h.
func TextRoute(text, name string, h tele.HandlerFunc) tg.Route {
	handler := func(c tele.Context) error {
		return handleWithSummary(c, name, time.Now(), func() error {
			return h(c)
		})
	}
	return tg.Route{
		Endpoint: text,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
