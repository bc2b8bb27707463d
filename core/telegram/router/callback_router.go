package router

import (
	"log/slog"
	"time"

	tg "github.com/jakovchuk/socalska-report-bot/core/telegram"
	"github.com/jakovchuk/socalska-report-bot/core/telegram/callbacks"
	"github.com/jakovchuk/socalska-report-bot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions overrides the registry's handler for unknown keys.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches every inline button press by its unique key.
// Known callbacks are acknowledged before their handler runs; the
// not-found handler answers on its own.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		start := time.Now()
		key, _ := callbacks.ParseCallbackData(c.Callback())
		name := "callback." + normalizeHandlerName(key)

		if h, ok := reg.GetCallback(key); ok {
			_ = c.Respond()
			return handleWithSummary(c, name, start, func() error { return h(c) },
				slog.String("cb_key", key))
		}

		notFound := opts.NotFound
		if notFound == nil {
			notFound = reg.CallbackNotFound()
		}
		return handleWithSummary(c, name, start, func() error {
			if notFound == nil {
				return c.Respond()
			}
			return notFound(c)
		}, slog.String("cb_key", key), slog.String("reason", "not_found"))
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
