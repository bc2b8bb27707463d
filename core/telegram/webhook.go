package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jakovchuk/socalska-report-bot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	webhookShutdownTimeout = 5 * time.Second
	webhookMaxBody         = 1 << 20
)

// WebhookPoller receives updates over HTTP. Telegram posts them to
// <PublicURL>/<Secret>; GET /ping answers "pong" for health checks.
type WebhookPoller struct {
	Listen    string
	PublicURL string
	Secret    string
	// SkipRegister leaves the webhook registration with Telegram untouched.
	SkipRegister bool
}

// Endpoint returns the public URL Telegram should post updates to.
func (p *WebhookPoller) Endpoint() string {
	base := strings.TrimRight(p.PublicURL, "/")
	if base == "" {
		return ""
	}
	return base + "/" + p.Secret
}

// Handler serves the webhook and health routes, forwarding decoded updates to dest.
func (p *WebhookPoller) Handler(dest chan<- tele.Update) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	mux.HandleFunc("POST /"+p.Secret, func(w http.ResponseWriter, r *http.Request) {
		var upd tele.Update
		if err := json.NewDecoder(io.LimitReader(r.Body, webhookMaxBody)).Decode(&upd); err != nil {
			logger.HTTP.Warn("webhook decode failed",
				slog.String("event", "webhook.decode"),
				slog.String("err", err.Error()),
			)
		} else {
			select {
			case dest <- upd:
			case <-r.Context().Done():
			}
		}
		// Telegram only needs a 2xx; anything else makes it redeliver.
		_, _ = io.WriteString(w, "ok")
	})
	return mux
}

// Poll registers the webhook, serves it until stop is closed, then shuts the
// listener down.
func (p *WebhookPoller) Poll(b *tele.Bot, dest chan tele.Update, stop chan struct{}) {
	if !p.SkipRegister && p.Endpoint() != "" {
		err := b.SetWebhook(&tele.Webhook{Endpoint: &tele.WebhookEndpoint{PublicURL: p.Endpoint()}})
		if err != nil {
			logger.TG.Error("webhook registration failed",
				slog.String("event", "set_webhook"),
				slog.String("err", err.Error()),
			)
		} else {
			logger.TG.Info("webhook registered",
				slog.String("event", "set_webhook"),
				slog.String("public_url", strings.TrimRight(p.PublicURL, "/")),
			)
		}
	}

	srv := &http.Server{
		Addr:              p.Listen,
		Handler:           p.Handler(dest),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.HTTP.Error("webhook listener failed",
				slog.String("event", "webhook.listen"),
				slog.String("listen", p.Listen),
				slog.String("err", err.Error()),
			)
		}
	}()

	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), webhookShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.HTTP.Warn("webhook shutdown failed",
			slog.String("event", "webhook.shutdown"),
			slog.String("err", err.Error()),
		)
	}
}
