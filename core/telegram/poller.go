package telegram

import (
	"net"
	"strconv"
	"time"

	coreconfig "github.com/jakovchuk/socalska-report-bot/core/config"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPollTimeout = 10 * time.Second

// BuildPoller picks the update source for the normalized run mode: a
// webhook listener or telebot's long poller.
func BuildPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &WebhookPoller{
			Listen:    net.JoinHostPort(cfg.Webhook.Listen, strconv.Itoa(cfg.Webhook.Port)),
			PublicURL: cfg.Webhook.URL,
			Secret:    cfg.Webhook.Secret,
		}
	}
	timeout := defaultLongPollTimeout
	if s := cfg.Telegram.LongPollTimeoutSeconds; s > 0 {
		timeout = time.Duration(s) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout}
}
