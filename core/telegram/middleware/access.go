package middleware

import (
	"context"
	"log/slog"

	"github.com/jakovchuk/socalska-report-bot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions configures AdminOnlyMiddleware.
type AdminOptions struct {
	// AdminID is the Telegram user id allowed through. Zero allows nobody.
	AdminID int64
	// OnReject answers a refused sender. Nil drops the update silently.
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware passes updates from the configured admin and refuses
// everyone else.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if isAdmin(c.Sender(), opts.AdminID) {
				return next(c)
			}
			var userID int64
			if u := c.Sender(); u != nil {
				userID = u.ID
			}
			logger.Warn(context.Background(), "tg", "access.denied",
				slog.Int64("user_id", userID),
				slog.Bool("admin_configured", opts.AdminID != 0),
			)
			if opts.OnReject == nil {
				return nil
			}
			return opts.OnReject(c)
		}
	}
}

func isAdmin(u *tele.User, adminID int64) bool {
	return adminID != 0 && u != nil && u.ID == adminID
}
