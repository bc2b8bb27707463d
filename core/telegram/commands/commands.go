// Package commands describes slash commands served by the bot.
package commands

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command with its handler and menu metadata.
// Commands without a Description are routed but left out of the menu.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}

// Endpoint normalizes name into the "/name" form telebot routes on.
func Endpoint(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, "/") {
		return name
	}
	return "/" + name
}

// Listed reports whether the command belongs in the public menu.
func (c Command) Listed() bool {
	return c.Description != "" && !c.Hidden && !c.AdminOnly
}
