package catalog

import (
	"strings"

	"github.com/jakovchuk/socalska-report-bot/core/telegram/state"
)

const payloadSep = ":"

// Button is an inline keyboard button. Action becomes the callback unique
// key and Payload its data.
type Button struct {
	Text    string
	Action  string
	Payload string
}

// Keyboard is a transport-neutral keyboard. Inline rows attach to the message;
// Reply rows replace the chat's reply keyboard.
type Keyboard struct {
	Inline [][]Button
	Reply  [][]string
}

// Message is an outbound chat message.
type Message struct {
	Text     string
	Keyboard *Keyboard
}

// Payload encodes the step a button belongs to and the chosen key.
func Payload(step state.State, key string) string {
	if key == "" {
		return string(step)
	}
	return string(step) + payloadSep + key
}

// ParsePayload is the inverse of Payload.
func ParsePayload(payload string) (state.State, string) {
	step, key, _ := strings.Cut(payload, payloadSep)
	return state.State(step), key
}

// IdleKeyboard is the persistent reply keyboard shown while no report is in progress.
func IdleKeyboard() *Keyboard {
	return &Keyboard{Reply: [][]string{{StartButtonText}}}
}

// IdleMessage nudges the user to start a report.
func IdleMessage() Message {
	return Message{Text: IdleNudge, Keyboard: IdleKeyboard()}
}

// StartMarkup is an inline keyboard with a single "start report" button.
func StartMarkup() *Keyboard {
	return &Keyboard{Inline: [][]Button{{{Text: StartButtonText, Action: ActionStart}}}}
}
