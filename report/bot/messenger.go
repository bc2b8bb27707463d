// Package bot binds the report flow to Telegram through telebot.
package bot

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/jakovchuk/socalska-report-bot/core/telegram/keyboard"
	"github.com/jakovchuk/socalska-report-bot/report/catalog"

	tele "gopkg.in/telebot.v4"
)

// ErrNotBound is returned by a Messenger used before Bind.
var ErrNotBound = errors.New("bot: messenger is not bound to a bot")

// ErrReplyKeyboardEdit is returned when an edit would need a reply keyboard,
// which Telegram only accepts on new messages.
var ErrReplyKeyboardEdit = errors.New("bot: reply keyboards cannot be edited in")

// API is the subset of *tele.Bot the adapter calls.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// Messenger sends, edits and deletes chat messages on behalf of the flow.
type Messenger struct {
	mu  sync.RWMutex
	api API
}

// NewMessenger returns a Messenger using api. api may be nil and bound later.
func NewMessenger(api API) *Messenger {
	return &Messenger{api: api}
}

// Bind sets the bot the messenger talks through.
func (m *Messenger) Bind(api API) {
	m.mu.Lock()
	m.api = api
	m.mu.Unlock()
}

func (m *Messenger) client() (API, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.api == nil {
		return nil, ErrNotBound
	}
	return m.api, nil
}

// Send delivers msg to chatID and returns the new message id.
func (m *Messenger) Send(_ context.Context, chatID int64, msg catalog.Message) (int, error) {
	api, err := m.client()
	if err != nil {
		return 0, err
	}
	sent, err := api.Send(tele.ChatID(chatID), msg.Text, &tele.SendOptions{ReplyMarkup: Markup(msg.Keyboard)})
	if err != nil {
		return 0, err
	}
	if sent == nil {
		return 0, nil
	}
	return sent.ID, nil
}

// Edit replaces the text and inline keyboard of an existing message.
func (m *Messenger) Edit(_ context.Context, chatID int64, messageID int, msg catalog.Message) error {
	if msg.Keyboard != nil && len(msg.Keyboard.Reply) > 0 {
		return ErrReplyKeyboardEdit
	}
	api, err := m.client()
	if err != nil {
		return err
	}
	markup := Markup(msg.Keyboard)
	if markup == nil {
		markup = &tele.ReplyMarkup{}
	}
	_, err = api.Edit(stored(chatID, messageID), msg.Text, &tele.SendOptions{ReplyMarkup: markup})
	return err
}

// Delete removes a message.
func (m *Messenger) Delete(_ context.Context, chatID int64, messageID int) error {
	api, err := m.client()
	if err != nil {
		return err
	}
	return api.Delete(stored(chatID, messageID))
}

func stored(chatID int64, messageID int) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
}

// Markup converts a catalog keyboard to telebot markup. Inline rows win over
// reply rows; nil means no markup.
func Markup(kb *catalog.Keyboard) *tele.ReplyMarkup {
	if kb == nil {
		return nil
	}
	if len(kb.Inline) > 0 {
		rows := make([][]keyboard.InlineBtn, 0, len(kb.Inline))
		for _, row := range kb.Inline {
			r := make([]keyboard.InlineBtn, 0, len(row))
			for _, b := range row {
				r = append(r, keyboard.InlineBtn{Text: b.Text, Unique: b.Action, Data: b.Payload})
			}
			rows = append(rows, r)
		}
		return keyboard.InlineButtonsRows(rows...)
	}
	if len(kb.Reply) > 0 {
		return keyboard.ReplyButtons(kb.Reply...)
	}
	return nil
}
