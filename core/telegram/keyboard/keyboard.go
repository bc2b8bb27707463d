// Package keyboard builds telebot reply markups from plain descriptions.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn is an inline button. Unique routes the press to a callback
// handler and Data travels with it as the payload.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// ReplyButtons builds a resized reply keyboard, one row per slice.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tele.Btn, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	markup.Reply(keyboard...)
	return markup
}

// InlineButtonsRows builds an inline keyboard, one row per slice.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		inline[i] = make([]tele.InlineButton, len(row))
		for j, btn := range row {
			inline[i][j] = *markup.Data(btn.Text, btn.Unique, btn.Data).Inline()
		}
	}
	markup.InlineKeyboard = inline
	return markup
}
