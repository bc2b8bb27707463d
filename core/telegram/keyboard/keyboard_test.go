package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineButtonsRows(t *testing.T) {
	m := InlineButtonsRows(
		[]InlineBtn{{Text: "Да", Unique: "answer", Data: "yes"}, {Text: "Нет", Unique: "answer", Data: "no"}},
		[]InlineBtn{{Text: "⬅️ Назад", Unique: "back"}},
	)
	require.Len(t, m.InlineKeyboard, 2)
	require.Len(t, m.InlineKeyboard[0], 2)
	assert.Equal(t, "Да", m.InlineKeyboard[0][0].Text)
	assert.Equal(t, "answer", m.InlineKeyboard[0][0].Unique)
	assert.Equal(t, "no", m.InlineKeyboard[0][1].Data)
	assert.Equal(t, "back", m.InlineKeyboard[1][0].Unique)
}

func TestReplyButtons(t *testing.T) {
	m := ReplyButtons([]string{"📝 Сдать отчёт"})
	assert.True(t, m.ResizeKeyboard)
	require.Len(t, m.ReplyKeyboard, 1)
	assert.Equal(t, "📝 Сдать отчёт", m.ReplyKeyboard[0][0].Text)
}
