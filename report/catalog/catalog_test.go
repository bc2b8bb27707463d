package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionsOrder(t *testing.T) {
	var fields []string
	for _, q := range Questions() {
		fields = append(fields, q.Field)
	}
	assert.Equal(t, []string{FieldParticipation, FieldStudyCount, FieldPioneerStatus, FieldHours, FieldComment}, fields)
}

func TestStudyChoicesAreZeroToSeven(t *testing.T) {
	q, ok := Lookup(StepStudyCount)
	require.True(t, ok)
	require.Len(t, q.Choices, 8)
	for _, key := range []string{"0", "3", "7"} {
		v, ok := q.Choose(key)
		assert.True(t, ok)
		assert.Equal(t, key, v)
	}
	_, ok = q.Choose("8")
	assert.False(t, ok)
	_, ok = q.MatchText("10")
	assert.False(t, ok)
}

func TestMatchTextYesNo(t *testing.T) {
	q, _ := Lookup(StepParticipation)
	v, ok := q.MatchText("  да ")
	require.True(t, ok)
	assert.Equal(t, Yes, v)
	v, ok = q.MatchText("no")
	require.True(t, ok)
	assert.Equal(t, No, v)
	_, ok = q.MatchText("может быть")
	assert.False(t, ok)
}

func TestParseHours(t *testing.T) {
	for _, in := range []string{"1", "12", " 50 ", "100"} {
		_, ok := ParseHours(in)
		assert.True(t, ok, in)
	}
	for _, in := range []string{"0", "101", "150", "-3", "+5", "+0", "1.5", "abc", ""} {
		_, ok := ParseHours(in)
		assert.False(t, ok, in)
	}
	v, _ := ParseHours("007")
	assert.Equal(t, "7", v)
}

func TestRenderKeyboards(t *testing.T) {
	q, _ := Lookup(StepParticipation)
	msg := q.Render("")
	require.NotNil(t, msg.Keyboard)
	require.Len(t, msg.Keyboard.Inline, 1, "participation has no back row")
	assert.Equal(t, "participation:yes", msg.Keyboard.Inline[0][0].Payload)

	q, _ = Lookup(StepStudyCount)
	msg = q.Render("3")
	require.Len(t, msg.Keyboard.Inline, 3)
	assert.Len(t, msg.Keyboard.Inline[0], 4)
	assert.Equal(t, ActionBack, msg.Keyboard.Inline[2][0].Action)
	assert.Contains(t, msg.Text, "Текущий ответ: 3")

	q, _ = Lookup(StepComment)
	msg = q.Render("")
	require.Len(t, msg.Keyboard.Inline, 1)
	assert.Equal(t, []string{ActionBack, ActionSkip}, []string{msg.Keyboard.Inline[0][0].Action, msg.Keyboard.Inline[0][1].Action})
}

func TestPayloadRoundTrip(t *testing.T) {
	step, key := ParsePayload(Payload(StepPioneerStatus, "no"))
	assert.Equal(t, StepPioneerStatus, step)
	assert.Equal(t, "no", key)

	step, key = ParsePayload(Payload(StepHours, ""))
	assert.Equal(t, StepHours, step)
	assert.Empty(t, key)
}
