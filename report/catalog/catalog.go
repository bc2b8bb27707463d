// Package catalog holds the questionnaire: steps, answer fields, prompt texts
// and the buttons each step offers.
package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jakovchuk/socalska-report-bot/core/telegram/state"
)

// Questionnaire steps in forward order.
const (
	StepIdle          = state.StateIdle
	StepParticipation state.State = "participation"
	StepStudyCount    state.State = "study_count"
	StepPioneerStatus state.State = "pioneer_status"
	StepHours         state.State = "hours"
	StepComment       state.State = "comment"
)

// Answer field names, one per question.
const (
	FieldParticipation = "participation"
	FieldStudyCount    = "study_count"
	FieldPioneerStatus = "pioneer_status"
	FieldHours         = "hours"
	FieldComment       = "comment"
)

// Callback actions carried by inline buttons.
const (
	ActionAnswer = "answer"
	ActionBack   = "back"
	ActionSkip   = "skip"
	ActionStart  = "start_report"
)

// Shared answer values and placeholders.
const (
	Yes         = "Да"
	No          = "Нет"
	Placeholder = "-"

	MinHours = 1
	MaxHours = 100
)

// UI texts.
const (
	StartButtonText = "📝 Начать отчёт"
	BackButtonText  = "⬅️ Назад"
	SkipButtonText  = "Пропустить"

	HoursRangeError = "Пожалуйста, введите целое число от 1 до 100."
	IdleNudge       = "Чтобы отправить отчёт, нажмите «📝 Начать отчёт»."
	CancelledText   = "Отчёт отменён. Когда будете готовы, нажмите «📝 Начать отчёт»."
	CurrentAnswer   = "Текущий ответ: %s"
	DoneText        = "✅ Спасибо! Отчёт за %s отправлен."
	ReminderText    = "Напоминание: пора отправить отчёт за %s."
)

// Choice is one selectable answer of a step.
type Choice struct {
	Key   string
	Label string
}

// Question describes one questionnaire step.
type Question struct {
	Step    state.State
	Field   string
	Label   string
	Prompt  string
	Choices []Choice
	// PerRow controls how many choice buttons share a keyboard row.
	PerRow   int
	Back     bool
	Skip     bool
	FreeText bool
}

var yesNo = []Choice{{Key: "yes", Label: Yes}, {Key: "no", Label: No}}

var studyChoices = func() []Choice {
	out := make([]Choice, 0, 8)
	for i := 0; i <= 7; i++ {
		s := strconv.Itoa(i)
		out = append(out, Choice{Key: s, Label: s})
	}
	return out
}()

var questions = []Question{
	{
		Step:    StepParticipation,
		Field:   FieldParticipation,
		Label:   "Участие",
		Prompt:  "Участвовали ли вы в служении в этом месяце?",
		Choices: yesNo,
		PerRow:  2,
	},
	{
		Step:    StepStudyCount,
		Field:   FieldStudyCount,
		Label:   "Изучения",
		Prompt:  "Сколько изучений Библии вы провели?",
		Choices: studyChoices,
		PerRow:  4,
		Back:    true,
	},
	{
		Step:    StepPioneerStatus,
		Field:   FieldPioneerStatus,
		Label:   "Пионер",
		Prompt:  "Служили ли вы подсобным пионером в этом месяце?",
		Choices: yesNo,
		PerRow:  2,
		Back:    true,
	},
	{
		Step:     StepHours,
		Field:    FieldHours,
		Label:    "Часы",
		Prompt:   "Сколько часов вы провели в служении? Введите число от 1 до 100.",
		Back:     true,
		FreeText: true,
	},
	{
		Step:     StepComment,
		Field:    FieldComment,
		Label:    "Комментарий",
		Prompt:   "Напишите комментарий или нажмите «Пропустить».",
		Back:     true,
		Skip:     true,
		FreeText: true,
	},
}

// Questions returns the questionnaire in forward order.
func Questions() []Question {
	out := make([]Question, len(questions))
	copy(out, questions)
	return out
}

// Lookup returns the question for step.
func Lookup(step state.State) (Question, bool) {
	for _, q := range questions {
		if q.Step == step {
			return q, true
		}
	}
	return Question{}, false
}

// Choose maps a callback key to the choice's label.
func (q Question) Choose(key string) (string, bool) {
	for _, c := range q.Choices {
		if c.Key == key {
			return c.Label, true
		}
	}
	return "", false
}

// MatchText maps free text to a choice label, ignoring case and surrounding space.
func (q Question) MatchText(text string) (string, bool) {
	text = strings.TrimSpace(text)
	for _, c := range q.Choices {
		if strings.EqualFold(c.Label, text) || strings.EqualFold(c.Key, text) {
			return c.Label, true
		}
	}
	return "", false
}

// ParseHours validates free-text hours and returns the normalized value.
// Only ASCII digits are accepted, so signs are rejected.
func ParseHours(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" || strings.TrimLeft(text, "0123456789") != "" {
		return "", false
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < MinHours || n > MaxHours {
		return "", false
	}
	return strconv.Itoa(n), true
}

// Render builds the prompt message for q. A previously stored answer is shown
// so that back-navigation keeps it visible.
func (q Question) Render(previous string) Message {
	text := q.Prompt
	if previous != "" {
		text += "\n\n" + fmt.Sprintf(CurrentAnswer, previous)
	}

	kb := &Keyboard{}
	if len(q.Choices) > 0 {
		per := q.PerRow
		if per <= 0 {
			per = 1
		}
		var row []Button
		for _, c := range q.Choices {
			row = append(row, Button{Text: c.Label, Action: ActionAnswer, Payload: Payload(q.Step, c.Key)})
			if len(row) == per {
				kb.Inline = append(kb.Inline, row)
				row = nil
			}
		}
		if len(row) > 0 {
			kb.Inline = append(kb.Inline, row)
		}
	}
	var nav []Button
	if q.Back {
		nav = append(nav, Button{Text: BackButtonText, Action: ActionBack, Payload: Payload(q.Step, "")})
	}
	if q.Skip {
		nav = append(nav, Button{Text: SkipButtonText, Action: ActionSkip, Payload: Payload(q.Step, "")})
	}
	if len(nav) > 0 {
		kb.Inline = append(kb.Inline, nav)
	}
	if len(kb.Inline) == 0 {
		kb = nil
	}
	return Message{Text: text, Keyboard: kb}
}
