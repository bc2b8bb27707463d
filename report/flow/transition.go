// Package flow drives the report questionnaire. Transition is a pure function
// of the current session and an inbound event; Machine applies its result to
// the session store and the chat.
package flow

import (
	"strings"

	"github.com/jakovchuk/socalska-report-bot/core/telegram/state"
	"github.com/jakovchuk/socalska-report-bot/report/catalog"
)

// EventKind classifies inbound events.
type EventKind int

const (
	// EventStart begins a new report, discarding any report in progress.
	EventStart EventKind = iota + 1
	// EventChoice is an inline choice button press.
	EventChoice
	// EventText is a free-text message.
	EventText
	// EventBack is the back button.
	EventBack
	// EventSkip is the skip button of the comment step.
	EventSkip
	// EventCancel abandons the report in progress.
	EventCancel
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventChoice:
		return "choice"
	case EventText:
		return "text"
	case EventBack:
		return "back"
	case EventSkip:
		return "skip"
	case EventCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Event is one user action. For button events Step names the step the
// button was rendered for, which lets late or repeated presses be detected.
type Event struct {
	Kind  EventKind
	Step  state.State
	Value string
}

// ActionKind tells Machine what to do after a transition.
type ActionKind int

const (
	// ActionNone ignores the event.
	ActionNone ActionKind = iota
	// ActionPrompt renders the prompt of Action.Step.
	ActionPrompt
	// ActionRetry replies with Action.Notice and keeps the step.
	ActionRetry
	// ActionFinalize publishes the report and ends the session.
	ActionFinalize
	// ActionIdle nudges a user who has no report in progress.
	ActionIdle
	// ActionCancel ends the session without publishing.
	ActionCancel
)

func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "none"
	case ActionPrompt:
		return "prompt"
	case ActionRetry:
		return "retry"
	case ActionFinalize:
		return "finalize"
	case ActionIdle:
		return "idle"
	case ActionCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Action is the side effect requested by Transition.
type Action struct {
	Kind   ActionKind
	Step   state.State
	Notice string
}

var none = Action{Kind: ActionNone}

func prompt(step state.State) Action {
	return Action{Kind: ActionPrompt, Step: step}
}

// Transition computes the next session and the action to perform. The input
// session is not modified. On ActionFinalize the returned session is idle but
// still carries the answers to report.
func Transition(s state.Session, ev Event) (state.Session, Action) {
	s = s.Clone()

	switch ev.Kind {
	case EventStart:
		fresh := state.NewSession(s.ChatID)
		fresh.State = catalog.StepParticipation
		return fresh, prompt(catalog.StepParticipation)
	case EventCancel:
		if !s.Active() {
			return s, Action{Kind: ActionIdle}
		}
		return state.NewSession(s.ChatID), Action{Kind: ActionCancel}
	}

	if !s.Active() {
		if ev.Kind == EventText {
			return s, Action{Kind: ActionIdle}
		}
		return s, none
	}

	// A button rendered for another step is a late or repeated press.
	if ev.Kind != EventText && ev.Step != s.State {
		return s, none
	}

	if ev.Kind == EventBack {
		prev, ok := Predecessor(s.State, s.Answers)
		if !ok {
			return s, none
		}
		s.State = prev
		return s, prompt(prev)
	}

	switch s.State {
	case catalog.StepParticipation:
		v, act, ok := choose(s.State, ev)
		if !ok {
			return s, act
		}
		s.Answers[catalog.FieldParticipation] = v
		if v == catalog.Yes {
			s.State = catalog.StepStudyCount
			return s, prompt(s.State)
		}
		s.State = catalog.StepIdle
		return s, Action{Kind: ActionFinalize}

	case catalog.StepStudyCount:
		v, act, ok := choose(s.State, ev)
		if !ok {
			return s, act
		}
		s.Answers[catalog.FieldStudyCount] = v
		s.State = catalog.StepPioneerStatus
		return s, prompt(s.State)

	case catalog.StepPioneerStatus:
		v, act, ok := choose(s.State, ev)
		if !ok {
			return s, act
		}
		s.Answers[catalog.FieldPioneerStatus] = v
		if v == catalog.Yes {
			s.State = catalog.StepHours
		} else {
			s.State = catalog.StepComment
		}
		return s, prompt(s.State)

	case catalog.StepHours:
		if ev.Kind != EventText {
			return s, none
		}
		hours, ok := catalog.ParseHours(ev.Value)
		if !ok {
			return s, Action{Kind: ActionRetry, Step: s.State, Notice: catalog.HoursRangeError}
		}
		s.Answers[catalog.FieldHours] = hours
		s.State = catalog.StepComment
		return s, prompt(s.State)

	case catalog.StepComment:
		switch ev.Kind {
		case EventSkip:
			s.Answers[catalog.FieldComment] = catalog.Placeholder
		case EventText:
			text := strings.TrimSpace(ev.Value)
			if text == "" {
				return s, prompt(s.State)
			}
			s.Answers[catalog.FieldComment] = text
		default:
			return s, none
		}
		s.State = catalog.StepIdle
		return s, Action{Kind: ActionFinalize}

	default:
		return s, none
	}
}

// choose resolves the answer of a choice step. Unknown button keys are
// ignored; free text that matches no choice re-renders the prompt.
func choose(step state.State, ev Event) (string, Action, bool) {
	q, ok := catalog.Lookup(step)
	if !ok {
		return "", none, false
	}
	switch ev.Kind {
	case EventChoice:
		if v, ok := q.Choose(ev.Value); ok {
			return v, Action{}, true
		}
		return "", none, false
	case EventText:
		if v, ok := q.MatchText(ev.Value); ok {
			return v, Action{}, true
		}
		return "", prompt(step), false
	default:
		return "", none, false
	}
}

// Predecessor returns the step that back-navigation leads to. It is derived
// from the stored answers rather than a history: the comment step follows
// hours only when the pioneer answer was "Yes".
func Predecessor(step state.State, answers map[string]string) (state.State, bool) {
	switch step {
	case catalog.StepComment:
		if answers[catalog.FieldPioneerStatus] == catalog.Yes {
			return catalog.StepHours, true
		}
		return catalog.StepPioneerStatus, true
	case catalog.StepHours:
		return catalog.StepPioneerStatus, true
	case catalog.StepPioneerStatus:
		return catalog.StepStudyCount, true
	case catalog.StepStudyCount:
		return catalog.StepParticipation, true
	default:
		return "", false
	}
}
