package state

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation in the chat.
	StateIdle State = "idle"
)

// ErrNilSession is returned when a nil session is saved.
var ErrNilSession = errors.New("state: nil session")

// Session stores the conversation step, collected answers and the ids of
// messages that should be removed once the conversation ends.
type Session struct {
	ChatID    int64             `json:"chat_id"`
	State     State             `json:"state"`
	Answers   map[string]string `json:"answers"`
	Tracked   []int             `json:"tracked"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewSession returns an idle session for chatID.
func NewSession(chatID int64) Session {
	return Session{ChatID: chatID, State: StateIdle, Answers: make(map[string]string)}
}

// Active reports whether a questionnaire is in progress.
func (s Session) Active() bool {
	return s.State != "" && s.State != StateIdle
}

// Answer returns the stored value for field.
func (s Session) Answer(field string) (string, bool) {
	v, ok := s.Answers[field]
	return v, ok
}

// Track appends a message id to the cleanup list, ignoring zero ids and repeats.
func (s *Session) Track(messageID int) {
	if messageID == 0 || slices.Contains(s.Tracked, messageID) {
		return
	}
	s.Tracked = append(s.Tracked, messageID)
}

// Clone returns a deep copy so callers can mutate it without touching stored state.
func (s Session) Clone() Session {
	out := s
	out.Answers = maps.Clone(s.Answers)
	if out.Answers == nil {
		out.Answers = make(map[string]string)
	}
	out.Tracked = slices.Clone(s.Tracked)
	return out
}

// Store persists sessions keyed by chat id. Implementations must be safe for
// concurrent use by multiple goroutines.
type Store interface {
	// Get returns the chat's session or an idle one when none is stored.
	Get(ctx context.Context, chatID int64) (Session, error)
	// Save replaces the chat's session.
	Save(ctx context.Context, s *Session) error
	// Clear removes the chat's session.
	Clear(ctx context.Context, chatID int64) error
	// InProgress reports whether the chat has an active session.
	InProgress(ctx context.Context, chatID int64) bool
}
