package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jakovchuk/socalska-report-bot/core/logger"
	"github.com/jakovchuk/socalska-report-bot/core/telegram/state"
	"github.com/jakovchuk/socalska-report-bot/report/catalog"
	"github.com/jakovchuk/socalska-report-bot/report/formatter"
	"github.com/jakovchuk/socalska-report-bot/report/period"
)

const component = "flow"

// Messenger is the chat capability the flow needs. Implementations perform
// the network I/O; the flow never talks to the platform directly.
type Messenger interface {
	Send(ctx context.Context, chatID int64, msg catalog.Message) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, msg catalog.Message) error
	Delete(ctx context.Context, chatID int64, messageID int) error
}

// Publisher delivers finished reports to the destination channel.
type Publisher interface {
	Publish(ctx context.Context, text string) error
}

// Registrar registers the monthly reminder for a chat. Repeated calls for
// the same chat must be no-ops.
type Registrar interface {
	Ensure(ctx context.Context, chatID int64)
}

// Inbound is an event together with where it came from.
type Inbound struct {
	ChatID int64
	Author formatter.Author
	Event  Event
	// MessageID is the user's own message, zero for button presses.
	MessageID int
	// PromptID is the bot message whose button was pressed, zero for text.
	PromptID int
}

// Options configures a Machine.
type Options struct {
	Store     state.Store
	Messenger Messenger
	Publisher Publisher
	Reminders Registrar
	Periods   period.Calculator
	Now       func() time.Time
	// EditPrompts edits the pressed prompt in place instead of sending a new one.
	EditPrompts bool
}

// Machine applies transitions to stored sessions and performs their side effects.
type Machine struct {
	store       state.Store
	messenger   Messenger
	publisher   Publisher
	reminders   Registrar
	periods     period.Calculator
	now         func() time.Time
	editPrompts bool
	locks       *chatLocks
}

// New validates opts and returns a Machine.
func New(opts Options) (*Machine, error) {
	if opts.Store == nil {
		return nil, errors.New("flow: nil session store")
	}
	if opts.Messenger == nil {
		return nil, errors.New("flow: nil messenger")
	}
	if opts.Publisher == nil {
		return nil, errors.New("flow: nil publisher")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Machine{
		store:       opts.Store,
		messenger:   opts.Messenger,
		publisher:   opts.Publisher,
		reminders:   opts.Reminders,
		periods:     period.NewCalculator(opts.Periods.Location, opts.Periods.CutoffDay),
		now:         now,
		editPrompts: opts.EditPrompts,
		locks:       newChatLocks(),
	}, nil
}

// InProgress reports whether chatID has a questionnaire in progress.
func (m *Machine) InProgress(ctx context.Context, chatID int64) bool {
	return m.store.InProgress(ctx, chatID)
}

// Handle applies one inbound event. Only session store failures are returned;
// delivery problems are logged and swallowed.
func (m *Machine) Handle(ctx context.Context, in Inbound) (Action, error) {
	unlock := m.locks.Lock(in.ChatID)
	defer unlock()

	sess, err := m.store.Get(ctx, in.ChatID)
	if err != nil {
		return none, fmt.Errorf("flow: load session: %w", err)
	}
	sess.ChatID = in.ChatID
	wasActive := sess.Active()
	if wasActive {
		sess.Track(in.MessageID)
	}

	if in.Event.Kind == EventStart && m.reminders != nil {
		m.reminders.Ensure(ctx, in.ChatID)
	}

	next, act := Transition(sess, in.Event)
	if in.Event.Kind == EventStart && !wasActive {
		next.Track(in.MessageID)
	}

	logger.Debug(ctx, component, "event.handled",
		slog.Int64("chat_id", in.ChatID),
		slog.String("op", in.Event.Kind.String()),
		slog.String("step", string(sess.State)),
		slog.String("next_step", string(next.State)),
		slog.String("action", act.Kind.String()),
	)

	switch act.Kind {
	case ActionNone:
		return act, nil

	case ActionIdle:
		m.send(ctx, in.ChatID, catalog.IdleMessage())
		return act, nil

	case ActionPrompt:
		m.render(ctx, &next, act.Step, in.PromptID)
		if err := m.store.Save(ctx, &next); err != nil {
			return act, fmt.Errorf("flow: save session: %w", err)
		}
		if in.Event.Kind == EventStart {
			// The old report's messages go only once the new one is stored.
			m.cleanup(ctx, sess)
		}
		return act, nil

	case ActionRetry:
		next.Track(m.send(ctx, in.ChatID, catalog.Message{Text: act.Notice}))
		if err := m.store.Save(ctx, &next); err != nil {
			return act, fmt.Errorf("flow: save session: %w", err)
		}
		return act, nil

	case ActionCancel:
		m.cleanup(ctx, sess)
		if err := m.store.Clear(ctx, in.ChatID); err != nil {
			return act, fmt.Errorf("flow: clear session: %w", err)
		}
		m.send(ctx, in.ChatID, catalog.Message{Text: catalog.CancelledText, Keyboard: catalog.IdleKeyboard()})
		return act, nil

	case ActionFinalize:
		return act, m.finalize(ctx, next, in.Author)

	default:
		return none, fmt.Errorf("flow: unhandled action %d", act.Kind)
	}
}

func (m *Machine) finalize(ctx context.Context, sess state.Session, author formatter.Author) error {
	if err := m.store.Clear(ctx, sess.ChatID); err != nil {
		return fmt.Errorf("flow: clear session: %w", err)
	}

	p := m.periods.For(m.now())
	rep := formatter.Build(p, author, sess.Answers)
	attrs := []slog.Attr{
		slog.String("report_id", uuid.NewString()),
		slog.Int64("chat_id", sess.ChatID),
		slog.String("period", p.String()),
	}
	if err := m.publisher.Publish(ctx, rep.Text()); err != nil {
		logger.Error(ctx, "report", "report.publish",
			append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
	} else {
		logger.Info(ctx, "report", "report.publish", append(attrs, slog.String("status", "ok"))...)
	}

	m.cleanup(ctx, sess)
	m.send(ctx, sess.ChatID, catalog.Message{
		Text:     fmt.Sprintf(catalog.DoneText, p),
		Keyboard: catalog.IdleKeyboard(),
	})
	return nil
}

// render shows the prompt of step, editing promptID in place when allowed,
// and tracks the resulting message.
func (m *Machine) render(ctx context.Context, sess *state.Session, step state.State, promptID int) {
	q, ok := catalog.Lookup(step)
	if !ok {
		logger.Warn(ctx, component, "prompt.unknown_step", slog.String("step", string(step)))
		return
	}
	msg := q.Render(sess.Answers[q.Field])

	if m.editPrompts && promptID != 0 {
		err := m.messenger.Edit(ctx, sess.ChatID, promptID, msg)
		if err == nil {
			sess.Track(promptID)
			return
		}
		logger.Debug(ctx, component, "prompt.edit",
			slog.String("status", "fail"),
			slog.String("step", string(step)),
			slog.String("err", err.Error()),
		)
	}
	sess.Track(m.send(ctx, sess.ChatID, msg))
}

// send delivers msg and returns its id, or zero when delivery failed.
func (m *Machine) send(ctx context.Context, chatID int64, msg catalog.Message) int {
	id, err := m.messenger.Send(ctx, chatID, msg)
	if err != nil {
		logger.Warn(ctx, component, "message.send",
			slog.String("status", "fail"),
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return 0
	}
	return id
}

// cleanup deletes every tracked message. Failures are expected (messages
// already gone, missing rights) and never stop the remaining deletions.
func (m *Machine) cleanup(ctx context.Context, sess state.Session) {
	if len(sess.Tracked) == 0 {
		return
	}
	deleted := 0
	for _, id := range sess.Tracked {
		if err := m.messenger.Delete(ctx, sess.ChatID, id); err != nil {
			logger.Debug(ctx, component, "message.delete",
				slog.String("status", "skip"),
				slog.Int("message_id", id),
				slog.String("err", err.Error()),
			)
			continue
		}
		deleted++
	}
	logger.Debug(ctx, component, "session.cleanup",
		slog.Int64("chat_id", sess.ChatID),
		slog.Int("tracked", len(sess.Tracked)),
		slog.Int("deleted", deleted),
	)
}
