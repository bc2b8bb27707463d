// Package reminder schedules the monthly "time to report" message.
//
// Each chat that has started a report gets one daily job. The job only sends
// on the first day of the month.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jakovchuk/socalska-report-bot/core/logger"
	"github.com/jakovchuk/socalska-report-bot/report/catalog"
	"github.com/jakovchuk/socalska-report-bot/report/period"
)

const component = "reminder"

// DefaultHour is the local hour the daily check runs at.
const DefaultHour = 10

// Scheduler registers periodic jobs. *cron.Cron satisfies it.
type Scheduler interface {
	AddFunc(spec string, cmd func()) (cron.EntryID, error)
}

// Sender delivers a reminder to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, msg catalog.Message) (int, error)
}

// Options configures a Reminder.
type Options struct {
	Scheduler Scheduler
	Sender    Sender
	Periods   period.Calculator
	Hour      int
	Now       func() time.Time
}

// Reminder tracks which chats already have a daily job.
type Reminder struct {
	scheduler Scheduler
	sender    Sender
	periods   period.Calculator
	spec      string
	now       func() time.Time

	mu      sync.Mutex
	entries map[int64]cron.EntryID
}

// NewCron returns an unstarted cron evaluating five-field specs in loc.
// Job panics are recovered.
func NewCron(loc *time.Location) *cron.Cron {
	if loc == nil {
		loc = time.UTC
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return cron.New(
		cron.WithLocation(loc),
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cron.DefaultLogger)),
	)
}

// New validates opts and returns a Reminder.
func New(opts Options) (*Reminder, error) {
	if opts.Scheduler == nil {
		return nil, errors.New("reminder: nil scheduler")
	}
	if opts.Sender == nil {
		return nil, errors.New("reminder: nil sender")
	}
	hour := opts.Hour
	if hour < 0 || hour > 23 {
		return nil, fmt.Errorf("reminder: hour %d out of range", hour)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Reminder{
		scheduler: opts.Scheduler,
		sender:    opts.Sender,
		periods:   period.NewCalculator(opts.Periods.Location, opts.Periods.CutoffDay),
		spec:      fmt.Sprintf("0 %d * * *", hour),
		now:       now,
		entries:   make(map[int64]cron.EntryID),
	}, nil
}

// Ensure registers the daily check for chatID unless it is already registered.
func (r *Reminder) Ensure(ctx context.Context, chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[chatID]; ok {
		return
	}

	id, err := r.scheduler.AddFunc(r.spec, func() {
		r.Check(context.Background(), chatID)
	})
	if err != nil {
		logger.Error(ctx, component, "reminder.register",
			slog.String("status", "fail"),
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return
	}
	r.entries[chatID] = id
	logger.Info(ctx, component, "reminder.register",
		slog.String("status", "ok"),
		slog.Int64("chat_id", chatID),
		slog.String("spec", r.spec),
	)
}

// Registered reports whether chatID has a daily check.
func (r *Reminder) Registered(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[chatID]
	return ok
}

// Chats returns the registered chat ids in ascending order.
func (r *Reminder) Chats() []int64 {
	r.mu.Lock()
	out := make([]int64, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Check sends the reminder when today is the first day of the month.
// It reports whether a reminder was sent.
func (r *Reminder) Check(ctx context.Context, chatID int64) bool {
	now := r.now().In(r.periods.Location)
	if now.Day() != 1 {
		logger.Debug(ctx, component, "reminder.check",
			slog.String("status", "skip"),
			slog.Int64("chat_id", chatID),
			slog.Int("day", now.Day()),
		)
		return false
	}
	return r.send(ctx, chatID, now)
}

// SendAll pushes the reminder to every registered chat regardless of date and
// returns the number of chats it was delivered to.
func (r *Reminder) SendAll(ctx context.Context) int {
	now := r.now()
	delivered := 0
	for _, chatID := range r.Chats() {
		if r.send(ctx, chatID, now) {
			delivered++
		}
	}
	return delivered
}

func (r *Reminder) send(ctx context.Context, chatID int64, now time.Time) bool {
	p := r.periods.For(now)
	msg := catalog.Message{
		Text:     fmt.Sprintf(catalog.ReminderText, p),
		Keyboard: catalog.StartMarkup(),
	}
	if _, err := r.sender.Send(ctx, chatID, msg); err != nil {
		logger.Warn(ctx, component, "reminder.send",
			slog.String("status", "fail"),
			slog.Int64("chat_id", chatID),
			slog.String("period", p.String()),
			slog.String("err", err.Error()),
		)
		return false
	}
	logger.Info(ctx, component, "reminder.send",
		slog.String("status", "ok"),
		slog.Int64("chat_id", chatID),
		slog.String("period", p.String()),
	)
	return true
}
