package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakovchuk/socalska-report-bot/core/telegram/state"
	"github.com/jakovchuk/socalska-report-bot/report/catalog"
	"github.com/jakovchuk/socalska-report-bot/report/formatter"
	"github.com/jakovchuk/socalska-report-bot/report/period"
	"github.com/jakovchuk/socalska-report-bot/report/reminder"
)

type sent struct {
	chatID int64
	msg    catalog.Message
}

type fakeMessenger struct {
	mu         sync.Mutex
	nextID     int
	sent       []sent
	edits      []int
	deleted    []int
	failEdit   bool
	failDelete map[int]bool
}

func (f *fakeMessenger) Send(_ context.Context, chatID int64, msg catalog.Message) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, sent{chatID: chatID, msg: msg})
	return 1000 + f.nextID, nil
}

func (f *fakeMessenger) Edit(_ context.Context, _ int64, messageID int, _ catalog.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEdit {
		return errors.New("message can't be edited")
	}
	f.edits = append(f.edits, messageID)
	return nil
}

func (f *fakeMessenger) Delete(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete[messageID] {
		return errors.New("message to delete not found")
	}
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeMessenger) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].msg.Text
}

type fakePublisher struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

type fakeRegistrar struct {
	mu    sync.Mutex
	calls map[int64]int
}

func (f *fakeRegistrar) Ensure(_ context.Context, chatID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[int64]int)
	}
	f.calls[chatID]++
}

type harness struct {
	m     *Machine
	store state.Store
	msg   *fakeMessenger
	pub   *fakePublisher
	reg   *fakeRegistrar
	opts  Options
}

const chat = int64(42)

var author = formatter.Author{ID: 7, Username: "tester"}

func newHarness(t *testing.T, edit bool) *harness {
	t.Helper()
	h := &harness{
		store: state.NewMemoryStore(),
		msg:   &fakeMessenger{failDelete: map[int]bool{}},
		pub:   &fakePublisher{},
		reg:   &fakeRegistrar{},
	}
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	h.opts = Options{
		Store:       h.store,
		Messenger:   h.msg,
		Publisher:   h.pub,
		Reminders:   h.reg,
		Periods:     period.NewCalculator(loc, period.DefaultCutoffDay),
		Now:         func() time.Time { return time.Date(2025, time.April, 3, 12, 0, 0, 0, loc) },
		EditPrompts: edit,
	}
	h.rebuild(t, nil)
	return h
}

// rebuild recreates the machine after mutate adjusts its options.
func (h *harness) rebuild(t *testing.T, mutate func(*Options)) {
	t.Helper()
	if mutate != nil {
		mutate(&h.opts)
	}
	m, err := New(h.opts)
	require.NoError(t, err)
	h.m = m
}

func (h *harness) handle(t *testing.T, in Inbound) Action {
	t.Helper()
	in.ChatID = chat
	in.Author = author
	act, err := h.m.Handle(context.Background(), in)
	require.NoError(t, err)
	return act
}

func (h *harness) start(t *testing.T, msgID int) {
	t.Helper()
	act := h.handle(t, Inbound{Event: Event{Kind: EventStart}, MessageID: msgID})
	require.Equal(t, ActionPrompt, act.Kind)
}

func (h *harness) choose(t *testing.T, step state.State, key string) Action {
	t.Helper()
	return h.handle(t, Inbound{Event: Event{Kind: EventChoice, Step: step, Value: key}})
}

func (h *harness) text(t *testing.T, msgID int, text string) Action {
	t.Helper()
	return h.handle(t, Inbound{Event: Event{Kind: EventText, Value: text}, MessageID: msgID})
}

func (h *harness) session(t *testing.T) state.Session {
	t.Helper()
	s, err := h.store.Get(context.Background(), chat)
	require.NoError(t, err)
	return s
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
	_, err = New(Options{Store: state.NewMemoryStore()})
	assert.Error(t, err)
	_, err = New(Options{Store: state.NewMemoryStore(), Messenger: &fakeMessenger{}})
	assert.Error(t, err)
}

func TestScenarioNotParticipated(t *testing.T) {
	h := newHarness(t, false)
	h.start(t, 1)
	act := h.choose(t, catalog.StepParticipation, "no")
	assert.Equal(t, ActionFinalize, act.Kind)

	require.Len(t, h.pub.texts, 1)
	report := h.pub.texts[0]
	assert.True(t, strings.HasPrefix(report, "📝 Отчёт за Март 2025\nОт: @tester (ID: 7)"))
	assert.Contains(t, report, "Участие: Нет\nИзучения: -\nПионер: -\nЧасы: -\nКомментарий: -")
	assert.Equal(t, "✅ Спасибо! Отчёт за Март 2025 отправлен.", h.msg.lastText())
	assert.False(t, h.m.InProgress(context.Background(), chat))
}

func TestScenarioPioneerFullPath(t *testing.T) {
	h := newHarness(t, false)
	h.start(t, 1)
	h.choose(t, catalog.StepParticipation, "yes")
	h.choose(t, catalog.StepStudyCount, "3")
	h.choose(t, catalog.StepPioneerStatus, "yes")
	assert.Equal(t, ActionPrompt, h.text(t, 2, "12").Kind)
	assert.Equal(t, ActionFinalize, h.text(t, 3, "Всё хорошо").Kind)

	require.Len(t, h.pub.texts, 1)
	assert.Contains(t, h.pub.texts[0], "Участие: Да\nИзучения: 3\nПионер: Да\nЧасы: 12\nКомментарий: Всё хорошо")
}

func TestScenarioHoursRetryThenBack(t *testing.T) {
	h := newHarness(t, false)
	h.start(t, 1)
	h.choose(t, catalog.StepParticipation, "yes")
	h.choose(t, catalog.StepStudyCount, "0")
	h.choose(t, catalog.StepPioneerStatus, "yes")

	act := h.text(t, 2, "150")
	assert.Equal(t, ActionRetry, act.Kind)
	assert.Equal(t, catalog.HoursRangeError, h.msg.lastText())
	assert.Equal(t, catalog.StepHours, h.session(t).State)

	act = h.handle(t, Inbound{Event: Event{Kind: EventBack, Step: catalog.StepHours}})
	assert.Equal(t, ActionPrompt, act.Kind)
	assert.Equal(t, catalog.StepPioneerStatus, h.session(t).State)

	h.choose(t, catalog.StepPioneerStatus, "no")
	assert.Equal(t, catalog.StepComment, h.session(t).State)
	assert.Equal(t, ActionFinalize, h.handle(t, Inbound{Event: Event{Kind: EventSkip, Step: catalog.StepComment}}).Kind)

	require.Len(t, h.pub.texts, 1)
	assert.Contains(t, h.pub.texts[0], "Пионер: Нет\nЧасы: -\nКомментарий: -")
}

func TestDoubleTapIsIgnored(t *testing.T) {
	h := newHarness(t, false)
	h.start(t, 1)
	assert.Equal(t, ActionPrompt, h.choose(t, catalog.StepParticipation, "yes").Kind)
	sends := len(h.msg.sent)

	assert.Equal(t, ActionNone, h.choose(t, catalog.StepParticipation, "yes").Kind)
	assert.Equal(t, sends, len(h.msg.sent))
	assert.Equal(t, catalog.StepStudyCount, h.session(t).State)
}

func TestConcurrentDoubleTap(t *testing.T) {
	h := newHarness(t, false)
	h.start(t, 1)

	var wg sync.WaitGroup
	results := make([]ActionKind, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			act, err := h.m.Handle(context.Background(), Inbound{
				ChatID: chat,
				Event:  Event{Kind: EventChoice, Step: catalog.StepParticipation, Value: "no"},
			})
			assert.NoError(t, err)
			results[i] = act.Kind
		}(i)
	}
	wg.Wait()

	assert.ElementsMatch(t, []ActionKind{ActionFinalize, ActionNone}, results)
	assert.Len(t, h.pub.texts, 1)
}

func TestFinalizeDeletesTrackedMessages(t *testing.T) {
	h := newHarness(t, false)
	h.start(t, 1)
	h.choose(t, catalog.StepParticipation, "yes")
	h.choose(t, catalog.StepStudyCount, "1")
	h.choose(t, catalog.StepPioneerStatus, "yes")
	h.text(t, 5, "oops")

	tracked := h.session(t).Tracked
	require.Contains(t, tracked, 1)
	require.Contains(t, tracked, 5)

	// deletion failures must not stop the rest
	h.msg.failDelete[tracked[0]] = true

	h.text(t, 6, "10")
	h.text(t, 7, "ok")

	assert.NotContains(t, h.msg.deleted, tracked[0])
	want := append([]int{6, 7}, tracked[1:]...)
	for _, id := range want {
		assert.Contains(t, h.msg.deleted, id)
	}
	assert.Len(t, h.pub.texts, 1)
}

func TestRestartDeletesOldMessagesAndResets(t *testing.T) {
	h := newHarness(t, false)
	h.start(t, 1)
	h.choose(t, catalog.StepParticipation, "yes")
	old := h.session(t).Tracked
	require.NotEmpty(t, old)

	h.start(t, 9)
	for _, id := range old {
		assert.Contains(t, h.msg.deleted, id)
	}
	assert.Contains(t, h.msg.deleted, 9)

	s := h.session(t)
	assert.Equal(t, catalog.StepParticipation, s.State)
	assert.Empty(t, s.Answers)
	assert.NotContains(t, s.Tracked, 9)
}

type failingSaveStore struct {
	state.Store
	err error
}

func (s *failingSaveStore) Save(ctx context.Context, sess *state.Session) error {
	if s.err != nil {
		return s.err
	}
	return s.Store.Save(ctx, sess)
}

func TestRestartKeepsOldMessagesWhenSaveFails(t *testing.T) {
	h := newHarness(t, false)
	store := &failingSaveStore{Store: h.store}
	h.rebuild(t, func(o *Options) { o.Store = store })

	h.start(t, 1)
	h.choose(t, catalog.StepParticipation, "yes")
	before := h.session(t)
	require.NotEmpty(t, before.Tracked)
	require.Empty(t, h.msg.deleted)

	store.err = errors.New("redis: connection refused")
	_, err := h.m.Handle(context.Background(), Inbound{
		ChatID:    chat,
		Author:    author,
		Event:     Event{Kind: EventStart},
		MessageID: 9,
	})
	require.ErrorIs(t, err, store.err)
	assert.Empty(t, h.msg.deleted)

	after := h.session(t)
	assert.Equal(t, catalog.StepStudyCount, after.State)
	assert.Equal(t, before.Tracked, after.Tracked)
}

func TestLongCommentFitsInOneMessage(t *testing.T) {
	h := newHarness(t, false)
	h.start(t, 1)
	h.choose(t, catalog.StepParticipation, "yes")
	h.choose(t, catalog.StepStudyCount, "3")
	h.choose(t, catalog.StepPioneerStatus, "no")
	act := h.text(t, 2, strings.Repeat("я", formatter.MaxTextRunes))
	assert.Equal(t, ActionFinalize, act.Kind)

	require.Len(t, h.pub.texts, 1)
	report := h.pub.texts[0]
	assert.LessOrEqual(t, utf8.RuneCountInString(report), formatter.MaxTextRunes)
	assert.Contains(t, report, "Пионер: Нет\nЧасы: -\nКомментарий: яяя")
	assert.True(t, strings.HasSuffix(report, "…"))
}

type countingScheduler struct {
	mu    sync.Mutex
	specs []string
}

func (c *countingScheduler) AddFunc(spec string, _ func()) (cron.EntryID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.specs = append(c.specs, spec)
	return cron.EntryID(len(c.specs)), nil
}

func TestRestartSchedulesReminderOnce(t *testing.T) {
	h := newHarness(t, false)
	sched := &countingScheduler{}
	rem, err := reminder.New(reminder.Options{
		Scheduler: sched,
		Sender:    h.msg,
		Periods:   h.opts.Periods,
		Hour:      reminder.DefaultHour,
		Now:       h.opts.Now,
	})
	require.NoError(t, err)
	h.rebuild(t, func(o *Options) { o.Reminders = rem })

	h.start(t, 1)
	h.choose(t, catalog.StepParticipation, "yes")
	h.start(t, 5)

	assert.Equal(t, []string{"0 10 * * *"}, sched.specs)
}

func TestRegistersReminderOnStart(t *testing.T) {
	h := newHarness(t, false)
	h.start(t, 1)
	h.start(t, 2)
	assert.Equal(t, 2, h.reg.calls[chat])
}

func TestEditPromptsInPlace(t *testing.T) {
	h := newHarness(t, true)
	h.start(t, 1)
	sends := len(h.msg.sent)

	act := h.handle(t, Inbound{
		Event:    Event{Kind: EventChoice, Step: catalog.StepParticipation, Value: "yes"},
		PromptID: 500,
	})
	assert.Equal(t, ActionPrompt, act.Kind)
	assert.Equal(t, []int{500}, h.msg.edits)
	assert.Equal(t, sends, len(h.msg.sent))
	assert.Contains(t, h.session(t).Tracked, 500)
}

func TestEditFailureFallsBackToSend(t *testing.T) {
	h := newHarness(t, true)
	h.msg.failEdit = true
	h.start(t, 1)
	sends := len(h.msg.sent)

	h.handle(t, Inbound{
		Event:    Event{Kind: EventChoice, Step: catalog.StepParticipation, Value: "yes"},
		PromptID: 500,
	})
	assert.Equal(t, sends+1, len(h.msg.sent))
}

func TestPublishFailureStillEndsSession(t *testing.T) {
	h := newHarness(t, false)
	h.pub.err = errors.New("chat not found")
	h.start(t, 1)
	act := h.choose(t, catalog.StepParticipation, "no")
	assert.Equal(t, ActionFinalize, act.Kind)
	assert.False(t, h.m.InProgress(context.Background(), chat))
}

func TestCancelClearsSession(t *testing.T) {
	h := newHarness(t, false)
	h.start(t, 1)
	act := h.handle(t, Inbound{Event: Event{Kind: EventCancel}, MessageID: 2})
	assert.Equal(t, ActionCancel, act.Kind)
	assert.Equal(t, catalog.CancelledText, h.msg.lastText())
	assert.Contains(t, h.msg.deleted, 1)
	assert.Contains(t, h.msg.deleted, 2)
	assert.False(t, h.m.InProgress(context.Background(), chat))
	assert.Empty(t, h.pub.texts)
}

func TestIdleTextNudges(t *testing.T) {
	h := newHarness(t, false)
	act := h.text(t, 1, "hello")
	assert.Equal(t, ActionIdle, act.Kind)
	assert.Equal(t, catalog.IdleNudge, h.msg.lastText())
}
