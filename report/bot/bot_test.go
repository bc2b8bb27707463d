package bot

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tg "github.com/jakovchuk/socalska-report-bot/core/telegram"
	"github.com/jakovchuk/socalska-report-bot/core/telegram/sender"
	"github.com/jakovchuk/socalska-report-bot/report/catalog"
	"github.com/jakovchuk/socalska-report-bot/report/flow"

	tele "gopkg.in/telebot.v4"
)

type call struct {
	to     string
	text   string
	markup *tele.ReplyMarkup
	msgID  string
}

type fakeAPI struct {
	mu      sync.Mutex
	sends   []call
	edits   []call
	deletes []call
	err     error
}

func markupOf(opts []interface{}) *tele.ReplyMarkup {
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			return so.ReplyMarkup
		}
	}
	return nil
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sends = append(f.sends, call{to: to.Recipient(), text: what.(string), markup: markupOf(opts)})
	return &tele.Message{ID: len(f.sends)}, nil
}

func (f *fakeAPI) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	id, _ := msg.MessageSig()
	f.edits = append(f.edits, call{text: what.(string), markup: markupOf(opts), msgID: id})
	return &tele.Message{}, nil
}

func (f *fakeAPI) Delete(msg tele.Editable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	id, chatID := msg.MessageSig()
	f.deletes = append(f.deletes, call{to: strconv.FormatInt(chatID, 10), msgID: id})
	return nil
}

func (f *fakeAPI) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func TestMessengerNotBound(t *testing.T) {
	m := NewMessenger(nil)
	_, err := m.Send(context.Background(), 1, catalog.Message{Text: "x"})
	assert.ErrorIs(t, err, ErrNotBound)
	assert.ErrorIs(t, m.Delete(context.Background(), 1, 2), ErrNotBound)

	api := &fakeAPI{}
	m.Bind(api)
	id, err := m.Send(context.Background(), 1, catalog.Message{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, id)
}

func TestMessengerSendPrompt(t *testing.T) {
	api := &fakeAPI{}
	m := NewMessenger(api)

	q, ok := catalog.Lookup(catalog.StepStudyCount)
	require.True(t, ok)
	_, err := m.Send(context.Background(), 42, q.Render(""))
	require.NoError(t, err)

	require.Len(t, api.sends, 1)
	got := api.sends[0]
	assert.Equal(t, "42", got.to)
	require.NotNil(t, got.markup)
	// 8 choices at 4 per row plus the navigation row
	require.Len(t, got.markup.InlineKeyboard, 3)
	assert.Len(t, got.markup.InlineKeyboard[0], 4)
	assert.Equal(t, "0", got.markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, catalog.ActionAnswer, got.markup.InlineKeyboard[0][0].Unique)
	assert.Equal(t, catalog.BackButtonText, got.markup.InlineKeyboard[2][0].Text)
}

func TestMessengerIdleKeyboard(t *testing.T) {
	api := &fakeAPI{}
	m := NewMessenger(api)
	_, err := m.Send(context.Background(), 1, catalog.IdleMessage())
	require.NoError(t, err)

	mk := api.sends[0].markup
	require.NotNil(t, mk)
	assert.True(t, mk.ResizeKeyboard)
	require.Len(t, mk.ReplyKeyboard, 1)
	assert.Equal(t, catalog.StartButtonText, mk.ReplyKeyboard[0][0].Text)
}

func TestMessengerEdit(t *testing.T) {
	api := &fakeAPI{}
	m := NewMessenger(api)

	err := m.Edit(context.Background(), 5, 77, catalog.Message{Text: "prompt"})
	require.NoError(t, err)
	require.Len(t, api.edits, 1)
	assert.Equal(t, "77", api.edits[0].msgID)
	require.NotNil(t, api.edits[0].markup)
	assert.Empty(t, api.edits[0].markup.InlineKeyboard)

	err = m.Edit(context.Background(), 5, 77, catalog.IdleMessage())
	assert.ErrorIs(t, err, ErrReplyKeyboardEdit)
}

func TestMessengerDelete(t *testing.T) {
	api := &fakeAPI{}
	m := NewMessenger(api)
	require.NoError(t, m.Delete(context.Background(), 9, 3))
	assert.Equal(t, call{to: "9", msgID: "3"}, api.deletes[0])
}

func TestChannel(t *testing.T) {
	assert.True(t, Channel("-1001234567890").Valid())
	assert.True(t, Channel(" @reports ").Valid())
	assert.Equal(t, "@reports", Channel(" @reports ").Recipient())
	assert.False(t, Channel("@").Valid())
	assert.False(t, Channel("reports").Valid())
	assert.False(t, Channel("").Valid())
}

func TestPublisherSync(t *testing.T) {
	api := &fakeAPI{}
	p := NewChannelPublisher(NewMessenger(api), Channel("@reports"), nil)
	require.NoError(t, p.Publish(context.Background(), "report"))
	assert.Equal(t, "@reports", api.sends[0].to)

	api.err = errors.New("chat not found")
	assert.Error(t, p.Publish(context.Background(), "report"))
}

func TestPublisherQueued(t *testing.T) {
	api := &fakeAPI{}
	d := sender.NewDispatcher(sender.Options{Workers: 1})
	p := NewChannelPublisher(NewMessenger(api), Channel("-100"), d)

	require.NoError(t, p.Publish(context.Background(), "report"))
	d.Close()
	assert.Equal(t, 1, api.sendCount())

	// a closed queue falls back to a direct send
	require.NoError(t, p.Publish(context.Background(), "again"))
	assert.Equal(t, 2, api.sendCount())
}

// stubContext implements the parts of tele.Context the handlers touch.
type stubContext struct {
	tele.Context
	chat   *tele.Chat
	user   *tele.User
	msg    *tele.Message
	cb     *tele.Callback
	text   string
	values map[string]interface{}
}

func (s *stubContext) Chat() *tele.Chat { return s.chat }

func (s *stubContext) Sender() *tele.User { return s.user }

func (s *stubContext) Message() *tele.Message { return s.msg }

func (s *stubContext) Callback() *tele.Callback { return s.cb }

func (s *stubContext) Text() string { return s.text }

func (s *stubContext) Update() tele.Update { return tele.Update{ID: 1} }
func (s *stubContext) Get(key string) interface{} {
	return s.values[key]
}
func (s *stubContext) Set(key string, v interface{}) {
	if s.values == nil {
		s.values = map[string]interface{}{}
	}
	s.values[key] = v
}

type fakeFlow struct {
	got      []flow.Inbound
	progress bool
}

func (f *fakeFlow) Handle(_ context.Context, in flow.Inbound) (flow.Action, error) {
	f.got = append(f.got, in)
	return flow.Action{}, nil
}

func (f *fakeFlow) InProgress(context.Context, int64) bool { return f.progress }

func textCtx(text string, msgID int) *stubContext {
	return &stubContext{
		chat: &tele.Chat{ID: 42},
		user: &tele.User{ID: 42, Username: "ivan", FirstName: "Иван", LastName: "Петров"},
		msg:  &tele.Message{ID: msgID},
		text: text,
	}
}

func callbackCtx(data string, promptID int) *stubContext {
	c := textCtx("", promptID)
	c.cb = &tele.Callback{Data: data}
	return c
}

func TestHandlersText(t *testing.T) {
	f := &fakeFlow{}
	h := NewHandlers(f, nil)

	require.NoError(t, h.HandleText(textCtx("12", 5)))
	require.Len(t, f.got, 1)
	in := f.got[0]
	assert.Equal(t, int64(42), in.ChatID)
	assert.Equal(t, flow.Event{Kind: flow.EventText, Value: "12"}, in.Event)
	assert.Equal(t, 5, in.MessageID)
	assert.Zero(t, in.PromptID)
	assert.Equal(t, "ivan", in.Author.Username)
	assert.Equal(t, "Иван Петров", in.Author.FullName)
}

func TestHandlersCallbacks(t *testing.T) {
	f := &fakeFlow{}
	h := NewHandlers(f, nil)

	require.NoError(t, h.Answer(callbackCtx("\fanswer|participation:yes", 9)))
	require.NoError(t, h.Back(callbackCtx("\fback|hours", 9)))
	require.NoError(t, h.Skip(callbackCtx("\fskip|comment", 9)))
	require.NoError(t, h.Start(callbackCtx("\fstart_report", 9)))

	require.Len(t, f.got, 4)
	assert.Equal(t, flow.Event{Kind: flow.EventChoice, Step: catalog.StepParticipation, Value: "yes"}, f.got[0].Event)
	assert.Equal(t, flow.Event{Kind: flow.EventBack, Step: catalog.StepHours}, f.got[1].Event)
	assert.Equal(t, flow.Event{Kind: flow.EventSkip, Step: catalog.StepComment}, f.got[2].Event)
	assert.Equal(t, flow.EventStart, f.got[3].Event.Kind)
	for _, in := range f.got {
		assert.Equal(t, 9, in.PromptID)
		assert.Zero(t, in.MessageID)
	}
}

func TestHandlersIgnoreChatless(t *testing.T) {
	f := &fakeFlow{}
	h := NewHandlers(f, nil)
	require.NoError(t, h.Start(&stubContext{}))
	assert.Empty(t, f.got)
}

type fakeReminders struct{ n int }

func (f *fakeReminders) SendAll(context.Context) int { return f.n }

func TestRegister(t *testing.T) {
	reg := tg.NewRegistry()
	h := NewHandlers(&fakeFlow{}, &fakeReminders{})
	require.NoError(t, h.Register(reg))

	key, _, ok := reg.LookupCommand("/report")
	assert.True(t, ok)
	assert.Equal(t, "/start", key)

	_, remind, ok := reg.LookupCommand("/remind")
	require.True(t, ok)
	assert.True(t, remind.AdminOnly)

	assert.Equal(t, []string{
		catalog.ActionAnswer, catalog.ActionBack, catalog.ActionSkip, catalog.ActionStart,
	}, reg.ListCallbacks())
	assert.NotNil(t, reg.TextFallback())

	visible := reg.ListCommands(true)
	require.Len(t, visible, 2)
	assert.Equal(t, "/cancel", visible[0].Text)

	// callbacks may only be registered once
	assert.Error(t, h.Register(reg))
}

func TestRoutes(t *testing.T) {
	reg := tg.NewRegistry()
	h := NewHandlers(&fakeFlow{}, nil)
	require.NoError(t, h.Register(reg))

	endpoints := map[any]bool{}
	for _, r := range h.Routes(reg, 1) {
		require.NotNil(t, r.Handler)
		endpoints[r.Endpoint] = true
	}
	for _, want := range []any{"/start", "/report", "/cancel", catalog.StartButtonText, tele.OnCallback, tele.OnText} {
		assert.True(t, endpoints[want], "missing route %v", want)
	}
	assert.False(t, endpoints["/remind"])
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	api := &fakeAPI{}
	d := sender.NewDispatcher(sender.Options{Workers: 2, QueueSize: 8, MaxDuration: time.Second})
	p := NewChannelPublisher(NewMessenger(api), Channel("@r"), d)
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Publish(context.Background(), "r"))
	}
	d.Close()
	assert.Equal(t, 5, api.sendCount())
	assert.Zero(t, d.ErrorCount())
}
