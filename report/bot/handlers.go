package bot

import (
	"context"
	"fmt"
	"strings"

	tg "github.com/jakovchuk/socalska-report-bot/core/telegram"
	"github.com/jakovchuk/socalska-report-bot/core/telegram/callbacks"
	"github.com/jakovchuk/socalska-report-bot/core/telegram/commands"
	tghelpers "github.com/jakovchuk/socalska-report-bot/core/telegram/helpers"
	"github.com/jakovchuk/socalska-report-bot/core/telegram/router"
	"github.com/jakovchuk/socalska-report-bot/report/catalog"
	"github.com/jakovchuk/socalska-report-bot/report/flow"
	"github.com/jakovchuk/socalska-report-bot/report/formatter"

	tele "gopkg.in/telebot.v4"
)

// Flow is the questionnaire engine the handlers feed.
type Flow interface {
	Handle(ctx context.Context, in flow.Inbound) (flow.Action, error)
	InProgress(ctx context.Context, chatID int64) bool
}

// Reminders pushes reminders on demand.
type Reminders interface {
	SendAll(ctx context.Context) int
}

// Handlers turns telebot updates into flow events.
type Handlers struct {
	flow      Flow
	reminders Reminders
}

// NewHandlers returns handlers for f. reminders may be nil, which leaves
// /remind unregistered.
func NewHandlers(f Flow, reminders Reminders) *Handlers {
	return &Handlers{flow: f, reminders: reminders}
}

// Register adds the report commands and callbacks to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.Start,
		Description: "Начать отчёт",
		Aliases:     []string{"/report"},
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     h.Cancel,
		Description: "Отменить отчёт",
	})
	if h.reminders != nil {
		reg.RegisterCommand("/remind", commands.Command{
			Handler:     h.Remind,
			Description: "Разослать напоминания",
			AdminOnly:   true,
			Hidden:      true,
		})
	}

	for key, fn := range map[string]tele.HandlerFunc{
		catalog.ActionAnswer: h.Answer,
		catalog.ActionBack:   h.Back,
		catalog.ActionSkip:   h.Skip,
		catalog.ActionStart:  h.Start,
	} {
		if err := reg.RegisterCallback(key, fn); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}
	reg.SetTextFallback(h.HandleText)
	return nil
}

// Routes returns every route the report bot serves. Register must run first.
func (h *Handlers) Routes(reg *tg.Registry, adminID int64) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: adminID})
	routes = append(routes,
		router.TextRoute(catalog.StartButtonText, "start_button", h.Start),
		router.CallbackRoute(reg, router.CallbackOptions{}),
	)
	return append(routes, router.TextRoutes(h, reg, router.TextOptions{})...)
}

// InProgress reports whether chatID has a report in progress.
func (h *Handlers) InProgress(ctx context.Context, chatID int64) bool {
	return h.flow.InProgress(ctx, chatID)
}

// Start begins a new report, from a command, the reply button or the
// reminder's inline button.
func (h *Handlers) Start(c tele.Context) error {
	return h.dispatch(c, flow.Event{Kind: flow.EventStart})
}

// Cancel abandons the report in progress.
func (h *Handlers) Cancel(c tele.Context) error {
	return h.dispatch(c, flow.Event{Kind: flow.EventCancel})
}

// HandleText feeds free text to the flow.
func (h *Handlers) HandleText(c tele.Context) error {
	return h.dispatch(c, flow.Event{Kind: flow.EventText, Value: c.Text()})
}

// Answer handles a choice button.
func (h *Handlers) Answer(c tele.Context) error {
	step, key := catalog.ParsePayload(callbacks.CallbackPayload(c))
	return h.dispatch(c, flow.Event{Kind: flow.EventChoice, Step: step, Value: key})
}

// Back handles the back button.
func (h *Handlers) Back(c tele.Context) error {
	step, _ := catalog.ParsePayload(callbacks.CallbackPayload(c))
	return h.dispatch(c, flow.Event{Kind: flow.EventBack, Step: step})
}

// Skip handles the skip button.
func (h *Handlers) Skip(c tele.Context) error {
	step, _ := catalog.ParsePayload(callbacks.CallbackPayload(c))
	return h.dispatch(c, flow.Event{Kind: flow.EventSkip, Step: step})
}

// Remind pushes the reminder to every known chat and reports the count back.
func (h *Handlers) Remind(c tele.Context) error {
	n := h.reminders.SendAll(tghelpers.BuildContext(c))
	return tghelpers.SendText(c, fmt.Sprintf("Напоминаний отправлено: %d", n))
}

func (h *Handlers) dispatch(c tele.Context, ev flow.Event) error {
	in, ok := inbound(c, ev)
	if !ok {
		return nil
	}
	_, err := h.flow.Handle(tghelpers.BuildContext(c), in)
	return err
}

func inbound(c tele.Context, ev flow.Event) (flow.Inbound, bool) {
	chat := c.Chat()
	if chat == nil {
		return flow.Inbound{}, false
	}
	in := flow.Inbound{ChatID: chat.ID, Event: ev}
	if u := c.Sender(); u != nil {
		in.Author = formatter.Author{
			ID:       u.ID,
			Username: u.Username,
			FullName: strings.TrimSpace(u.FirstName + " " + u.LastName),
		}
	}
	if m := c.Message(); m != nil {
		if c.Callback() != nil {
			in.PromptID = m.ID
		} else {
			in.MessageID = m.ID
		}
	}
	return in, true
}
