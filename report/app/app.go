package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	tele "gopkg.in/telebot.v4"

	"github.com/jakovchuk/socalska-report-bot/core/bootstrap"
	"github.com/jakovchuk/socalska-report-bot/core/logger"
	coretelegram "github.com/jakovchuk/socalska-report-bot/core/telegram"
	"github.com/jakovchuk/socalska-report-bot/core/telegram/sender"
	"github.com/jakovchuk/socalska-report-bot/core/telegram/state"
	"github.com/jakovchuk/socalska-report-bot/report/bot"
	"github.com/jakovchuk/socalska-report-bot/report/flow"
	"github.com/jakovchuk/socalska-report-bot/report/period"
	"github.com/jakovchuk/socalska-report-bot/report/reminder"
)

const (
	cronStopTimeout = 10 * time.Second
	// publishRetries bounds resends of a report after flood waits or dial failures.
	publishRetries = 2
)

// App holds every long-lived component of the report bot.
type App struct {
	cfg   *Config
	infra *bootstrap.Result

	store      state.Store
	messenger  *bot.Messenger
	dispatcher *sender.Dispatcher
	cron       *cron.Cron
	reminders  *reminder.Reminder
	machine    *flow.Machine
	handlers   *bot.Handlers
	registry   *coretelegram.Registry
}

// Bootstrap connects infrastructure for the configured session backend
// and assembles the application.
func Bootstrap(cfg *Config) (*App, error) {
	return bootstrapWith(cfg, bootstrap.Options{})
}

func bootstrapWith(cfg *Config, opts bootstrap.Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	opts.Config = cfg.CoreConfig()
	switch cfg.Session.Backend {
	case BackendPostgres:
		db := cfg.Database
		opts.Database = &db
	case BackendRedis:
		opts.RedisURL = cfg.Redis.URL
	}

	infra, err := bootstrap.Run(opts)
	if err != nil {
		return nil, err
	}

	store, err := selectStore(cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}

	a, err := assemble(cfg, store, reminder.NewCron(cfg.Location()))
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	a.infra = infra

	logger.Info(context.Background(), "app", "bootstrap",
		slog.String("session_backend", cfg.Session.Backend),
		slog.String("timezone", cfg.Report.Timezone),
		slog.Int("cutoff_day", cfg.Report.CutoffDay),
		slog.Int("reminder_hour", *cfg.Report.ReminderHour),
		slog.Bool("edit_prompts", *cfg.Report.EditPrompts),
	)
	return a, nil
}

func selectStore(cfg *Config, infra *bootstrap.Result) (state.Store, error) {
	switch cfg.Session.Backend {
	case BackendPostgres:
		if infra.DB == nil {
			return nil, fmt.Errorf("app: postgres backend without a database connection")
		}
		return state.NewPostgresStore(infra.DB), nil
	case BackendRedis:
		if infra.Redis == nil {
			return nil, fmt.Errorf("app: redis backend without a redis connection")
		}
		ttl := time.Duration(cfg.Redis.TTLHours) * time.Hour
		return state.NewRedisStore(infra.Redis, cfg.Redis.Prefix, ttl), nil
	default:
		return state.NewMemoryStore(), nil
	}
}

func assemble(cfg *Config, store state.Store, scheduler *cron.Cron) (*App, error) {
	loc := cfg.Location()
	periods := period.NewCalculator(loc, cfg.Report.CutoffDay)
	messenger := bot.NewMessenger(nil)
	dispatcher := sender.NewDispatcher(sender.Options{MaxRetries: publishRetries})

	reminders, err := reminder.New(reminder.Options{
		Scheduler: scheduler,
		Sender:    messenger,
		Periods:   periods,
		Hour:      *cfg.Report.ReminderHour,
	})
	if err != nil {
		dispatcher.Close()
		return nil, err
	}

	machine, err := flow.New(flow.Options{
		Store:       store,
		Messenger:   messenger,
		Publisher:   bot.NewChannelPublisher(messenger, cfg.Channel(), dispatcher),
		Reminders:   reminders,
		Periods:     periods,
		EditPrompts: *cfg.Report.EditPrompts,
	})
	if err != nil {
		dispatcher.Close()
		return nil, err
	}

	handlers := bot.NewHandlers(machine, reminders)
	registry := coretelegram.NewRegistry()
	if err := handlers.Register(registry); err != nil {
		dispatcher.Close()
		return nil, err
	}

	return &App{
		cfg:        cfg,
		store:      store,
		messenger:  messenger,
		dispatcher: dispatcher,
		cron:       scheduler,
		reminders:  reminders,
		machine:    machine,
		handlers:   handlers,
		registry:   registry,
	}, nil
}

// TelegramRunOptions describes how the Telegram runtime should host the app.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	return coretelegram.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Dispatcher:  a.dispatcher,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		Routes:      a.handlers.Routes(a.registry, core.Telegram.AdminID),
		OnBot: func(b *tele.Bot, _ coretelegram.Runtime) error {
			a.messenger.Bind(b)
			return nil
		},
		OnStart: func(ctx context.Context, _ coretelegram.Runtime) error {
			a.cron.Start()
			logger.Info(ctx, "reminder", "scheduler.start",
				slog.Int("hour", *a.cfg.Report.ReminderHour),
				slog.String("timezone", a.cfg.Report.Timezone),
			)
			return nil
		},
		OnStop: func(ctx context.Context, _ coretelegram.Runtime) error {
			a.stopCron()
			return a.infra.Close()
		},
	}, nil
}

func (a *App) stopCron() {
	done := a.cron.Stop().Done()
	select {
	case <-done:
	case <-time.After(cronStopTimeout):
		logger.Warn(context.Background(), "reminder", "scheduler.stop_timeout",
			slog.Duration("timeout", cronStopTimeout),
		)
	}
}
