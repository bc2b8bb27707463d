// Package logger owns the process-wide structured slog logger and the
// per-update metadata carried through context.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/jakovchuk/socalska-report-bot/core/buildinfo"
	coreconfig "github.com/jakovchuk/socalska-report-bot/core/config"
)

var (
	mu          sync.Mutex
	initialized bool
	closers     []io.Closer
	levelVar    slog.LevelVar

	// L is the base logger. Until InitLogger runs it points at slog.Default().
	L *slog.Logger

	// DB logs database and cache connection events.
	DB *slog.Logger
	// TG logs Telegram transport events.
	TG *slog.Logger
	// MIG logs schema migration events.
	MIG *slog.Logger
	// TWire logs handler and command wiring.
	TWire *slog.Logger
	// HTTP logs webhook listener events.
	HTTP *slog.Logger
)

func init() {
	setBase(slog.Default())
}

func setBase(base *slog.Logger) {
	L = base
	DB = base.With("component", "db")
	TG = base.With("component", "tg")
	MIG = base.With("component", "db.migrate")
	TWire = base.With("component", "tg.wire")
	HTTP = base.With("component", "http")
}

// InitLogger installs the structured handler described by cfg. Later calls
// are no-ops until Shutdown.
func InitLogger(cfg *coreconfig.Config) error {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return nil
	}

	var lc coreconfig.LoggingConfig
	if cfg != nil {
		lc = cfg.Logging
	}
	levelVar.Set(parseLevel(lc.Level))

	writers := []io.Writer{os.Stdout}
	if f, err := openLogFile(lc); err != nil {
		return err
	} else if f != nil {
		writers = append(writers, f)
		closers = append(closers, f)
	}

	base := slog.New(newHandler(handlerConfig{
		out:    newLineWriter(writers...),
		level:  &levelVar,
		format: parseFormat(lc),
		order:  parseKeyOrder(lc.KeysOrder),
	}))
	slog.SetDefault(base)
	setBase(base)
	initialized = true

	build := buildinfo.Current()
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", build.Version),
		slog.String("build_commit", build.Commit),
		slog.String("build_time", build.Date),
		slog.String("profile", profile(lc)),
		slog.String("level", levelVar.Level().String()),
	)
	return nil
}

// Shutdown closes file sinks opened by InitLogger.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()
	var errs []error
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	closers = nil
	initialized = false
	return errors.Join(errs...)
}

func openLogFile(lc coreconfig.LoggingConfig) (*os.File, error) {
	dir := strings.TrimSpace(lc.Dir)
	name := strings.TrimSpace(lc.BotFile)
	if dir == "" || name == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logger: create dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open %s: %w", path, err)
	}
	return f, nil
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseFormat(lc coreconfig.LoggingConfig) logFormat {
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	if p := profile(lc); p == "debug" || p == "dev" {
		return formatKV
	}
	return formatJSON
}

func parseKeyOrder(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return defaultKeyOrder
	}
	var order []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			order = append(order, k)
		}
	}
	if len(order) == 0 {
		return defaultKeyOrder
	}
	return order
}

func profile(lc coreconfig.LoggingConfig) string {
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		return p
	}
	return "prod"
}

// Component returns L scoped to a component name.
func Component(name string) *slog.Logger {
	name = strings.TrimSpace(name)
	if name == "" {
		return L
	}
	return L.With("component", name)
}

// Event logs one event for component at level. Update metadata stored in ctx
// is attached by the handler.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}
	log := Component(component)
	if !log.Enabled(ctx, level) {
		return
	}
	log.LogAttrs(ctx, level, event, append([]slog.Attr{slog.String("event", event)}, attrs...)...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}
