package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/jakovchuk/socalska-report-bot/core/config"
	coretelegram "github.com/jakovchuk/socalska-report-bot/core/telegram"
)

type fakeConfig struct{ core *coreconfig.Config }

func (f fakeConfig) CoreConfig() *coreconfig.Config { return f.core }

type fakeApp struct {
	opts coretelegram.RunOptions
	err  error
}

func (f fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) { return f.opts, f.err }

func TestRunWiresLifecycle(t *testing.T) {
	t.Setenv("REPORT_TEST_CONFIG", "from-env.yaml")

	var order []string
	var loadedPath string
	shutdownCalled := false

	err := Run(Options{
		ConfigEnvVar:      "REPORT_TEST_CONFIG",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loadedPath = path
			return fakeConfig{core: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) {
			return fakeApp{opts: coretelegram.RunOptions{
				OnStart: func(context.Context, coretelegram.Runtime) error {
					order = append(order, "start")
					return nil
				},
				OnStop: func(context.Context, coretelegram.Runtime) error {
					order = append(order, "stop")
					return nil
				},
			}}, nil
		},
		ShutdownLogger: func() error {
			shutdownCalled = true
			return nil
		},
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			require.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
			require.NoError(t, opts.OnStop(ctx, coretelegram.Runtime{}))
			return nil
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "from-env.yaml", loadedPath)
	assert.Equal(t, []string{"start", "stop"}, order)
	assert.True(t, shutdownCalled)
}

func TestRunStartFailureSkipsReady(t *testing.T) {
	boom := errors.New("cron")
	err := Run(Options{
		LoadConfig: func(string) (ConfigCarrier, error) {
			return fakeConfig{core: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) {
			return fakeApp{opts: coretelegram.RunOptions{
				OnStart: func(context.Context, coretelegram.Runtime) error { return boom },
			}}, nil
		},
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			return opts.OnStart(ctx, coretelegram.Runtime{})
		},
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunErrors(t *testing.T) {
	load := func(string) (ConfigCarrier, error) { return fakeConfig{core: &coreconfig.Config{}}, nil }
	boot := func(ConfigCarrier) (TelegramApp, error) { return fakeApp{}, nil }

	assert.Error(t, Run(Options{Bootstrap: boot}))
	assert.Error(t, Run(Options{LoadConfig: load}))

	err := Run(Options{
		LoadConfig: func(string) (ConfigCarrier, error) { return nil, errors.New("bad yaml") },
		Bootstrap:  boot,
	})
	assert.ErrorContains(t, err, "load config")

	err = Run(Options{
		LoadConfig: func(string) (ConfigCarrier, error) { return fakeConfig{}, nil },
		Bootstrap:  boot,
	})
	assert.ErrorContains(t, err, "core section")

	err = Run(Options{
		LoadConfig: load,
		Bootstrap:  func(ConfigCarrier) (TelegramApp, error) { return nil, errors.New("db down") },
	})
	assert.ErrorContains(t, err, "bootstrap")

	err = Run(Options{
		LoadConfig:     load,
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return fakeApp{err: errors.New("no token")}, nil },
		ShutdownLogger: func() error { return nil },
	})
	assert.ErrorContains(t, err, "telegram options")
}

func TestConfigPathDefault(t *testing.T) {
	t.Setenv(defaultConfigEnv, "")
	assert.Equal(t, "config.yaml", configPath(Options{DefaultConfigPath: "config.yaml"}))
	t.Setenv(defaultConfigEnv, "/etc/reportbot.yaml")
	assert.Equal(t, "/etc/reportbot.yaml", configPath(Options{}))
}
