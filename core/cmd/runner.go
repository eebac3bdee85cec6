// Package cmd holds the process entrypoint shared by bot binaries.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/tunerover/core/config"
	"github.com/m3rciful/tunerover/core/logger"
	coretelegram "github.com/m3rciful/tunerover/core/telegram"
)

// ConfigCarrier is any application config that embeds the core section.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp produces the options RunTelegram needs.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options wires an application into Run. LoadConfig and Bootstrap are required.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

func (o Options) configPath() (string, error) {
	env := o.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	if p := os.Getenv(env); p != "" {
		return p, nil
	}
	if o.DefaultConfigPath != "" {
		return o.DefaultConfigPath, nil
	}
	return "", fmt.Errorf("cmd: set %s or DefaultConfigPath", env)
}

// Run loads the config, bootstraps the app and serves updates until SIGINT or SIGTERM.
func Run(opts Options) error {
	switch {
	case opts.LoadConfig == nil:
		return errors.New("cmd: LoadConfig is required")
	case opts.Bootstrap == nil:
		return errors.New("cmd: Bootstrap is required")
	}
	started := time.Now()

	path, err := opts.configPath()
	if err != nil {
		return err
	}
	// The logger is configured by Bootstrap, so this line goes to stderr.
	log.Printf("loading config: %s", path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: load config: %w", err)
	}
	if cfg.CoreConfig() == nil {
		return errors.New("cmd: config has no core section")
	}

	application, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap: %w", err)
	}
	shutdown := opts.ShutdownLogger
	if shutdown == nil {
		shutdown = logger.Shutdown
	}
	defer func() {
		if err := shutdown(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()

	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options: %w", err)
	}
	announceLifecycle(&runOpts, started)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

// announceLifecycle logs app.ready after the app's OnStart succeeds and
// app.shutdown before its OnStop runs.
func announceLifecycle(opts *coretelegram.RunOptions, started time.Time) {
	appLog := logger.Component("app")
	onStart, onStop := opts.OnStart, opts.OnStop

	opts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		appLog.Info("app.ready",
			slog.String("status", "ok"),
			slog.Duration("startup", logger.RoundMS(time.Since(started))),
		)
		return nil
	}
	opts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		appLog.Info("app.shutdown", slog.String("status", "ok"))
		if onStop == nil {
			return nil
		}
		return onStop(ctx, rt)
	}
}
