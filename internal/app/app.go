// Package app assembles the bot from configuration: storage, sessions,
// covers, the submission dialogue and the Telegram handlers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/tunerover/core/bootstrap"
	"github.com/m3rciful/tunerover/core/logger"
	coretelegram "github.com/m3rciful/tunerover/core/telegram"
	"github.com/m3rciful/tunerover/core/telegram/state"
	"github.com/m3rciful/tunerover/internal/bot"
	"github.com/m3rciful/tunerover/internal/catalog"
	"github.com/m3rciful/tunerover/internal/config"
	"github.com/m3rciful/tunerover/internal/covers"
	"github.com/m3rciful/tunerover/internal/metrics"
	"github.com/m3rciful/tunerover/internal/submission"
	"github.com/m3rciful/tunerover/migrations"
)

// App owns the long lived dependencies of a running bot.
type App struct {
	Config      *config.Config
	DB          *sqlx.DB
	Catalog     *catalog.Store
	Covers      *covers.FileStore
	Submissions *submission.Service
	Bot         *bot.Bot

	redis *redis.Client
}

// Options let tests replace the infrastructure bootstrap.
type Options struct {
	Bootstrap func(bootstrap.Options) (*bootstrap.Result, error)
}

// New runs the bootstrap pipeline and wires the services.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	run := opts.Bootstrap
	if run == nil {
		run = bootstrap.Run
	}
	res, err := run(bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: migrations.FS,
	})
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, DB: res.DB}
	if err := a.wire(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	cfg := a.Config
	a.Catalog = catalog.NewStore(a.DB)

	fs, err := covers.NewFileStore(cfg.Covers.Dir, covers.Options{
		MaxWidth:  cfg.Covers.MaxWidth,
		MaxHeight: cfg.Covers.MaxHeight,
		Quality:   cfg.Covers.Quality,
		MaxBytes:  cfg.Covers.MaxBytes,
	})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.Covers = fs

	sessions, err := a.sessionStore()
	if err != nil {
		return err
	}
	a.Submissions = submission.NewService(sessions, a.Catalog, a.Covers, submission.Options{
		CollectLinks: cfg.Submission.CollectLinks,
	})
	a.Bot = bot.New(a.Catalog, a.Submissions, a.Covers)

	logger.Info(logger.Background(), "app", "app.wire",
		slog.String("status", "ok"),
		slog.String("db_driver", cfg.Database.Driver),
		slog.String("session_backend", cfg.Submission.SessionBackend),
		slog.Bool("collect_links", cfg.Submission.CollectLinks),
		slog.String("covers_dir", cfg.Covers.Dir),
	)
	return nil
}

func (a *App) sessionStore() (state.Store[submission.Draft], error) {
	cfg := a.Config
	if cfg.Submission.SessionBackend != config.SessionBackendRedis {
		return state.NewMemoryStore[submission.Draft](cfg.Submission.IdleTimeout), nil
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("app: redis ping %s: %w", cfg.Redis.Addr, err)
	}
	return state.NewRedisStore[submission.Draft](a.redis, cfg.Redis.Prefix, cfg.Submission.IdleTimeout), nil
}

// TelegramRunOptions builds the registry, middlewares and routes for RunTelegram.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	if err := a.Bot.Register(reg); err != nil {
		return coretelegram.RunOptions{}, fmt.Errorf("app: register handlers: %w", err)
	}
	core := &a.Config.Config
	return coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(core, a.Bot.OnRateLimited, a.Bot.Middlewares()...),
		Routes:      a.Bot.Routes(),
		OnStart: func(ctx context.Context, _ coretelegram.Runtime) error {
			go func() {
				if err := metrics.Serve(ctx, core.Metrics.Listen, core.Metrics.Path); err != nil {
					logger.Error(ctx, "metrics", "metrics.listen",
						slog.String("status", "fail"),
						slog.String("err", err.Error()),
					)
				}
			}()
			return nil
		},
		OnStop: func(context.Context, coretelegram.Runtime) error {
			return a.Close()
		},
	}, nil
}

// Close releases the database and redis connections.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
		a.redis = nil
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
		a.DB = nil
	}
	return errors.Join(errs...)
}
