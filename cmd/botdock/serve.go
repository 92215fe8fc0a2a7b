package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/botdock/botdock/internal/backend"
	"github.com/botdock/botdock/internal/blob"
	"github.com/botdock/botdock/internal/bots"
	"github.com/botdock/botdock/internal/channel"
	"github.com/botdock/botdock/internal/channel/adapters/feishu"
	"github.com/botdock/botdock/internal/config"
	"github.com/botdock/botdock/internal/db"
	"github.com/botdock/botdock/internal/handlers"
	"github.com/botdock/botdock/internal/logger"
	"github.com/botdock/botdock/internal/pipeline"
	"github.com/botdock/botdock/internal/server"
)

func runServe() {
	app := fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBPool,
			provideChannelRegistry,
			provideChannelStore,
			channel.NewManager,
			bots.NewService,
			provideBlobStore,
			provideBackendClient,
			provideDeduper,
			provideBuilder,
			provideRouter,
			provideDispatcher,
			providePipeline,
			handlers.NewPingHandler,
			handlers.NewAuthHandler,
			handlers.NewBotsHandler,
			handlers.NewChannelHandler,
			provideServer,
		),
		fx.Invoke(
			runMigrations,
			startDeduper,
			startChannelManager,
			startServer,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	)
	app.Run()
}

func provideConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return config.Load(path)
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := db.NewPool(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

func provideChannelRegistry(log *slog.Logger) *channel.Registry {
	registry := channel.NewRegistry()
	registry.MustRegister(feishu.NewAdapter(log))
	return registry
}

func provideChannelStore(log *slog.Logger, pool *pgxpool.Pool) channel.ConfigStore {
	return channel.NewStore(log, pool)
}

func provideBlobStore(log *slog.Logger, cfg config.Config) pipeline.BlobStore {
	return blob.NewClient(log, cfg.Blob.BaseURL, cfg.Blob.Bucket, cfg.Blob.Token)
}

func provideBackendClient(log *slog.Logger) pipeline.BackendClient {
	return backend.NewClient(log)
}

func provideDeduper(log *slog.Logger, cfg config.Config) *pipeline.Deduper {
	return pipeline.NewDeduper(log, cfg.Pipeline.DedupTTL())
}

func provideBuilder(log *slog.Logger, store pipeline.BlobStore, cfg config.Config) *pipeline.Builder {
	return pipeline.NewBuilder(log, store, pipeline.BuilderConfig{
		MaxFileTextChars: cfg.Pipeline.MaxFileTextChars,
		PresignTTL:       cfg.Pipeline.PresignTTL(),
	})
}

func provideRouter(log *slog.Logger, client pipeline.BackendClient, cfg config.Config) *pipeline.Router {
	return pipeline.NewRouter(log, client, pipeline.RouterConfig{
		DefaultVisionModel: cfg.Pipeline.DefaultVisionModel,
	})
}

func provideDispatcher(log *slog.Logger, manager *channel.Manager) *pipeline.Dispatcher {
	return pipeline.NewDispatcher(log, manager)
}

func providePipeline(log *slog.Logger, deduper *pipeline.Deduper, builder *pipeline.Builder, router *pipeline.Router, dispatcher *pipeline.Dispatcher, botsService *bots.Service, manager *channel.Manager) *pipeline.Pipeline {
	return pipeline.New(log, deduper, builder, router, dispatcher, botsService, manager, manager.Teardown)
}

func provideServer(cfg config.Config, pingHandler *handlers.PingHandler, authHandler *handlers.AuthHandler, botsHandler *handlers.BotsHandler, channelHandler *handlers.ChannelHandler) *server.Server {
	return server.NewServer(cfg.Server.Addr, cfg.Auth.JWTSecret, pingHandler, authHandler, botsHandler, channelHandler)
}

func runMigrations(log *slog.Logger, cfg config.Config) error {
	return db.Migrate(log, cfg.Postgres)
}

func startDeduper(lc fx.Lifecycle, deduper *pipeline.Deduper) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			deduper.Start(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func startChannelManager(lc fx.Lifecycle, manager *channel.Manager, pipe *pipeline.Pipeline) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			manager.SetHandler(pipe.HandleInbound)
			manager.Start(ctx)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			return manager.Shutdown(stopCtx)
		},
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
