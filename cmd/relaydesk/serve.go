package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/relaydesk/relaydesk/internal/canned"
	"github.com/relaydesk/relaydesk/internal/chat"
	"github.com/relaydesk/relaydesk/internal/config"
	"github.com/relaydesk/relaydesk/internal/db"
	"github.com/relaydesk/relaydesk/internal/department"
	"github.com/relaydesk/relaydesk/internal/downloader"
	"github.com/relaydesk/relaydesk/internal/event"
	"github.com/relaydesk/relaydesk/internal/handlers"
	"github.com/relaydesk/relaydesk/internal/inbound"
	"github.com/relaydesk/relaydesk/internal/logger"
	"github.com/relaydesk/relaydesk/internal/message"
	"github.com/relaydesk/relaydesk/internal/messenger/factory"
	"github.com/relaydesk/relaydesk/internal/moderator"
	"github.com/relaydesk/relaydesk/internal/queue"
	"github.com/relaydesk/relaydesk/internal/retention"
	"github.com/relaydesk/relaydesk/internal/server"
	"github.com/relaydesk/relaydesk/internal/source"
	"github.com/relaydesk/relaydesk/internal/storage"
	"github.com/relaydesk/relaydesk/internal/storage/localfs"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideBlobStore,
			provideSourceService,
			provideDepartmentService,
			provideChatService,
			provideMessageService,
			provideModeratorService,
			provideCannedService,
			provideProcessor,
			provideJobs,
			providePingHandler,
			provideAuthHandler,
			provideWebhookHandler,
			provideWidgetHandler,
			provideChatsHandler,
			provideSourcesHandler,
			provideCannedHandler,
			provideAttachmentsHandler,
			provideRetention,
			provideServer,
			factory.New,
			event.NewHub,
			provideEventPublisher,
		),
		fx.Invoke(registerLifecycle),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideBlobStore(cfg config.Config) (storage.BlobStore, error) {
	return localfs.New(cfg.Storage.Root, cfg.Server.PublicBaseURL)
}

func provideSourceService(log *slog.Logger, conn *pgxpool.Pool) *source.Service {
	return source.NewService(log, source.NewPGRepository(conn))
}

func provideDepartmentService(log *slog.Logger, conn *pgxpool.Pool) *department.Service {
	return department.NewService(log, department.NewPGRepository(conn))
}

func provideChatService(log *slog.Logger, conn *pgxpool.Pool, events event.Publisher) *chat.Service {
	return chat.NewService(log, chat.NewPGRepository(conn), events)
}

func provideMessageService(log *slog.Logger, conn *pgxpool.Pool, chats *chat.Service,
	sources *source.Service, providers *factory.Factory, events event.Publisher) *message.Service {
	return message.NewService(log, message.NewPGRepository(conn), chats, sources, providers, events)
}

func provideEventPublisher(hub *event.Hub) event.Publisher {
	return hub
}

func provideModeratorService(log *slog.Logger, conn *pgxpool.Pool) *moderator.Service {
	return moderator.NewService(log, moderator.NewPGRepository(conn))
}

func provideCannedService(log *slog.Logger, conn *pgxpool.Pool) *canned.Service {
	return canned.NewService(log, canned.NewPGRepository(conn))
}

func provideProcessor(log *slog.Logger, sources *source.Service, departments *department.Service,
	chats *chat.Service, messages *message.Service, providers *factory.Factory, jobs *jobDispatch) *inbound.Processor {
	return inbound.NewProcessor(log, sources, departments, chats, messages, providers, jobs)
}

// jobDispatch wires the download scheduler late: the processor needs a
// scheduler and the broker subscriber needs the processor.
type jobDispatch struct {
	downloads inbound.DownloadScheduler
}

func (j *jobDispatch) Schedule(ctx context.Context, job downloader.Job) error {
	return j.downloads.Schedule(ctx, job)
}

func provideJobs() *jobDispatch {
	return &jobDispatch{}
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log)
}

func provideAuthHandler(log *slog.Logger, cfg config.Config, moderators *moderator.Service) (*handlers.AuthHandler, error) {
	expiresIn, err := cfg.Auth.ExpiresIn()
	if err != nil {
		return nil, err
	}
	return handlers.NewAuthHandler(log, moderators, cfg.Auth.JWTSecret, expiresIn), nil
}

func provideWidgetHandler(log *slog.Logger, cfg config.Config, sources *source.Service,
	departments *department.Service, chats *chat.Service, messages *message.Service,
	processor *inbound.Processor) *handlers.WidgetHandler {
	return handlers.NewWidgetHandler(log, sources, departments, chats, messages, processor, cfg.Auth.JWTSecret)
}

func provideChatsHandler(log *slog.Logger, chats *chat.Service, messages *message.Service) *handlers.ChatsHandler {
	return handlers.NewChatsHandler(log, chats, messages)
}

func provideSourcesHandler(log *slog.Logger, sources *source.Service, departments *department.Service) *handlers.SourcesHandler {
	return handlers.NewSourcesHandler(log, sources, departments)
}

func provideCannedHandler(log *slog.Logger, responses *canned.Service) *handlers.CannedHandler {
	return handlers.NewCannedHandler(log, responses)
}

func provideAttachmentsHandler(log *slog.Logger, blobs storage.BlobStore) *handlers.AttachmentsHandler {
	return handlers.NewAttachmentsHandler(log, blobs)
}

func provideRetention(log *slog.Logger, cfg config.Config, chats *chat.Service) *retention.Sweeper {
	idle := time.Duration(cfg.Retention.IdleCloseHours) * time.Hour
	return retention.New(log, chats, cfg.Retention.Schedule, idle)
}

func provideServer(log *slog.Logger, cfg config.Config,
	pingHandler *handlers.PingHandler,
	authHandler *handlers.AuthHandler,
	webhookHandler *handlers.WebhookHandler,
	widgetHandler *handlers.WidgetHandler,
	chatsHandler *handlers.ChatsHandler,
	sourcesHandler *handlers.SourcesHandler,
	cannedHandler *handlers.CannedHandler,
	attachmentsHandler *handlers.AttachmentsHandler) *server.Server {
	return server.New(log, cfg.Server.Addr, cfg.Auth.JWTSecret,
		pingHandler, authHandler, webhookHandler, widgetHandler,
		chatsHandler, sourcesHandler, cannedHandler, attachmentsHandler)
}

// provideWebhookHandler picks broker or inline processing based on config.
func provideWebhookHandler(lc fx.Lifecycle, log *slog.Logger, cfg config.Config,
	sources *source.Service, processor *inbound.Processor, messages *message.Service,
	blobs storage.BlobStore, jobs *jobDispatch, hub *event.Hub) (*handlers.WebhookHandler, error) {
	worker := downloader.NewWorker(log, blobs, messages)

	if !cfg.Rabbit.Enabled() {
		jobs.downloads = queue.NewInlineDownloads(log, worker)
		return handlers.NewWebhookHandler(log, sources, queue.NewInlineInbound(processor)), nil
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	conn, err := queue.Dial(dialCtx, log, queue.DialOptions{URL: cfg.Rabbit.URL})
	if err != nil {
		return nil, err
	}
	publisher, err := queue.NewPublisher(log, conn, cfg.Rabbit.Exchange)
	if err != nil {
		conn.Close()
		return nil, err
	}
	subscriber, err := queue.NewSubscriber(log, conn, cfg.Rabbit.Exchange, cfg.Rabbit.Workers)
	if err != nil {
		conn.Close()
		return nil, err
	}
	queue.RegisterHandlers(subscriber, processor, worker, log)
	jobs.downloads = queue.NewBrokerDownloads(publisher)
	relay := queue.NewEventRelay(log, hub, publisher)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			relay.Start()
			return subscriber.Start(cfg.Rabbit.Queue)
		},
		OnStop: func(ctx context.Context) error {
			relay.Stop()
			return subscriber.Close()
		},
	})
	return handlers.NewWebhookHandler(log, sources, queue.NewBrokerInbound(publisher)), nil
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, logger *slog.Logger,
	cfg config.Config, srv *server.Server, moderators *moderator.Service, sweeper *retention.Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := db.Migrate(cfg.Postgres); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if err := moderators.Bootstrap(ctx, cfg.Admin); err != nil {
				return err
			}
			if err := sweeper.Start(); err != nil {
				return err
			}
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := sweeper.Stop(ctx); err != nil {
				logger.Warn("retention stop", slog.Any("error", err))
			}
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

func runMigrate() error {
	cfg, err := provideConfig()
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	if err := db.Migrate(cfg.Postgres); err != nil {
		return err
	}
	logger.L.Info("migrations applied")
	return nil
}
