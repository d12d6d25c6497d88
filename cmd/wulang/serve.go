package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/bayy420-999/wulang-ai/internal/attachment"
	"github.com/bayy420-999/wulang-ai/internal/channel/whatsapp"
	"github.com/bayy420-999/wulang-ai/internal/config"
	"github.com/bayy420-999/wulang-ai/internal/conversation"
	"github.com/bayy420-999/wulang-ai/internal/db"
	"github.com/bayy420-999/wulang-ai/internal/genai"
	"github.com/bayy420-999/wulang-ai/internal/logger"
	"github.com/bayy420-999/wulang-ai/internal/pending"
	"github.com/bayy420-999/wulang-ai/internal/pipeline"
	"github.com/bayy420-999/wulang-ai/internal/prompt"
	"github.com/bayy420-999/wulang-ai/internal/retention"
	"github.com/bayy420-999/wulang-ai/internal/user"
)

func runServe() {
	fx.New(
		fx.Provide(
			loadConfig,
			provideLogger,
			provideDBConn,
			provideUserStore,
			provideConversationStore,
			provideAttachmentStore,
			providePendingCache,
			provideBackend,
			provideAssembler,
			providePipeline,
			provideAdapter,
			provideRetention,
		),
		fx.Invoke(
			startRetention,
			startWhatsApp,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.Postgres); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideUserStore(log *slog.Logger, conn *pgxpool.Pool) *user.Store {
	return user.NewStore(log, conn)
}

func provideConversationStore(log *slog.Logger, conn *pgxpool.Pool) *conversation.Store {
	return conversation.NewStore(log, conn)
}

func provideAttachmentStore(log *slog.Logger, conn *pgxpool.Pool) *attachment.Store {
	return attachment.NewStore(log, conn)
}

func providePendingCache(log *slog.Logger, cfg config.Config) *pending.Cache {
	return pending.NewCache(log, cfg.Chat.PendingTTL())
}

func provideBackend(log *slog.Logger, cfg config.Config) *genai.Client {
	return genai.NewClient(log, cfg.Gemini)
}

func provideAssembler(log *slog.Logger, cfg config.Config) *prompt.Assembler {
	return prompt.NewAssembler(log, cfg.Chat.BotName, cfg.Chat.HistoryLimit)
}

func providePipeline(
	log *slog.Logger,
	cfg config.Config,
	users *user.Store,
	conversations *conversation.Store,
	attachments *attachment.Store,
	cache *pending.Cache,
	backend *genai.Client,
	assembler *prompt.Assembler,
) *pipeline.Pipeline {
	return pipeline.New(log, users, conversations, attachments, cache, backend, assembler, cfg.Chat)
}

func provideAdapter(log *slog.Logger, cfg config.Config, pipe *pipeline.Pipeline) (*whatsapp.Adapter, error) {
	return whatsapp.New(log, cfg.WhatsApp, pipe)
}

func provideRetention(log *slog.Logger, cfg config.Config, conversations *conversation.Store, cache *pending.Cache) (*retention.Runner, error) {
	return retention.NewRunner(log, conversations, cache, cfg.Chat)
}

func startRetention(lc fx.Lifecycle, runner *retention.Runner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { runner.Start(); return nil },
		OnStop:  func(ctx context.Context) error { runner.Stop(); return nil },
	})
}

func startWhatsApp(lc fx.Lifecycle, adapter *whatsapp.Adapter) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return adapter.Start(context.Background()) },
		OnStop:  func(ctx context.Context) error { return adapter.Stop() },
	})
}
