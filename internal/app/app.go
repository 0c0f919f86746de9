package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"newsdesk/internal/config"
	"newsdesk/internal/gateway"
	"newsdesk/internal/infrastructure/feed"
	"newsdesk/internal/infrastructure/llm"
	"newsdesk/internal/infrastructure/scheduler"
	"newsdesk/internal/infrastructure/storage"
	"newsdesk/internal/infrastructure/telegram"
	"newsdesk/internal/logging"
	"newsdesk/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	return &Application{cfg: cfg, logger: baseLogger}
}

// Run executes one of the application modes: "digest" and "stream" run the
// corresponding pipeline once, "bot" starts the subscriber conversation
// loop, "watch" re-runs both pipelines periodically.
func (a *Application) Run(ctx context.Context, mode string) error {
	store, err := storage.Open(ctx, a.cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer store.Close()

	gw := gateway.New(gateway.Deps{
		Client: llm.NewClient(a.cfg.OpenAI),
		Logger: a.logger.With("component", "gateway"),
	})

	model := a.cfg.OpenAI.Model
	messenger := telegram.NewMessenger(a.cfg.Telegram.BotToken, "")

	factChecker := usecase.NewFactChecker(store, gw, model, a.logger.With("component", "factcheck"))

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Ingestor: usecase.NewIngestor(usecase.IngestorDeps{
			Store:   store,
			Fetcher: feed.NewFetcher(nil),
			Sources: a.cfg.Sources,
			Logger:  a.logger.With("component", "ingest"),
		}),
		Summarizer:  usecase.NewSummarizer(store, gw, model, a.logger.With("component", "summarize")),
		FactChecker: factChecker,
		Commentator: usecase.NewCommentator(store, gw, model, a.logger.With("component", "commentary")),
		Formatter: usecase.NewFormatter(usecase.FormatterDeps{
			Store:     store,
			OutputDir: a.cfg.Output.Dir,
			PublicDir: a.cfg.Output.PublicDir,
			Logger:    a.logger.With("component", "format"),
		}),
		Publisher: usecase.NewPublisher(usecase.PublisherDeps{
			Store:     store,
			Messenger: messenger,
			Logger:    a.logger.With("component", "publish"),
		}),
		Streamer: usecase.NewStreamer(usecase.StreamerDeps{
			Store:     store,
			Messenger: messenger,
			ChannelID: a.cfg.Telegram.StreamChannelID,
			Logger:    a.logger.With("component", "stream"),
		}),
		Gateway: gw,
		Logger:  a.logger.With("component", "orchestrator"),
	})

	switch mode {
	case "digest":
		return orchestrator.RunDigest(ctx)

	case "stream":
		return orchestrator.RunStream(ctx)

	case "bot":
		bot := telegram.NewBot(telegram.BotDeps{
			Token:    a.cfg.Telegram.BotToken,
			Store:    store,
			Sources:  usecase.NewSourceManager(store, a.logger.With("component", "sources")),
			Verifier: factChecker,
			Logger:   a.logger.With("component", "bot"),
		})
		return bot.Run(ctx)

	case "watch":
		return a.watch(ctx, orchestrator)

	default:
		return fmt.Errorf("unknown mode %q (want digest, stream, bot, or watch)", mode)
	}
}

// watch keeps both pipelines running on their configured intervals. A
// shared gate guarantees the two never overlap against the same store.
func (a *Application) watch(ctx context.Context, orchestrator *usecase.Orchestrator) error {
	gate := new(atomic.Bool)

	digest := usecase.NewRunner(usecase.RunnerDeps{
		Driver: scheduler.NewTickerScheduler(a.cfg.Scheduler.DigestInterval),
		Job:    orchestrator.RunDigest,
		Logger: a.logger.With("component", "runner.digest"),
		Gate:   gate,
	})
	stream := usecase.NewRunner(usecase.RunnerDeps{
		Driver: scheduler.NewTickerScheduler(a.cfg.Scheduler.StreamInterval),
		Job:    orchestrator.RunStream,
		Logger: a.logger.With("component", "runner.stream"),
		Gate:   gate,
	})

	if err := digest.Start(ctx); err != nil {
		return fmt.Errorf("start digest runner: %w", err)
	}
	if err := stream.Start(ctx); err != nil {
		_ = digest.Stop(ctx)
		return fmt.Errorf("start stream runner: %w", err)
	}

	<-ctx.Done()

	if err := digest.Stop(context.Background()); err != nil {
		a.logger.Warn("stop digest runner", "error", err)
	}
	if err := stream.Stop(context.Background()); err != nil {
		a.logger.Warn("stop stream runner", "error", err)
	}
	return nil
}
