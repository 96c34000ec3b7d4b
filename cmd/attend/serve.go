package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/attendhq/attend/internal/branch"
	"github.com/attendhq/attend/internal/channel/wsbridge"
	"github.com/attendhq/attend/internal/config"
	"github.com/attendhq/attend/internal/conversation"
	"github.com/attendhq/attend/internal/db"
	"github.com/attendhq/attend/internal/dedup"
	"github.com/attendhq/attend/internal/handlers"
	"github.com/attendhq/attend/internal/history"
	"github.com/attendhq/attend/internal/inbound"
	"github.com/attendhq/attend/internal/llm"
	"github.com/attendhq/attend/internal/logger"
	"github.com/attendhq/attend/internal/maintenance"
	"github.com/attendhq/attend/internal/media"
	"github.com/attendhq/attend/internal/reservation"
	"github.com/attendhq/attend/internal/server"
	"github.com/attendhq/attend/internal/session"
	"github.com/attendhq/attend/internal/speech"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideBranchService,
			provideHistoryService,
			provideLLMClient,
			provideNormalizer,
			provideSynthesizer,
			provideDispatcher,
			provideDeduplicator,
			provideAssembler,
			provideReservationFlow,
			provideProcessor,
			provideSessionManager,
			provideMaintenanceRunner,
			providePingHandler,
			provideAuthHandler,
			provideBranchHandler,
			provideSessionHandler,
			provideServer,
		),
		fx.Invoke(
			startMaintenance,
			startSessionManager,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
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

func provideBranchService(log *slog.Logger, conn *pgxpool.Pool) *branch.Service {
	return branch.NewService(log, conn)
}

func provideHistoryService(log *slog.Logger, conn *pgxpool.Pool) *history.Service {
	return history.NewService(log, conn)
}

func provideLLMClient(log *slog.Logger, cfg config.Config) *llm.Client {
	return llm.NewClient(log, cfg.LLM)
}

func provideNormalizer(log *slog.Logger, cfg config.Config) *media.Normalizer {
	transcriber := media.NewWhisperClient(cfg.Transcription)
	transcoder := media.NewFFmpegTranscoder(cfg.Transcription.FFmpegPath, os.TempDir())
	return media.NewNormalizer(log, transcriber, transcoder)
}

func provideSynthesizer(log *slog.Logger, cfg config.Config) *speech.GoogleSynthesizer {
	return speech.NewGoogleSynthesizer(log, cfg.Speech)
}

func provideDispatcher(log *slog.Logger, synth *speech.GoogleSynthesizer, cfg config.Config) *inbound.Dispatcher {
	return inbound.NewDispatcher(log, synth, cfg.Speech)
}

func provideDeduplicator(cfg config.Config) *dedup.Deduplicator {
	window := time.Duration(cfg.Channel.DedupWindowMin) * time.Minute
	if window <= 0 {
		window = dedup.DefaultWindow
	}
	return dedup.New(window)
}

func provideAssembler(log *slog.Logger, turns *history.Service) *conversation.Assembler {
	return conversation.NewAssembler(log, turns)
}

func provideReservationFlow(log *slog.Logger, client *llm.Client, conn *pgxpool.Pool) *reservation.Flow {
	return reservation.NewFlow(log, client, reservation.NewPGStore(log, conn))
}

func provideProcessor(
	log *slog.Logger,
	deduper *dedup.Deduplicator,
	branches *branch.Service,
	normalizer *media.Normalizer,
	turns *history.Service,
	assembler *conversation.Assembler,
	client *llm.Client,
	flow *reservation.Flow,
	dispatcher *inbound.Dispatcher,
) *inbound.Processor {
	return inbound.NewProcessor(log, deduper, branches, normalizer, turns, assembler, client, flow, dispatcher)
}

func provideSessionManager(log *slog.Logger, cfg config.Config, processor *inbound.Processor) *session.Manager {
	dialer := wsbridge.NewDialer(log, cfg.Channel)
	return session.NewManager(log, dialer, processor, cfg.Channel)
}

func provideMaintenanceRunner(log *slog.Logger, deduper *dedup.Deduplicator, flow *reservation.Flow, cfg config.Config) (*maintenance.Runner, error) {
	return maintenance.NewRunner(log, deduper, flow, cfg.Reservation)
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log)
}

func provideAuthHandler(log *slog.Logger, cfg config.Config) *handlers.AuthHandler {
	return handlers.NewAuthHandler(log, cfg)
}

func provideBranchHandler(log *slog.Logger, branches *branch.Service, turns *history.Service, mgr *session.Manager) *handlers.BranchHandler {
	return handlers.NewBranchHandler(log, branches, turns, mgr)
}

func provideSessionHandler(log *slog.Logger, mgr *session.Manager, branches *branch.Service) *handlers.SessionHandler {
	return handlers.NewSessionHandler(log, mgr, branches)
}

func provideServer(log *slog.Logger, cfg config.Config, ping *handlers.PingHandler, auth *handlers.AuthHandler, branchHandler *handlers.BranchHandler, sessionHandler *handlers.SessionHandler) *server.Server {
	return server.NewServer(log, cfg, ping, auth, branchHandler, sessionHandler)
}

func startMaintenance(lc fx.Lifecycle, runner *maintenance.Runner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { runner.Start(); return nil },
		OnStop:  func(ctx context.Context) error { runner.Stop(); return nil },
	})
}

func startSessionManager(lc fx.Lifecycle, mgr *session.Manager) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error { mgr.Shutdown(ctx); return nil },
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
