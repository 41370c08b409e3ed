package app

import (
	"context"
	"fmt"
	"net"
	"os"

	"chat-relay/internal/config"
	"chat-relay/internal/handlers"
	"chat-relay/internal/logging"
	"chat-relay/internal/presence"
	"chat-relay/internal/services"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Module returns the fx module for the relay, composing all providers and lifecycle hooks.
func Module(cfg *config.Config) fx.Option {
	return fx.Module("relay",
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideClock,
			provideHub,
			provideRegistry,
			provideChatService,
			provideSweeper,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

// Run loads configuration and runs the relay until SIGINT/SIGTERM.
func Run() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fx.New(
		Module(cfg),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
	).Run()
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogLevel, cfg.LogFormat)
}

func provideClock() presence.Clock {
	return presence.SystemClock()
}

func provideHub(logger *zap.Logger) *handlers.Hub {
	return handlers.NewHub(logger.Named("hub"))
}

func provideRegistry(cfg *config.Config, clock presence.Clock, logger *zap.Logger) *presence.Registry {
	return presence.NewRegistry(cfg.Presence(), clock, nil, logger.Named("presence"))
}

func provideChatService(registry *presence.Registry, hub *handlers.Hub, clock presence.Clock, logger *zap.Logger) *services.ChatService {
	chat := services.NewChatService(registry, hub, clock, logger.Named("chat"))
	registry.SetNotifier(chat.PublishSessions)
	return chat
}

func provideSweeper(cfg *config.Config, registry *presence.Registry, logger *zap.Logger) *presence.Sweeper {
	return presence.NewSweeper(registry, cfg.SweepInterval.Duration, logger.Named("sweeper"))
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, sweeper *presence.Sweeper, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr())
			if err != nil {
				return fmt.Errorf("listen %s: %w", srv.Addr(), err)
			}
			sweeper.Start(context.Background())

			go func() {
				if err := srv.Serve(ln); err != nil {
					logger.Error("server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sweeper.Stop()
			if err := srv.Stop(ctx); err != nil {
				logger.Warn("shutdown error", zap.Error(err))
			}
			logger.Info("Server shutdown complete")
			_ = logger.Sync()
			return nil
		},
	})
}
