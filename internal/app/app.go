package app

import (
	"context"
	"net"
	"os"

	"chat-relay/internal/config"
	"chat-relay/internal/handlers"
	"chat-relay/internal/presence"
	"chat-relay/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// Server is the HTTP and websocket front of the relay.
type Server struct {
	app    *fiber.App
	addr   string
	logger *zap.Logger
}

func NewServer(cfg *config.Config, hub *handlers.Hub, chat *services.ChatService, registry *presence.Registry, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "chat-relay",
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Output: zap.NewStdLog(logger.Named("http")).Writer(),
		Format: "${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New())

	// Ensure upload dir exists and serve uploaded files
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		logger.Warn("failed to create upload dir", zap.String("dir", cfg.UploadDir), zap.Error(err))
	}
	app.Post("/upload", handlers.UploadHandler(cfg.UploadDir, cfg.BaseURL, logger.Named("upload")))
	app.Static("/uploads", cfg.UploadDir)

	// Health Check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"sessions":    registry.Len(),
			"connections": hub.Count(),
		})
	})

	// WebSocket Route
	wsLogger := logger.Named("ws")
	dispatcher := handlers.NewDispatcher(chat, wsLogger)
	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Get("/ws", handlers.WebSocketHandler(hub, chat, dispatcher, cfg.SendBuffer, wsLogger))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	return &Server{app: app, addr: cfg.Addr(), logger: logger}
}

// App exposes the fiber app, mainly for app.Test in handler tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Addr() string {
	return s.addr
}

// Serve accepts connections on ln and blocks until shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
	return s.app.Listener(ln)
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Gracefully shutting down...")
	return s.app.ShutdownWithContext(ctx)
}
