package handlers

import (
	"time"

	"chat-relay/internal/models"
	"chat-relay/internal/services"
	"chat-relay/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WebSocketHandler serves one chat connection: it assigns the session id,
// pumps outbound frames from the hub and feeds inbound frames to the dispatcher.
func WebSocketHandler(hub *Hub, chat *services.ChatService, dispatcher *Dispatcher, bufSize int, logger *zap.Logger) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		connID := uuid.New().String()
		log := logger.With(zap.String("session", connID))

		client := NewClient(connID, bufSize)
		hub.Register(client)
		log.Info("connection opened", zap.String("remote", c.RemoteAddr().String()))

		done := make(chan struct{})
		go func() {
			defer close(done)
			client.WritePump(c, log)
		}()

		defer func() {
			hub.Unregister(connID)
			chat.Disconnect(connID)
			<-done
			c.Close()
			log.Info("connection closed")
		}()

		if frame, err := utils.EncodeFrame(models.EventConnected, models.Connected{ID: connID}); err == nil {
			client.enqueue(frame)
		}

		_ = c.SetReadDeadline(time.Now().Add(pongWait))
		c.SetPongHandler(func(string) error {
			return c.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			msgType, msg, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
					log.Warn("read error", zap.Error(err))
				}
				break
			}
			_ = c.SetReadDeadline(time.Now().Add(pongWait))
			if msgType != websocket.TextMessage {
				continue
			}
			_ = dispatcher.HandleMessage(connID, msg)
		}
	})
}

// WSUpgradeMiddleware rejects plain HTTP requests on the websocket route.
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
