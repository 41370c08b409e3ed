package handlers

import (
	"fmt"

	"chat-relay/internal/models"
	"chat-relay/internal/services"
	"chat-relay/internal/utils"

	"go.uber.org/zap"
)

// Dispatcher decodes inbound frames and routes them to the chat service.
type Dispatcher struct {
	chat   *services.ChatService
	logger *zap.Logger
}

func NewDispatcher(chat *services.ChatService, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{chat: chat, logger: logger}
}

// HandleMessage processes one text frame from connection connID. Errors are
// logged here; nothing is reported back to the client.
func (d *Dispatcher) HandleMessage(connID string, frame []byte) error {
	err := d.dispatch(connID, frame)
	if err != nil {
		d.logger.Warn("frame ignored", zap.String("session", connID), zap.Error(err))
	}
	return err
}

func (d *Dispatcher) dispatch(connID string, frame []byte) error {
	env, err := utils.DecodeFrame(frame)
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	switch env.Event {
	case models.EventSetUsername:
		var req models.LoginRequest
		if len(env.Data) > 0 {
			if err := utils.SafeJSONParse(env.Data, &req); err != nil {
				return fmt.Errorf("%s payload: %w", env.Event, err)
			}
		}
		d.chat.Login(connID, req)
		return nil

	case models.EventSendMessage:
		var req models.SendMessageRequest
		if err := utils.SafeJSONParse(env.Data, &req); err != nil {
			return fmt.Errorf("%s payload: %w", env.Event, err)
		}
		_, err := d.chat.SendMessage(connID, req)
		return err

	case models.EventTyping:
		var to string
		if err := utils.SafeJSONParse(env.Data, &to); err != nil {
			return fmt.Errorf("%s payload: %w", env.Event, err)
		}
		return d.chat.Typing(connID, to)

	case models.EventSetCurrentChat:
		var chatID string
		if err := utils.SafeJSONParse(env.Data, &chatID); err != nil {
			return fmt.Errorf("%s payload: %w", env.Event, err)
		}
		return d.chat.SetCurrentChat(connID, chatID)

	default:
		return fmt.Errorf("unknown event %q", env.Event)
	}
}
