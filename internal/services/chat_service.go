package services

import (
	"errors"
	"unicode/utf8"

	"chat-relay/internal/models"
	"chat-relay/internal/presence"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotRegistered = errors.New("sender not registered")
	ErrNoRecipient   = errors.New("recipient missing")
	ErrInvalidType   = errors.New("invalid message type")
)

const previewLen = 40

// Broadcaster delivers events to live connections by session id.
type Broadcaster interface {
	SendTo(id, event string, payload any) bool
	Broadcast(event string, payload any)
	IsConnected(id string) bool
}

// ChatService routes client events through the presence registry.
type ChatService struct {
	registry *presence.Registry
	out      Broadcaster
	clock    presence.Clock
	logger   *zap.Logger
}

func NewChatService(registry *presence.Registry, out Broadcaster, clock presence.Clock, logger *zap.Logger) *ChatService {
	if clock == nil {
		clock = presence.SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		registry: registry,
		out:      out,
		clock:    clock,
		logger:   logger,
	}
}

// PublishSessions pushes a full session snapshot to every connection.
// It is installed as the registry's notifier.
func (s *ChatService) PublishSessions(snapshot []models.Session) {
	if snapshot == nil {
		snapshot = []models.Session{}
	}
	s.out.Broadcast(models.EventUsersUpdated, snapshot)
}

func (s *ChatService) Login(connID string, req models.LoginRequest) models.Session {
	session := s.registry.Login(connID, req.Name, req.Phone)
	s.logger.Info("session logged in",
		zap.String("session", connID),
		zap.String("name", session.Name),
	)
	return session
}

// SendMessage stamps sender metadata onto req and routes it. A missing
// sender drops the message; an unreachable recipient is not an error.
func (s *ChatService) SendMessage(connID string, req models.SendMessageRequest) (*models.Message, error) {
	sender, ok := s.registry.Get(connID)
	if !ok {
		s.logger.Warn("message dropped: sender not registered", zap.String("session", connID))
		return nil, ErrNotRegistered
	}
	if req.To == "" {
		s.logger.Warn("message dropped: no recipient", zap.String("session", connID))
		return nil, ErrNoRecipient
	}
	if req.Type == "" {
		req.Type = models.TypeText
	}
	if !req.Type.Valid() {
		s.logger.Warn("message dropped: invalid type",
			zap.String("session", connID),
			zap.String("type", string(req.Type)),
		)
		return nil, ErrInvalidType
	}
	s.registry.Touch(connID)

	msg := &models.Message{
		ID:        uuid.NewString(),
		From:      connID,
		To:        req.To,
		FromName:  sender.Name,
		FromPhone: sender.Phone,
		Type:      req.Type,
		Message:   req.Message,
		Timestamp: s.clock.Now().Format("15:04"),
	}

	if req.To == models.BroadcastTarget {
		s.out.Broadcast(models.EventNewMessage, msg)
		return msg, nil
	}
	if req.To == connID {
		// A note to self is only echoed: no delivery, receipt or notification.
		s.out.SendTo(connID, models.EventNewMessage, msg)
		return msg, nil
	}

	recipient, registered := s.registry.Get(req.To)
	reachable := registered && s.out.IsConnected(req.To)
	if reachable && recipient.CurrentChat == connID {
		msg.Read = true
	}

	if reachable {
		s.out.SendTo(req.To, models.EventNewMessage, msg)
	} else {
		s.logger.Info("message not delivered: recipient unreachable",
			zap.String("session", connID),
			zap.String("to", req.To),
			zap.Bool("registered", registered),
		)
	}
	s.out.SendTo(connID, models.EventNewMessage, msg)

	switch {
	case !reachable:
	case msg.Read:
		s.out.SendTo(connID, models.EventMessageRead, msg)
	default:
		s.out.SendTo(req.To, models.EventNotification, models.Notification{
			From:    sender.Name,
			Message: preview(msg),
		})
	}
	return msg, nil
}

// Typing forwards a transient typing notice to the addressed session.
func (s *ChatService) Typing(connID, to string) error {
	if _, ok := s.registry.Get(connID); !ok {
		s.logger.Warn("typing dropped: sender not registered", zap.String("session", connID))
		return ErrNotRegistered
	}
	if to == "" {
		return ErrNoRecipient
	}
	s.registry.Touch(connID)
	if to == connID {
		return nil
	}
	if !s.out.SendTo(to, models.EventUserTyping, connID) {
		s.logger.Debug("typing not delivered: recipient unreachable",
			zap.String("session", connID),
			zap.String("to", to),
		)
	}
	return nil
}

func (s *ChatService) SetCurrentChat(connID, chatID string) error {
	if !s.registry.SetCurrentChat(connID, chatID) {
		s.logger.Warn("current chat ignored: session not active", zap.String("session", connID))
		return ErrNotRegistered
	}
	return nil
}

func (s *ChatService) Disconnect(connID string) {
	if s.registry.Disconnect(connID) {
		s.logger.Info("session disconnected", zap.String("session", connID))
	}
}

func preview(msg *models.Message) string {
	switch msg.Type {
	case models.TypeImage:
		return "Sent an image"
	case models.TypeFile:
		return "Sent a file"
	case models.TypeLocation:
		return "Shared a location"
	}
	if utf8.RuneCountInString(msg.Message) <= previewLen {
		return msg.Message
	}
	runes := []rune(msg.Message)
	return string(runes[:previewLen]) + "…"
}
