package models

import "encoding/json"

// Event names carried in Envelope.Event.
const (
	EventConnected      = "connected"
	EventSetUsername    = "set_username"
	EventSendMessage    = "send_message"
	EventTyping         = "typing"
	EventSetCurrentChat = "set_current_chat"
	EventUsersUpdated   = "users_updated"
	EventNewMessage     = "new_message"
	EventMessageRead    = "message_read"
	EventUserTyping     = "user_typing"
	EventNotification   = "notification"
)

// Envelope is a single websocket frame: a named event and its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes payload under the given event name.
func NewEnvelope(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

// Connected greets a new connection with its transport-assigned id.
type Connected struct {
	ID string `json:"id"`
}

type UploadResponse struct {
	URL  string      `json:"url"`
	Type MessageType `json:"type"`
}
