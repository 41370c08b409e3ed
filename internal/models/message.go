package models

import "strings"

// BroadcastTarget is the reserved recipient meaning every connected session.
const BroadcastTarget = "all"

type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeFile     MessageType = "file"
	TypeLocation MessageType = "location"
)

// Valid reports whether t is one of the known payload kinds.
func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeFile, TypeLocation:
		return true
	}
	return false
}

// Message is relayed between sessions and never stored server-side.
type Message struct {
	ID        string      `json:"id"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	FromName  string      `json:"fromName"`
	FromPhone string      `json:"fromPhone"`
	Type      MessageType `json:"type"`
	Message   string      `json:"message"`
	Timestamp string      `json:"timestamp"`
	Read      bool        `json:"read"`
}

// SendMessageRequest is the client payload of send_message.
type SendMessageRequest struct {
	To      string      `json:"to"`
	Message string      `json:"message"`
	Type    MessageType `json:"type"`
}

// Notification is a transient toast shown by the client.
type Notification struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// TypeForMIME maps an uploaded file's content type to the message type the
// chat event should carry.
func TypeForMIME(contentType string) MessageType {
	if strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return TypeImage
	}
	return TypeFile
}
