package models

import (
	"encoding/json"
	"time"
)

// Status is the presence of a session as seen by other clients.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

// Session is the server-held record of one connected client.
type Session struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	Status      Status    `json:"status"`
	LastSeen    time.Time `json:"lastSeen"`
	CurrentChat string    `json:"currentChat,omitempty"`
	AvatarColor string    `json:"avatarColor,omitempty"`
}

// LoginRequest is the payload of set_username.
type LoginRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// UnmarshalJSON accepts either {"name","phone"} or a bare name string.
func (r *LoginRequest) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*r = LoginRequest{Name: name}
		return nil
	}
	type plain LoginRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = LoginRequest(p)
	return nil
}
