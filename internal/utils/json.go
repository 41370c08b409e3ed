package utils

import (
	"encoding/json"
	"errors"

	"chat-relay/internal/models"
)

var ErrEmptyPayload = errors.New("empty payload")

// SafeJSONParse parses JSON, rejecting an empty body instead of leaving v untouched.
func SafeJSONParse(data []byte, v interface{}) error {
	if len(data) == 0 {
		return ErrEmptyPayload
	}
	return json.Unmarshal(data, v)
}

// EncodeFrame marshals an event and its payload into one websocket frame.
func EncodeFrame(event string, payload interface{}) ([]byte, error) {
	env, err := models.NewEnvelope(event, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// DecodeFrame splits a websocket frame into its event name and raw payload.
func DecodeFrame(frame []byte) (models.Envelope, error) {
	var env models.Envelope
	if err := SafeJSONParse(frame, &env); err != nil {
		return models.Envelope{}, err
	}
	if env.Event == "" {
		return models.Envelope{}, errors.New("frame has no event")
	}
	return env, nil
}
