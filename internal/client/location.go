package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var ErrLocationUnavailable = errors.New("location unavailable")

// Coordinates is the payload of a location message, carried as a JSON string.
type Coordinates struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
}

// EncodeLocation serialises c into the message body of a location message.
func EncodeLocation(c Coordinates) string {
	b, err := json.Marshal(c)
	if err != nil {
		// Only NaN and Inf fail to marshal; Valid rejects both before capture.
		return "{}"
	}
	return string(b)
}

// ParseLocation decodes a location message body.
func ParseLocation(body string) (Coordinates, error) {
	var raw struct {
		Lat      *float64 `json:"lat"`
		Lng      *float64 `json:"lng"`
		Accuracy float64  `json:"accuracy"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Coordinates{}, fmt.Errorf("parse location: %w", err)
	}
	if raw.Lat == nil || raw.Lng == nil {
		return Coordinates{}, errors.New("parse location: missing lat/lng")
	}
	c := Coordinates{Lat: *raw.Lat, Lng: *raw.Lng, Accuracy: raw.Accuracy}
	if !c.Valid() {
		return Coordinates{}, fmt.Errorf("parse location: out of range %v,%v", c.Lat, c.Lng)
	}
	return c, nil
}

// Valid reports whether c lies on the globe.
func (c Coordinates) Valid() bool {
	for _, v := range []float64{c.Lat, c.Lng, c.Accuracy} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Locator captures the device position. Implementations may block.
type Locator interface {
	Locate(ctx context.Context) (Coordinates, error)
}

// StaticLocator reports a fixed position, set from the command line.
// The zero value has no position and always fails.
type StaticLocator struct {
	Position *Coordinates
}

func (l StaticLocator) Locate(ctx context.Context) (Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return Coordinates{}, err
	}
	if l.Position == nil || !l.Position.Valid() {
		return Coordinates{}, ErrLocationUnavailable
	}
	return *l.Position, nil
}
