package client

import (
	"fmt"
	"strconv"

	"chat-relay/internal/models"
)

const mapsURL = "https://www.google.com/maps?q="

// Rendered is a message laid out for display.
type Rendered struct {
	Sender string
	Body   string
	// Link is the URL a viewer can open: image, download or map. Empty for text.
	Link string
}

// SenderLabel formats the sender line shown above a message.
func SenderLabel(msg models.Message) string {
	if msg.FromName == "" {
		return "Unknown sender"
	}
	if msg.FromPhone == "" {
		return msg.FromName
	}
	return fmt.Sprintf("%s (%s)", msg.FromName, msg.FromPhone)
}

// Render lays out msg according to its type.
func Render(msg models.Message) Rendered {
	r := Rendered{Sender: SenderLabel(msg)}
	switch msg.Type {
	case models.TypeImage:
		r.Body = "[image] " + msg.Message
		r.Link = msg.Message
	case models.TypeFile:
		r.Body = "Download file: " + msg.Message
		r.Link = msg.Message
	case models.TypeLocation:
		loc, err := ParseLocation(msg.Message)
		if err != nil {
			r.Body = "Shared location"
			return r
		}
		r.Link = MapLink(loc)
		r.Body = fmt.Sprintf("View location on map: %s\n%.4f, %.4f", r.Link, loc.Lat, loc.Lng)
	default:
		r.Body = msg.Message
	}
	return r
}

// MapLink points a browser at c on Google Maps.
func MapLink(c Coordinates) string {
	return mapsURL + strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}
