package antenna

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hotomoe/io/internal/note"
)

// EventChannel is the bus channel antenna lifecycle events travel on.
const EventChannel = "internal"

// EventType discriminates antenna lifecycle events.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event is a decoded antenna lifecycle event. Antenna is set for created and
// updated events, ID for deleted events.
type Event struct {
	Type    EventType
	Antenna *Antenna
	ID      string
}

// ErrWrongChannel is returned by DecodeEvent for envelopes addressed to a
// different channel; callers should skip those silently.
var ErrWrongChannel = errors.New("antenna: envelope for different channel")

type envelope struct {
	Channel string          `json:"channel"`
	Message envelopeMessage `json:"message"`
}

type envelopeMessage struct {
	Type EventType       `json:"type"`
	Body json.RawMessage `json:"body"`
}

// DecodeEvent parses a wire envelope into an Event. Timestamps in the body
// arrive as RFC3339 strings and are parsed on ingestion; joined relations
// are never embedded, so a decoded Antenna carries none. The decoded antenna
// is normalized and ready for matching.
func DecodeEvent(payload []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Event{}, fmt.Errorf("antenna: decode envelope: %w", err)
	}
	if env.Channel != EventChannel {
		return Event{}, ErrWrongChannel
	}
	switch env.Message.Type {
	case EventCreated, EventUpdated:
		var a Antenna
		if err := json.Unmarshal(env.Message.Body, &a); err != nil {
			return Event{}, fmt.Errorf("antenna: decode %s body: %w", env.Message.Type, err)
		}
		if a.ID == "" {
			return Event{}, fmt.Errorf("antenna: %s event without id", env.Message.Type)
		}
		a.Normalize()
		return Event{Type: env.Message.Type, Antenna: &a}, nil
	case EventDeleted:
		var body struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(env.Message.Body, &body); err != nil {
			return Event{}, fmt.Errorf("antenna: decode deleted body: %w", err)
		}
		if body.ID == "" {
			return Event{}, errors.New("antenna: deleted event without id")
		}
		return Event{Type: EventDeleted, ID: body.ID}, nil
	default:
		return Event{}, fmt.Errorf("antenna: unknown event type %q", env.Message.Type)
	}
}

func encodeEvent(typ EventType, body interface{}) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Channel: EventChannel,
		Message: envelopeMessage{Type: typ, Body: raw},
	})
}

// EncodeCreated builds the wire envelope announcing a new antenna.
func EncodeCreated(a *Antenna) ([]byte, error) { return encodeEvent(EventCreated, a) }

// EncodeUpdated builds the wire envelope announcing an antenna change.
func EncodeUpdated(a *Antenna) ([]byte, error) { return encodeEvent(EventUpdated, a) }

// EncodeDeleted builds the wire envelope announcing an antenna removal.
func EncodeDeleted(id string) ([]byte, error) {
	return encodeEvent(EventDeleted, map[string]string{"id": id})
}

// DeliveryChannel names the bus channel delivery notifications for one
// antenna are published on.
func DeliveryChannel(antennaID string) string { return "antenna:" + antennaID }

// EncodeDelivery builds the delivery notification payload carrying the full
// note.
func EncodeDelivery(n *note.Note) ([]byte, error) {
	raw, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type string          `json:"type"`
		Body json.RawMessage `json:"body"`
	}{Type: "note", Body: raw})
}
