package push

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matheus3301/wachat/internal/identity"
	"github.com/matheus3301/wachat/internal/message"
)

// Kind names a push event.
type Kind string

const (
	KindNewMessage    Kind = "new-message"
	KindStatusUpdate  Kind = "status-update"
	KindDeleteMessage Kind = "delete-message"

	// Synthesized by the client around each socket session.
	KindConnected    Kind = "connected"
	KindDisconnected Kind = "disconnected"
)

// ErrUnknownEvent is returned by Decode for event names it does not handle.
var ErrUnknownEvent = errors.New("unknown push event")

// Event is one decoded push event.
type Event struct {
	Kind Kind
	// Record is set for new-message.
	Record message.Record
	// ID is the message key for status-update and delete-message.
	ID     string
	Status message.Status
	// Err is the cause of a disconnected event, if any.
	Err error
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Decode parses one text frame.
func Decode(frame []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Event{}, fmt.Errorf("decode envelope: %w", err)
	}
	kind := Kind(env.Event)
	switch kind {
	case KindNewMessage, KindStatusUpdate, KindDeleteMessage:
	default:
		return Event{Kind: kind}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	var rec message.Record
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		return Event{}, fmt.Errorf("decode %s data: %w", kind, err)
	}
	evt := Event{Kind: kind}
	switch kind {
	case KindNewMessage:
		evt.Record = rec
	case KindStatusUpdate:
		evt.ID = identity.Key(rec)
		evt.Status = message.Status(rec.Status)
	case KindDeleteMessage:
		evt.ID = identity.Key(rec)
	}
	return evt, nil
}

// Encode renders a record event as a text frame. Test servers and tooling
// use it to speak the same format.
func Encode(kind Kind, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: string(kind), Data: raw})
}
