// Package message defines the chat message model shared by the transports,
// the reconciliation store and the projection.
package message

import (
	"strings"

	"github.com/matheus3301/wachat/internal/timestamp"
)

// Status is the delivery state of a message.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// ContentType is the payload kind of a message. Unknown values pass through.
type ContentType string

const (
	TypeText     ContentType = "text"
	TypeImage    ContentType = "image"
	TypeVideo    ContentType = "video"
	TypeDocument ContentType = "document"
)

// Source identifies where a message value came from.
type Source string

const (
	SourceBulk  Source = "bulk"
	SourcePush  Source = "push"
	SourceLocal Source = "local"
)

// Message is a reconciled message as held by the store.
type Message struct {
	ID                string
	ConversationKey   string
	WaID              string
	From              string
	To                string
	Body              string
	ContentType       ContentType
	Timestamp         timestamp.Millis
	RawTimestamp      any
	Status            Status
	SenderDisplayName string

	// MongoID keeps the secondary identifier so it survives a round trip.
	MongoID any
	// Extra holds server fields the client does not interpret.
	Extra map[string]any

	Source Source
}

// FromRecord builds a Message from a wire record and its identity key.
func FromRecord(rec Record, key string, src Source) Message {
	ct := ContentType(strings.TrimSpace(rec.Type))
	if ct == "" {
		ct = TypeText
	}
	return Message{
		ID:                key,
		ConversationKey:   rec.ConversationKey(),
		WaID:              rec.WaID,
		From:              rec.From,
		To:                rec.To,
		Body:              rec.Message,
		ContentType:       ct,
		Timestamp:         timestamp.Normalize(rec.Timestamp),
		RawTimestamp:      cloneValue(rec.Timestamp),
		Status:            Status(rec.Status),
		SenderDisplayName: strings.TrimSpace(rec.Name),
		MongoID:           cloneValue(rec.MongoID),
		Extra:             cloneMap(rec.Extra),
		Source:            src,
	}
}

// Record converts the message back to its wire shape.
func (m Message) Record() Record {
	rec := Record{
		ID:        m.ID,
		MongoID:   cloneValue(m.MongoID),
		WaID:      m.WaID,
		From:      m.From,
		To:        m.To,
		Message:   m.Body,
		Type:      string(m.ContentType),
		Timestamp: cloneValue(m.RawTimestamp),
		Status:    string(m.Status),
		Name:      m.SenderDisplayName,
		Extra:     cloneMap(m.Extra),
	}
	return rec
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	c := m
	c.RawTimestamp = cloneValue(m.RawTimestamp)
	c.MongoID = cloneValue(m.MongoID)
	c.Extra = cloneMap(m.Extra)
	return c
}

// IsOwn reports whether the message was sent by the given platform identity.
func (m Message) IsOwn(platformID string) bool {
	return platformID != "" && m.From == platformID
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
