package bus

import "time"

// Event kinds published by the client.
const (
	KindStoreChanged  = "store.changed"
	KindWriteFailed   = "notify.write_failed"
	KindWriteDone     = "notify.write_confirmed"
	KindStatusChanged = "session.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// StoreChanged is the payload of KindStoreChanged.
type StoreChanged struct {
	Version uint64
	Reason  string
}

// WriteOutcome is the payload of the notify.* events.
type WriteOutcome struct {
	// NotificationID is unique per notification.
	NotificationID  string
	Action          string
	MessageID       string
	ConversationKey string
	Text            string
	Err             error
}
