package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventUserCreated EventType = "user.created"
	EventUserUpdated EventType = "user.updated"
	EventUserDeleted EventType = "user.deleted"
)

// LifecycleEvent is an immutable fact about an identity state change. The
// event type doubles as the routing key on the wire.
type LifecycleEvent struct {
	ID        uuid.UUID       `json:"eventId"`
	Type      EventType       `json:"eventType"`
	SubjectID string          `json:"subjectId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	EmittedAt time.Time       `json:"emittedAt"`
}

func NewLifecycleEvent(eventType EventType, subjectID string, payload any, now time.Time) (LifecycleEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return LifecycleEvent{}, err
	}
	return LifecycleEvent{
		ID:        uuid.New(),
		Type:      eventType,
		SubjectID: subjectID,
		Payload:   raw,
		EmittedAt: now.UTC(),
	}, nil
}

// UserDeletedPayload mirrors the {id} body the identity service has always sent.
type UserDeletedPayload struct {
	ID string `json:"id"`
}
