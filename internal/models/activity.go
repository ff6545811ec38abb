package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Activity actor types.
const (
	ActorTypeArtist = "artist"
	ActorTypeClient = "client"
	ActorTypeAdmin  = "admin"
	ActorTypeSystem = "system"
)

// Activity actions recorded by the assignment engine.
const (
	ActionOfferCreated    = "offer_created"
	ActionOfferAccepted   = "offer_accepted"
	ActionOfferDeclined   = "offer_declined"
	ActionOfferExpired    = "offer_expired"
	ActionBroadcast       = "broadcast_started"
	ActionEscalatedAdmin  = "escalated_to_admin"
	ActionManualReassign  = "manual_reassign"
	ActionRequeued        = "requeued"
)

// ActivityEntry is one append-only audit row. The engine writes these and
// never reads them back.
type ActivityEntry struct {
	ID             uuid.UUID       `json:"id"`
	TaskID         uuid.UUID       `json:"task_id"`
	ActorID        *uuid.UUID      `json:"actor_id,omitempty"`
	ActorType      string          `json:"actor_type"`
	Action         string          `json:"action"`
	PreviousStatus *string         `json:"previous_status,omitempty"`
	NewStatus      *string         `json:"new_status,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
