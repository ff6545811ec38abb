package models

import (
	"time"

	"github.com/google/uuid"
)

// Task status enums.
const (
	TaskStatusPending      = "pending"
	TaskStatusOffered      = "offered"
	TaskStatusAssigned     = "assigned"
	TaskStatusInProgress   = "in_progress"
	TaskStatusCompleted    = "completed"
	TaskStatusUnassignable = "unassignable"
	TaskStatusCancelled    = "cancelled"
)

// Task complexity tiers.
const (
	ComplexityBasic        = "basic"
	ComplexityIntermediate = "intermediate"
	ComplexityAdvanced     = "advanced"
	ComplexityExpert       = "expert"
)

// Task urgency tiers; they select the offer acceptance window.
const (
	UrgencyStandard = "standard"
	UrgencyRush     = "rush"
	UrgencyUrgent   = "urgent"
)

// Escalation levels. Levels 1 and 2 are one-at-a-time direct offers,
// level 3 broadcasts to a wider pool, level 4 hands the task to admins.
const (
	EscalationLevelBestFit   = 1
	EscalationLevelRelaxed   = 2
	EscalationLevelBroadcast = 3
	EscalationLevelAdmin     = 4
)

type Task struct {
	ID                   uuid.UUID  `json:"id"`
	ClientID             uuid.UUID  `json:"client_id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Category             string     `json:"category"`
	RequiredSkills       []string   `json:"required_skills"`
	Complexity           string     `json:"complexity"`
	Urgency              string     `json:"urgency"`
	ClientTimezoneOffset int        `json:"client_timezone_offset"`
	Deadline             *time.Time `json:"deadline,omitempty"`
	Status               string     `json:"status"`
	OfferedTo            *uuid.UUID `json:"offered_to,omitempty"`
	OfferExpiresAt       *time.Time `json:"offer_expires_at,omitempty"`
	EscalationLevel      int        `json:"escalation_level"`
	FreelancerID         *uuid.UUID `json:"freelancer_id,omitempty"`
	AssignedAt           *time.Time `json:"assigned_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

var validComplexities = map[string]struct{}{
	ComplexityBasic:        {},
	ComplexityIntermediate: {},
	ComplexityAdvanced:     {},
	ComplexityExpert:       {},
}

var validUrgencies = map[string]struct{}{
	UrgencyStandard: {},
	UrgencyRush:     {},
	UrgencyUrgent:   {},
}

// ValidComplexity reports whether c is a known complexity tier.
func ValidComplexity(c string) bool {
	_, ok := validComplexities[c]
	return ok
}

// ValidUrgency reports whether u is a known urgency tier.
func ValidUrgency(u string) bool {
	_, ok := validUrgencies[u]
	return ok
}
