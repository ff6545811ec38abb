package models

import (
	"time"

	"github.com/google/uuid"
)

// Offer response enums. An offer is mutated exactly once: pending → terminal.
const (
	OfferResponsePending  = "pending"
	OfferResponseAccepted = "accepted"
	OfferResponseDeclined = "declined"
	OfferResponseExpired  = "expired"
)

// Decline reason enums.
const (
	DeclineReasonTooBusy   = "too_busy"
	DeclineReasonNotMyWork = "not_my_style"
	DeclineReasonLowBudget = "low_budget"
	DeclineReasonTimeline  = "timeline"
	DeclineReasonOther     = "other"
	DeclineReasonExpired   = "expired"
)

// DimensionScore records one scoring dimension's contribution to a match score.
type DimensionScore struct {
	Raw      float64 `json:"raw"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
}

// ScoreBreakdown is the per-dimension audit trail for one (task, artist) score.
type ScoreBreakdown struct {
	SkillMatch         DimensionScore `json:"skill_match"`
	TimezoneFit        DimensionScore `json:"timezone_fit"`
	ExperienceMatch    DimensionScore `json:"experience_match"`
	WorkloadBalance    DimensionScore `json:"workload_balance"`
	PerformanceHistory DimensionScore `json:"performance_history"`
	Bonus              float64        `json:"bonus"`
}

// Offer is one time-bounded proposal of a task to an artist. Rows are
// append-only; the full set per task forms the previously-offered exclusion list.
type Offer struct {
	ID              uuid.UUID      `json:"id"`
	TaskID          uuid.UUID      `json:"task_id"`
	ArtistID        uuid.UUID      `json:"artist_id"`
	Score           float64        `json:"score"`
	Breakdown       ScoreBreakdown `json:"breakdown"`
	EscalationLevel int            `json:"escalation_level"`
	ExpiresAt       time.Time      `json:"expires_at"`
	Response        string         `json:"response"`
	DeclineReason   *string        `json:"decline_reason,omitempty"`
	DeclineNote     *string        `json:"decline_note,omitempty"`
	RespondedAt     *time.Time     `json:"responded_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

var validDeclineReasons = map[string]struct{}{
	DeclineReasonTooBusy:   {},
	DeclineReasonNotMyWork: {},
	DeclineReasonLowBudget: {},
	DeclineReasonTimeline:  {},
	DeclineReasonOther:     {},
	DeclineReasonExpired:   {},
}

// ValidDeclineReason reports whether r is a known decline reason.
func ValidDeclineReason(r string) bool {
	_, ok := validDeclineReasons[r]
	return ok
}
