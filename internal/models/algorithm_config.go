package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// weightSumTolerance is the allowed deviation when checking that the five
// dimension weights sum to 100.
const weightSumTolerance = 0.01

// Weights is the scoring weight vector. Values are percentage points and
// must sum to 100 within tolerance.
type Weights struct {
	SkillMatch         float64 `json:"skill_match"`
	TimezoneFit        float64 `json:"timezone_fit"`
	ExperienceMatch    float64 `json:"experience_match"`
	WorkloadBalance    float64 `json:"workload_balance"`
	PerformanceHistory float64 `json:"performance_history"`
}

// Sum returns the total of all dimension weights.
func (w Weights) Sum() float64 {
	return w.SkillMatch + w.TimezoneFit + w.ExperienceMatch + w.WorkloadBalance + w.PerformanceHistory
}

// AcceptanceWindows holds the offer validity window per task urgency, in minutes.
type AcceptanceWindows struct {
	StandardMinutes int `json:"standard_minutes"`
	RushMinutes     int `json:"rush_minutes"`
	UrgentMinutes   int `json:"urgent_minutes"`
}

// EscalationSettings governs how the ladder advances.
type EscalationSettings struct {
	Level1MaxOffers        int `json:"level1_max_offers"`
	Level2MaxOffers        int `json:"level2_max_offers"`
	BroadcastFanout        int `json:"broadcast_fanout"`
	BroadcastWindowMinutes int `json:"broadcast_window_minutes"`
}

// WorkloadSettings tunes the workload-balance dimension and the hard cap
// exclusion.
type WorkloadSettings struct {
	PreferredMaxActive int `json:"preferred_max_active"`
	HardMaxActive      int `json:"hard_max_active"`
}

// ExclusionRules are pre-filters applied before scoring.
type ExclusionRules struct {
	ExcludeSuspended   bool `json:"exclude_suspended"`
	ExcludeAway        bool `json:"exclude_away"`
	SameClientCooldown bool `json:"same_client_cooldown"`
}

// BonusModifiers are flat score additions applied after the weighted sum.
type BonusModifiers struct {
	SpecialtyCategory float64 `json:"specialty_category"`
	RushAvailability  float64 `json:"rush_availability"`
}

// AlgorithmConfig is one version of the scoring/escalation policy. Exactly one
// version is active at a time; the active version cannot be edited in place.
type AlgorithmConfig struct {
	ID               uuid.UUID          `json:"id"`
	Version          int                `json:"version"`
	IsActive         bool               `json:"is_active"`
	Weights          Weights            `json:"weights"`
	Windows          AcceptanceWindows  `json:"acceptance_windows"`
	Escalation       EscalationSettings `json:"escalation"`
	ExperienceMatrix ExperienceMatrix   `json:"experience_matrix"`
	Workload         WorkloadSettings   `json:"workload"`
	Exclusions       ExclusionRules     `json:"exclusions"`
	Bonuses          BonusModifiers     `json:"bonuses"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// ExperienceMatrix maps task complexity → artist experience level → fit score
// in [0,1]. Missing entries score neutral.
type ExperienceMatrix map[string]map[string]float64

// ExperienceFit looks up the fit score for a complexity/level pair, returning
// 0.5 (neutral) when the matrix has no entry.
func (m ExperienceMatrix) ExperienceFit(complexity, level string) float64 {
	row, ok := m[complexity]
	if !ok {
		return 0.5
	}
	v, ok := row[level]
	if !ok {
		return 0.5
	}
	return v
}

// AcceptanceWindow returns the offer validity window for the given urgency.
func (c *AlgorithmConfig) AcceptanceWindow(urgency string) time.Duration {
	switch urgency {
	case UrgencyUrgent:
		return time.Duration(c.Windows.UrgentMinutes) * time.Minute
	case UrgencyRush:
		return time.Duration(c.Windows.RushMinutes) * time.Minute
	default:
		return time.Duration(c.Windows.StandardMinutes) * time.Minute
	}
}

// BroadcastWindow returns how long level-3 broadcast offers stay open.
func (c *AlgorithmConfig) BroadcastWindow() time.Duration {
	return time.Duration(c.Escalation.BroadcastWindowMinutes) * time.Minute
}

// MaxOffersAtLevel returns the per-level offer cap before escalating.
// Level 3 has no cap (the broadcast window bounds it instead).
func (c *AlgorithmConfig) MaxOffersAtLevel(level int) int {
	switch level {
	case EscalationLevelBestFit:
		return c.Escalation.Level1MaxOffers
	case EscalationLevelRelaxed:
		return c.Escalation.Level2MaxOffers
	default:
		return math.MaxInt
	}
}

// SumValid reports whether the weight vector sums to 100 within
// tolerance. Enforced at configuration-write time, not at scoring time.
func (w Weights) SumValid() bool {
	return math.Abs(w.Sum()-100) <= weightSumTolerance
}
