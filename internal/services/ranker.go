package services

import (
	"context"
	"sort"

	"github.com/pixelforge/backend/internal/models"
)

// ArtistRoster is the minimal artist directory interface required for ranking.
type ArtistRoster interface {
	FindAvailable(ctx context.Context) ([]*models.Artist, error)
}

// Candidate is one ranked (artist, score) pair with its audit breakdown.
type Candidate struct {
	Artist    *models.Artist
	Score     float64
	Breakdown models.ScoreBreakdown
}

// Ranker scores eligible artists for a task under the active configuration.
// It is a pure computation over the roster snapshot; all persistence-side
// filtering happens in the repository query.
type Ranker struct {
	Roster ArtistRoster
}

// NewRanker returns a new Ranker.
func NewRanker(roster ArtistRoster) *Ranker {
	return &Ranker{Roster: roster}
}

// Rank returns candidates ordered best-first for the task at the given
// escalation level. An empty pool yields an empty slice and nil error; the
// caller interprets that as "no candidates" and escalates.
func (r *Ranker) Rank(ctx context.Context, task *models.Task, level int, cfg *models.AlgorithmConfig) ([]Candidate, error) {
	artists, err := r.Roster.FindAvailable(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, a := range artists {
		if excluded(a, task, cfg) {
			continue
		}
		coverage := skillCoverage(task.RequiredSkills, a)
		if !eligibleAtLevel(coverage, level) {
			continue
		}
		score, breakdown := scoreArtist(a, task, coverage, cfg)
		candidates = append(candidates, Candidate{Artist: a, Score: score, Breakdown: breakdown})
	}

	// Descending by score; ties broken by lower workload then artist ID so
	// repeated rankings of the same roster are deterministic.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].Artist.ActiveTaskCount != candidates[j].Artist.ActiveTaskCount {
			return candidates[i].Artist.ActiveTaskCount < candidates[j].Artist.ActiveTaskCount
		}
		return candidates[i].Artist.ID.String() < candidates[j].Artist.ID.String()
	})
	return candidates, nil
}

// excluded applies the configured pre-filters.
func excluded(a *models.Artist, task *models.Task, cfg *models.AlgorithmConfig) bool {
	if cfg.Exclusions.ExcludeSuspended && a.Suspended {
		return true
	}
	if cfg.Exclusions.ExcludeAway && a.Availability == models.ArtistAway {
		return true
	}
	if cfg.Workload.HardMaxActive > 0 && a.ActiveTaskCount >= cfg.Workload.HardMaxActive {
		return true
	}
	if cfg.Exclusions.SameClientCooldown && a.LastClientID != nil && *a.LastClientID == task.ClientID {
		return true
	}
	return false
}

// skillCoverage returns the fraction of required skills the artist has.
// A task with no required skills matches everyone.
func skillCoverage(required []string, a *models.Artist) float64 {
	if len(required) == 0 {
		return 1
	}
	matched := 0
	for _, s := range required {
		if a.HasSkill(s) {
			matched++
		}
	}
	return float64(matched) / float64(len(required))
}

// eligibleAtLevel applies the per-level skill filter: level 1 requires full
// coverage, level 2 at least half, level 3 broadcasts to the whole pool.
func eligibleAtLevel(coverage float64, level int) bool {
	switch level {
	case models.EscalationLevelBestFit:
		return coverage >= 1
	case models.EscalationLevelRelaxed:
		return coverage >= 0.5
	default:
		return true
	}
}

// scoreArtist computes the weighted sum across the five dimensions plus
// bonus modifiers. Each raw dimension is normalized to [0,1] before
// weighting; missing data contributes a neutral 0.5.
func scoreArtist(a *models.Artist, task *models.Task, coverage float64, cfg *models.AlgorithmConfig) (float64, models.ScoreBreakdown) {
	w := cfg.Weights

	bd := models.ScoreBreakdown{
		SkillMatch:         dimension(coverage, w.SkillMatch),
		TimezoneFit:        dimension(timezoneFit(a.TimezoneOffset, task.ClientTimezoneOffset), w.TimezoneFit),
		ExperienceMatch:    dimension(cfg.ExperienceMatrix.ExperienceFit(task.Complexity, a.ExperienceLevel), w.ExperienceMatch),
		WorkloadBalance:    dimension(workloadBalance(a.ActiveTaskCount, cfg.Workload.PreferredMaxActive), w.WorkloadBalance),
		PerformanceHistory: dimension(performanceHistory(a), w.PerformanceHistory),
	}

	total := bd.SkillMatch.Weighted +
		bd.TimezoneFit.Weighted +
		bd.ExperienceMatch.Weighted +
		bd.WorkloadBalance.Weighted +
		bd.PerformanceHistory.Weighted

	bd.Bonus = bonus(a, task, cfg)
	total += bd.Bonus

	return total, bd
}

func dimension(raw, weight float64) models.DimensionScore {
	return models.DimensionScore{Raw: raw, Weight: weight, Weighted: raw * weight}
}

// timezoneFit maps the hour distance between artist and client to [0,1];
// 0 hours apart scores 1, 12+ hours apart scores 0.
func timezoneFit(artistOffset, clientOffset int) float64 {
	diff := artistOffset - clientOffset
	if diff < 0 {
		diff = -diff
	}
	if diff > 12 {
		// Offsets reach +14, so the wrapped distance can come out negative.
		diff = 24 - diff
		if diff < 0 {
			diff = -diff
		}
	}
	return 1 - float64(diff)/12
}

// workloadBalance favors artists with spare capacity. ActiveTaskCount at or
// above the preferred cap scores 0; an idle artist scores 1.
func workloadBalance(active, preferredMax int) float64 {
	if preferredMax <= 0 {
		return 0.5
	}
	v := 1 - float64(active)/float64(preferredMax)
	if v < 0 {
		return 0
	}
	return v
}

// performanceHistory normalizes the 0–5 rating; artists without history
// score neutral rather than failing the computation.
func performanceHistory(a *models.Artist) float64 {
	if a.Rating == nil || a.CompletedTaskCount == 0 {
		return 0.5
	}
	v := *a.Rating / 5
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// bonus applies the configured flat modifiers after the weighted sum.
func bonus(a *models.Artist, task *models.Task, cfg *models.AlgorithmConfig) float64 {
	var b float64
	if cfg.Bonuses.SpecialtyCategory != 0 && task.Category != "" && a.HasSpecialization(task.Category) {
		b += cfg.Bonuses.SpecialtyCategory
	}
	if cfg.Bonuses.RushAvailability != 0 && task.Urgency != models.UrgencyStandard && a.Availability == models.ArtistAvailable {
		b += cfg.Bonuses.RushAvailability
	}
	return b
}
