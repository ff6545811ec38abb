package models

import (
	"time"

	"github.com/google/uuid"
)

// Artist availability enums.
const (
	ArtistAvailable = "available"
	ArtistBusy      = "busy"
	ArtistAway      = "away"
)

// Artist experience levels.
const (
	ExperienceJunior = "junior"
	ExperienceMid    = "mid"
	ExperienceSenior = "senior"
	ExperienceExpert = "expert"
)

// Artist is a freelancer eligible for task offers, with the fields the
// ranker scores on.
type Artist struct {
	ID                 uuid.UUID  `json:"id"`
	DisplayName        string     `json:"display_name"`
	Skills             []string   `json:"skills"`
	Specializations    []string   `json:"specializations"`
	TimezoneOffset     int        `json:"timezone_offset"`
	ExperienceLevel    string     `json:"experience_level"`
	ActiveTaskCount    int        `json:"active_task_count"`
	Rating             *float64   `json:"rating,omitempty"`
	CompletedTaskCount int        `json:"completed_task_count"`
	Availability       string     `json:"availability"`
	Suspended          bool       `json:"suspended"`
	LastClientID       *uuid.UUID `json:"last_client_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// HasSkill reports whether the artist lists the given skill.
func (a *Artist) HasSkill(skill string) bool {
	for _, s := range a.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// HasSpecialization reports whether the artist lists the given specialization.
func (a *Artist) HasSpecialization(spec string) bool {
	for _, s := range a.Specializations {
		if s == spec {
			return true
		}
	}
	return false
}
