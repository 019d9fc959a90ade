package entities

import (
	"strings"
	"time"
)

type SeasonStatus string

const (
	SeasonStatusDraft    SeasonStatus = "draft"
	SeasonStatusActive   SeasonStatus = "active"
	SeasonStatusFinished SeasonStatus = "finished"
)

// MaxSlotCount bounds how many storyboard positions one season may hold.
const MaxSlotCount = 64

// DefaultVotingWindow is applied when a season is created without an
// explicit per-round window.
const DefaultVotingWindow = 24 * time.Hour

// Season is one tournament run: a titled, genre-bound strip of slots that
// clips compete through. At most one season per genre is active at a time.
type Season struct {
	ID           string
	Title        string
	Description  string
	Genre        string
	Status       SeasonStatus
	SlotCount    int
	VotingWindow time.Duration
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ActivatedAt  *time.Time
	FinishedAt   *time.Time
}

func (s Season) ValidateBasics() bool {
	title := strings.TrimSpace(s.Title)
	return title != "" &&
		len(title) >= 3 &&
		len(title) <= 120 &&
		len(strings.TrimSpace(s.Description)) <= 2000 &&
		IsSupportedGenre(s.Genre) &&
		s.SlotCount >= 1 &&
		s.SlotCount <= MaxSlotCount &&
		s.VotingWindow >= 0
}

func IsSupportedStatus(value SeasonStatus) bool {
	switch value {
	case SeasonStatusDraft, SeasonStatusActive, SeasonStatusFinished:
		return true
	default:
		return false
	}
}

func IsSupportedGenre(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "drama", "comedy", "horror", "scifi", "documentary", "action":
		return true
	default:
		return false
	}
}

// CanTransition reports whether a season may move between two lifecycle
// statuses. The lifecycle is strictly forward: draft, active, finished.
func CanTransition(from, to SeasonStatus) bool {
	switch from {
	case SeasonStatusDraft:
		return to == SeasonStatusActive
	case SeasonStatusActive:
		return to == SeasonStatusFinished
	default:
		return false
	}
}
