package entities

import (
	"strings"
	"time"
)

type ClipStatus string

const (
	ClipStatusPending  ClipStatus = "pending"
	ClipStatusActive   ClipStatus = "active"
	ClipStatusRejected ClipStatus = "rejected"
	ClipStatusLocked   ClipStatus = "locked"
)

// Clip is a submitted video competing for a slot. VoteCount and VoteWeight
// are denormalized projections maintained from ledger events; they are never
// an input to eligibility, which is always recounted from clip rows.
type Clip struct {
	ID              string
	SeasonID        string
	SlotPosition    *int
	Status          ClipStatus
	Title           string
	AuthorName      string
	PlaybackURL     string
	ThumbnailURL    string
	DurationSeconds int
	VoteCount       int
	VoteWeight      int
	SubmittedBy     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func IsSupportedClipStatus(status ClipStatus) bool {
	switch status {
	case ClipStatusPending, ClipStatusActive, ClipStatusRejected, ClipStatusLocked:
		return true
	default:
		return false
	}
}

// Eligible reports whether the status counts toward a slot's eligible-clip
// total. Pending clips count the same as active ones; rejected and locked
// clips never do.
func (s ClipStatus) Eligible() bool {
	return s == ClipStatusPending || s == ClipStatusActive
}

// CanTransitionClip encodes the legal clip moderation moves. Locking and
// unlocking happen only through winner assignment and slot unlock.
func CanTransitionClip(from ClipStatus, to ClipStatus) bool {
	switch from {
	case ClipStatusPending:
		return to == ClipStatusActive || to == ClipStatusRejected || to == ClipStatusLocked
	case ClipStatusActive:
		return to == ClipStatusRejected || to == ClipStatusLocked
	case ClipStatusLocked:
		return to == ClipStatusActive
	default:
		return false
	}
}

// CountEligible tallies eligible clips for one slot position out of a clip
// list. Store adapters recount with a query instead; this helper backs the
// in-memory adapter and the evaluator tests.
func CountEligible(clips []Clip, position int) int {
	count := 0
	for _, clip := range clips {
		if clip.SlotPosition == nil || *clip.SlotPosition != position {
			continue
		}
		if clip.Status.Eligible() {
			count++
		}
	}
	return count
}

// NormalizeVoterFacingFields trims user-supplied clip metadata in place.
func NormalizeVoterFacingFields(clip *Clip) {
	clip.Title = strings.TrimSpace(clip.Title)
	clip.AuthorName = strings.TrimSpace(clip.AuthorName)
	clip.PlaybackURL = strings.TrimSpace(clip.PlaybackURL)
	clip.ThumbnailURL = strings.TrimSpace(clip.ThumbnailURL)
	clip.SubmittedBy = strings.TrimSpace(clip.SubmittedBy)
}
