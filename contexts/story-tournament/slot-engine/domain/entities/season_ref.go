package entities

import "time"

type SeasonRefStatus string

const (
	SeasonRefStatusDraft    SeasonRefStatus = "draft"
	SeasonRefStatusActive   SeasonRefStatus = "active"
	SeasonRefStatusFinished SeasonRefStatus = "finished"
)

// SeasonRef is the engine's local projection of a season, maintained from
// season lifecycle events. It carries just enough to guard uploads and to
// size voting windows; the season service stays the system of record.
type SeasonRef struct {
	ID           string
	Genre        string
	Status       SeasonRefStatus
	SlotCount    int
	VotingWindow time.Duration
	UpdatedAt    time.Time
}

// AcceptsClips reports whether the season takes new uploads.
func (s SeasonRef) AcceptsClips() bool {
	return s.Status == SeasonRefStatusActive
}
