package entities

import "time"

// MaxVoteWeight caps how much a single ballot may count.
const MaxVoteWeight = 5

// DefaultVoteWeight is applied when a ballot carries no explicit weight.
const DefaultVoteWeight = 1

// Vote is a single ballot. The pair (VoterKey, ClipID) is unique at the
// store; a vote is created on cast and deleted on revoke, never updated.
type Vote struct {
	ID           string
	SeasonID     string
	SlotPosition int
	ClipID       string
	VoterKey     string
	Weight       int
	CastAt       time.Time
}

func ValidWeight(weight int) bool {
	return weight >= 1 && weight <= MaxVoteWeight
}

// ClipTally is a clip's standing recomputed from ledger rows. Denormalized
// counters elsewhere are projections of this, never the other way around.
type ClipTally struct {
	ClipID string
	Votes  int
	Weight int
}

type SlotTally struct {
	SeasonID string
	Position int
	Clips    []ClipTally
}
