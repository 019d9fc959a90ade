package errors

import "errors"

var (
	ErrInvalidVoteInput = errors.New("invalid vote input")
	ErrDuplicateVote    = errors.New("voter already voted for this clip")
	ErrVoteNotFound     = errors.New("vote not found")
	ErrClipNotVotable   = errors.New("clip is not votable")
	ErrVotingClosed     = errors.New("slot is not accepting votes")
	ErrStoreUnavailable = errors.New("store unavailable")
)
