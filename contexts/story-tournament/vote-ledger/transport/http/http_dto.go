package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CastVoteRequest struct {
	Weight int `json:"weight,omitempty"`
}

type VoteDTO struct {
	VoteID       string `json:"vote_id"`
	SeasonID     string `json:"season_id"`
	SlotPosition int    `json:"slot_position"`
	ClipID       string `json:"clip_id"`
	VoterKey     string `json:"voter_key"`
	Weight       int    `json:"weight"`
	CastAt       string `json:"cast_at"`
}

type CastVoteResponse struct {
	Vote VoteDTO `json:"vote"`
}

type RevokeVoteResponse struct {
	Vote VoteDTO `json:"vote"`
}

type ClipTallyDTO struct {
	ClipID string `json:"clip_id"`
	Votes  int    `json:"votes"`
	Weight int    `json:"weight"`
}

type ClipTallyResponse struct {
	Tally ClipTallyDTO `json:"tally"`
}

type SlotTallyResponse struct {
	SeasonID string         `json:"season_id"`
	Position int            `json:"position"`
	Clips    []ClipTallyDTO `json:"clips"`
}

type LeaderboardResponse struct {
	SeasonID string         `json:"season_id"`
	Position int            `json:"position"`
	Items    []ClipTallyDTO `json:"items"`
}
