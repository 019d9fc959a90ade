package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateSeasonRequest struct {
	Title               string `json:"title"`
	Description         string `json:"description"`
	Genre               string `json:"genre"`
	SlotCount           int    `json:"slot_count"`
	VotingWindowSeconds int64  `json:"voting_window_seconds"`
}

type SeasonDTO struct {
	SeasonID            string `json:"season_id"`
	Title               string `json:"title"`
	Description         string `json:"description"`
	Genre               string `json:"genre"`
	Status              string `json:"status"`
	SlotCount           int    `json:"slot_count"`
	VotingWindowSeconds int64  `json:"voting_window_seconds"`
	CreatedBy           string `json:"created_by"`
	ActivatedAt         string `json:"activated_at,omitempty"`
	FinishedAt          string `json:"finished_at,omitempty"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

type CreateSeasonResponse struct {
	Season   SeasonDTO `json:"season"`
	Replayed bool      `json:"replayed"`
}

type GetSeasonResponse struct {
	Season SeasonDTO `json:"season"`
}

type ListSeasonsResponse struct {
	Items []SeasonDTO `json:"items"`
}
