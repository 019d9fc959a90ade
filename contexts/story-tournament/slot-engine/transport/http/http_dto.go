package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type UploadClipRequest struct {
	SeasonID        string `json:"season_id"`
	Title           string `json:"title"`
	AuthorName      string `json:"author_name"`
	PlaybackURL     string `json:"playback_url"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	SlotPosition    int    `json:"slot_position,omitempty"`
}

type ApproveClipRequest struct {
	SlotPosition int `json:"slot_position,omitempty"`
}

type RejectClipRequest struct {
	Reason string `json:"reason,omitempty"`
}

type EditClipRequest struct {
	Title           *string `json:"title,omitempty"`
	AuthorName      *string `json:"author_name,omitempty"`
	PlaybackURL     *string `json:"playback_url,omitempty"`
	ThumbnailURL    *string `json:"thumbnail_url,omitempty"`
	DurationSeconds *int    `json:"duration_seconds,omitempty"`
	Status          *string `json:"status,omitempty"`
}

type AssignWinnerRequest struct {
	ClipID string `json:"clip_id"`
}

type BulkModerateRequest struct {
	SeasonID string   `json:"season_id"`
	Action   string   `json:"action"`
	ClipIDs  []string `json:"clip_ids"`
	Reason   string   `json:"reason,omitempty"`
}

type ClipResponse struct {
	ClipID          string    `json:"clip_id"`
	SeasonID        string    `json:"season_id"`
	SlotPosition    *int      `json:"slot_position,omitempty"`
	Status          string    `json:"status"`
	Title           string    `json:"title"`
	AuthorName      string    `json:"author_name"`
	PlaybackURL     string    `json:"playback_url"`
	ThumbnailURL    string    `json:"thumbnail_url,omitempty"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
	VoteCount       int       `json:"vote_count"`
	VoteWeight      int       `json:"vote_weight"`
	SubmittedBy     string    `json:"submitted_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type SlotResponse struct {
	SeasonID       string     `json:"season_id"`
	Position       int        `json:"position"`
	Status         string     `json:"status"`
	TimerStartedAt *time.Time `json:"timer_started_at,omitempty"`
	TimerEndsAt    *time.Time `json:"timer_ends_at,omitempty"`
	WinnerClipID   string     `json:"winner_clip_id,omitempty"`
	Version        int64      `json:"version"`
}

type SlotTransition struct {
	Position   int    `json:"position"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Reason     string `json:"reason"`
	Eligible   int    `json:"eligible"`
}

type UploadClipResponse struct {
	Clip        ClipResponse     `json:"clip"`
	Transitions []SlotTransition `json:"transitions,omitempty"`
	Replayed    bool             `json:"replayed"`
}

type ModerateClipResponse struct {
	Clip        ClipResponse     `json:"clip"`
	Transitions []SlotTransition `json:"transitions,omitempty"`
}

type DeleteClipResponse struct {
	ClipID      string           `json:"clip_id"`
	PurgedVotes int              `json:"purged_votes"`
	Transitions []SlotTransition `json:"transitions,omitempty"`
}

type AssignWinnerResponse struct {
	Slot        SlotResponse     `json:"slot"`
	Winner      ClipResponse     `json:"winner"`
	FinalSlot   bool             `json:"final_slot"`
	Transitions []SlotTransition `json:"transitions,omitempty"`
}

type UnlockSlotResponse struct {
	Slot        SlotResponse     `json:"slot"`
	Winner      ClipResponse     `json:"former_winner"`
	Transitions []SlotTransition `json:"transitions,omitempty"`
}

type BulkItemResponse struct {
	ClipID string `json:"clip_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type BulkModerateResponse struct {
	Processed int                `json:"processed"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Items     []BulkItemResponse `json:"items"`
	Replayed  bool               `json:"replayed"`
}

type StoryboardSlotResponse struct {
	Slot          SlotResponse  `json:"slot"`
	EligibleClips int           `json:"eligible_clips"`
	Winner        *ClipResponse `json:"winner,omitempty"`
}

type StoryboardResponse struct {
	SeasonID string                   `json:"season_id"`
	Slots    []StoryboardSlotResponse `json:"slots"`
}

type ClipListResponse struct {
	Items []ClipResponse `json:"items"`
}

type SweepResponse struct {
	RepairedSlots int `json:"repaired_slots"`
}
