package httpadapter

import (
	"context"
	"log/slog"
	"strings"

	"fable/contexts/story-tournament/slot-engine/application/commands"
	"fable/contexts/story-tournament/slot-engine/application/queries"
	"fable/contexts/story-tournament/slot-engine/application/workers"
	"fable/contexts/story-tournament/slot-engine/domain/entities"
	httptransport "fable/contexts/story-tournament/slot-engine/transport/http"
)

type Handler struct {
	Tournament commands.TournamentUseCase
	Storyboard queries.StoryboardUseCase
	Clips      queries.ClipQueryUseCase
	Sweeper    workers.ReconciliationSweeper
	Logger     *slog.Logger
}

func (h Handler) UploadClipHandler(
	ctx context.Context,
	submittedBy string,
	idempotencyKey string,
	req httptransport.UploadClipRequest,
) (httptransport.UploadClipResponse, error) {
	result, err := h.Tournament.UploadClip(ctx, commands.UploadClipCommand{
		SeasonID:        req.SeasonID,
		SubmittedBy:     submittedBy,
		IdempotencyKey:  idempotencyKey,
		Title:           req.Title,
		AuthorName:      req.AuthorName,
		PlaybackURL:     req.PlaybackURL,
		ThumbnailURL:    req.ThumbnailURL,
		DurationSeconds: req.DurationSeconds,
		SlotPosition:    req.SlotPosition,
	})
	if err != nil {
		return httptransport.UploadClipResponse{}, err
	}
	return httptransport.UploadClipResponse{
		Clip:        mapClip(result.Clip),
		Transitions: mapTransitions(result.Evaluations),
		Replayed:    result.Replayed,
	}, nil
}

func (h Handler) ApproveClipHandler(
	ctx context.Context,
	clipID string,
	actorID string,
	req httptransport.ApproveClipRequest,
) (httptransport.ModerateClipResponse, error) {
	result, err := h.Tournament.ApproveClip(ctx, commands.ApproveClipCommand{
		ClipID:       clipID,
		ActorID:      actorID,
		SlotPosition: req.SlotPosition,
	})
	if err != nil {
		return httptransport.ModerateClipResponse{}, err
	}
	return mapReview(result), nil
}

func (h Handler) RejectClipHandler(
	ctx context.Context,
	clipID string,
	actorID string,
	req httptransport.RejectClipRequest,
) (httptransport.ModerateClipResponse, error) {
	result, err := h.Tournament.RejectClip(ctx, commands.RejectClipCommand{
		ClipID:  clipID,
		ActorID: actorID,
		Reason:  req.Reason,
	})
	if err != nil {
		return httptransport.ModerateClipResponse{}, err
	}
	return mapReview(result), nil
}

func (h Handler) EditClipHandler(
	ctx context.Context,
	clipID string,
	actorID string,
	req httptransport.EditClipRequest,
) (httptransport.ModerateClipResponse, error) {
	cmd := commands.EditClipCommand{
		ClipID:          clipID,
		ActorID:         actorID,
		Title:           req.Title,
		AuthorName:      req.AuthorName,
		PlaybackURL:     req.PlaybackURL,
		ThumbnailURL:    req.ThumbnailURL,
		DurationSeconds: req.DurationSeconds,
	}
	if req.Status != nil {
		status := entities.ClipStatus(strings.TrimSpace(*req.Status))
		cmd.Status = &status
	}
	result, err := h.Tournament.EditClip(ctx, cmd)
	if err != nil {
		return httptransport.ModerateClipResponse{}, err
	}
	return mapReview(result), nil
}

func (h Handler) DeleteClipHandler(ctx context.Context, clipID string, actorID string) (httptransport.DeleteClipResponse, error) {
	result, err := h.Tournament.DeleteClip(ctx, commands.DeleteClipCommand{
		ClipID:  clipID,
		ActorID: actorID,
	})
	if err != nil {
		return httptransport.DeleteClipResponse{}, err
	}
	return httptransport.DeleteClipResponse{
		ClipID:      result.ClipID,
		PurgedVotes: result.PurgedVotes,
		Transitions: mapTransitions(result.Evaluations),
	}, nil
}

func (h Handler) AssignWinnerHandler(
	ctx context.Context,
	seasonID string,
	position int,
	actorID string,
	req httptransport.AssignWinnerRequest,
) (httptransport.AssignWinnerResponse, error) {
	result, err := h.Tournament.AssignWinner(ctx, commands.AssignWinnerCommand{
		SeasonID:     seasonID,
		SlotPosition: position,
		ClipID:       req.ClipID,
		ActorID:      actorID,
	})
	if err != nil {
		return httptransport.AssignWinnerResponse{}, err
	}
	return httptransport.AssignWinnerResponse{
		Slot:        mapSlot(result.Slot),
		Winner:      mapClip(result.Winner),
		FinalSlot:   result.FinalSlot,
		Transitions: mapTransitions(result.Evaluations),
	}, nil
}

func (h Handler) UnlockSlotHandler(
	ctx context.Context,
	seasonID string,
	position int,
	actorID string,
) (httptransport.UnlockSlotResponse, error) {
	result, err := h.Tournament.UnlockSlot(ctx, commands.UnlockSlotCommand{
		SeasonID:     seasonID,
		SlotPosition: position,
		ActorID:      actorID,
	})
	if err != nil {
		return httptransport.UnlockSlotResponse{}, err
	}
	response := httptransport.UnlockSlotResponse{
		Winner:      mapClip(result.Winner),
		Transitions: mapTransitions(result.Evaluations),
	}
	for _, eval := range result.Evaluations {
		if eval.Slot.Position == position {
			response.Slot = mapSlot(eval.Slot)
		}
	}
	return response, nil
}

func (h Handler) BulkModerateHandler(
	ctx context.Context,
	actorID string,
	idempotencyKey string,
	req httptransport.BulkModerateRequest,
) (httptransport.BulkModerateResponse, error) {
	result, err := h.Tournament.BulkModerate(ctx, commands.BulkModerateCommand{
		IdempotencyKey: idempotencyKey,
		SeasonID:       req.SeasonID,
		ActorID:        actorID,
		Action:         req.Action,
		ClipIDs:        req.ClipIDs,
		Reason:         req.Reason,
	})
	if err != nil {
		return httptransport.BulkModerateResponse{}, err
	}
	items := make([]httptransport.BulkItemResponse, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, httptransport.BulkItemResponse{
			ClipID: item.ClipID,
			Status: item.Status,
			Error:  item.Error,
		})
	}
	return httptransport.BulkModerateResponse{
		Processed: result.Processed,
		Succeeded: result.SucceededCount,
		Failed:    result.FailedCount,
		Items:     items,
		Replayed:  result.Replayed,
	}, nil
}

func (h Handler) StoryboardHandler(ctx context.Context, seasonID string) (httptransport.StoryboardResponse, error) {
	board, err := h.Storyboard.Storyboard(ctx, seasonID)
	if err != nil {
		return httptransport.StoryboardResponse{}, err
	}
	slots := make([]httptransport.StoryboardSlotResponse, 0, len(board.Slots))
	for _, row := range board.Slots {
		slots = append(slots, mapStoryboardSlot(row))
	}
	return httptransport.StoryboardResponse{
		SeasonID: board.SeasonID,
		Slots:    slots,
	}, nil
}

func (h Handler) GetSlotHandler(ctx context.Context, seasonID string, position int) (httptransport.StoryboardSlotResponse, error) {
	row, err := h.Storyboard.GetSlot(ctx, seasonID, position)
	if err != nil {
		return httptransport.StoryboardSlotResponse{}, err
	}
	return mapStoryboardSlot(row), nil
}

func (h Handler) GetClipHandler(ctx context.Context, clipID string) (httptransport.ClipResponse, error) {
	clip, err := h.Clips.GetClip(ctx, clipID)
	if err != nil {
		return httptransport.ClipResponse{}, err
	}
	return mapClip(clip), nil
}

func (h Handler) ListClipsHandler(
	ctx context.Context,
	seasonID string,
	status string,
	position int,
	limit int,
) (httptransport.ClipListResponse, error) {
	clips, err := h.Clips.ListClips(ctx, queries.ListClipsQuery{
		SeasonID:     seasonID,
		Status:       status,
		SlotPosition: position,
		Limit:        limit,
	})
	if err != nil {
		return httptransport.ClipListResponse{}, err
	}
	items := make([]httptransport.ClipResponse, 0, len(clips))
	for _, clip := range clips {
		items = append(items, mapClip(clip))
	}
	return httptransport.ClipListResponse{Items: items}, nil
}

func (h Handler) SweepSeasonHandler(ctx context.Context, seasonID string) (httptransport.SweepResponse, error) {
	repaired, err := h.Sweeper.SweepSeason(ctx, seasonID)
	if err != nil {
		return httptransport.SweepResponse{}, err
	}
	return httptransport.SweepResponse{RepairedSlots: repaired}, nil
}

func mapReview(result commands.ReviewResult) httptransport.ModerateClipResponse {
	return httptransport.ModerateClipResponse{
		Clip:        mapClip(result.Clip),
		Transitions: mapTransitions(result.Evaluations),
	}
}

func mapClip(clip entities.Clip) httptransport.ClipResponse {
	response := httptransport.ClipResponse{
		ClipID:          clip.ID,
		SeasonID:        clip.SeasonID,
		Status:          string(clip.Status),
		Title:           clip.Title,
		AuthorName:      clip.AuthorName,
		PlaybackURL:     clip.PlaybackURL,
		ThumbnailURL:    clip.ThumbnailURL,
		DurationSeconds: clip.DurationSeconds,
		VoteCount:       clip.VoteCount,
		VoteWeight:      clip.VoteWeight,
		SubmittedBy:     clip.SubmittedBy,
		CreatedAt:       clip.CreatedAt,
		UpdatedAt:       clip.UpdatedAt,
	}
	if clip.SlotPosition != nil {
		position := *clip.SlotPosition
		response.SlotPosition = &position
	}
	return response
}

func mapSlot(slot entities.Slot) httptransport.SlotResponse {
	response := httptransport.SlotResponse{
		SeasonID:       slot.SeasonID,
		Position:       slot.Position,
		Status:         string(slot.Status),
		TimerStartedAt: slot.TimerStartedAt,
		TimerEndsAt:    slot.TimerEndsAt,
		Version:        slot.Version,
	}
	if slot.WinnerClipID != nil {
		response.WinnerClipID = *slot.WinnerClipID
	}
	return response
}

func mapStoryboardSlot(row queries.StoryboardSlot) httptransport.StoryboardSlotResponse {
	response := httptransport.StoryboardSlotResponse{
		Slot:          mapSlot(row.Slot),
		EligibleClips: row.Eligible,
	}
	if row.Winner != nil {
		winner := mapClip(*row.Winner)
		response.Winner = &winner
	}
	return response
}

func mapTransitions(evaluations []entities.Evaluation) []httptransport.SlotTransition {
	var transitions []httptransport.SlotTransition
	for _, eval := range evaluations {
		if !eval.Changed {
			continue
		}
		transitions = append(transitions, httptransport.SlotTransition{
			Position:   eval.Slot.Position,
			FromStatus: string(eval.From),
			ToStatus:   string(eval.To),
			Reason:     string(eval.Reason),
			Eligible:   eval.Eligible,
		})
	}
	return transitions
}
