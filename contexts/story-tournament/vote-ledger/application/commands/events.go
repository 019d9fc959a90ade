package commands

import (
	"encoding/json"
	"time"

	"fable/contexts/story-tournament/vote-ledger/ports"
)

func newVoteEnvelope(
	eventID string,
	eventType string,
	clipID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "vote-ledger",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "clip_id",
		PartitionKey:     clipID,
		Data:             payload,
	}, nil
}
