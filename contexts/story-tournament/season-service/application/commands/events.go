package commands

import (
	"encoding/json"
	"time"

	"fable/contexts/story-tournament/season-service/ports"
)

func newSeasonEnvelope(
	eventID string,
	eventType string,
	seasonID string,
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
		SourceService:    "season-service",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "season_id",
		PartitionKey:     seasonID,
		Data:             payload,
	}, nil
}
