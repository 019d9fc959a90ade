package commands

import (
	"encoding/json"
	"time"

	"fable/contexts/story-tournament/slot-engine/ports"
)

func newEngineEnvelope(
	eventID string,
	eventType string,
	seasonID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Command-side events are partitioned by season so slot-ordered consumers
	// observe one season's transitions in sequence.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "slot-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "season_id",
		PartitionKey:     seasonID,
		Data:             payload,
	}, nil
}
