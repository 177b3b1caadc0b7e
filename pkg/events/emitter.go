// Package events publishes golden record change events after batch commit
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter translates committed change events into Kafka golden events. It
// satisfies the pipeline's Publisher contract.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// Publish emits one golden event per committed change event. Emission happens
// after the batch transaction commits, so a failure here is reported to the
// caller for logging but the batch itself stands.
func (e *Emitter) Publish(ctx context.Context, changes []models.ChangeEvent) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.Publish")
	defer span.End()

	if len(changes) == 0 {
		return nil
	}

	out := make([]*kafka.GoldenEvent, 0, len(changes))
	for _, change := range changes {
		event, err := e.toGoldenEvent(change)
		if err != nil {
			e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"golden_id": change.GoldenID,
				"batch_id":  change.BatchID,
			}).Error("Failed to encode golden event")
			return err
		}
		out = append(out, event)
	}

	if err := e.producer.PublishGoldenEvents(ctx, out); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_id": changes[0].BatchID,
			"events":   len(changes),
		}).Error("Failed to publish golden events")
		return err
	}

	return nil
}

// PublishBatchCommitted announces a committed pipeline run with its counts.
func (e *Emitter) PublishBatchCommitted(ctx context.Context, result *models.BatchResult) error {
	event := BatchCommittedEvent{
		BaseEvent:   NewBaseEvent(EventTypeBatchCommitted, result.BatchID),
		Events:      len(result.Events),
		Inserts:     result.Inserts,
		Updates:     result.Updates,
		Deletes:     result.Deletes,
		Conflicts:   result.Conflicts,
		Quarantined: result.Quarantined,
	}
	return e.producer.PublishBatchEvent(ctx, string(EventTypeBatchCommitted), result.BatchID, event)
}

// PublishBatchRolledBack announces that a committed batch was undone.
func (e *Emitter) PublishBatchRolledBack(ctx context.Context, batchID string, restored int) error {
	event := BatchRolledBackEvent{
		BaseEvent:       NewBaseEvent(EventTypeBatchRolledBack, batchID),
		RestoredRecords: restored,
	}
	return e.producer.PublishBatchEvent(ctx, string(EventTypeBatchRolledBack), batchID, event)
}

func (e *Emitter) toGoldenEvent(change models.ChangeEvent) (*kafka.GoldenEvent, error) {
	event := &kafka.GoldenEvent{
		EventType:      string(eventTypeFor(change.ChangeType)),
		BatchID:        change.BatchID,
		SequenceNumber: change.SequenceNumber,
		GoldenID:       change.GoldenID,
		Conflict:       change.Conflict,
	}

	// Deletes carry no after image beyond the tombstone; the event stays thin.
	if change.After != nil {
		event.Version = change.After.Version
		for _, member := range change.After.Members {
			event.Members = append(event.Members, member.Key())
		}
		if change.ChangeType != models.ChangeTypeDelete {
			attrs, err := json.Marshal(change.After.Attributes)
			if err != nil {
				return nil, err
			}
			event.Attributes = attrs
		}
	}

	return event, nil
}

func eventTypeFor(changeType models.ChangeType) EventType {
	switch changeType {
	case models.ChangeTypeInsert:
		return EventTypeGoldenCreated
	case models.ChangeTypeDelete:
		return EventTypeGoldenDeleted
	case models.ChangeTypeConflict:
		return EventTypeGoldenConflict
	default:
		return EventTypeGoldenUpdated
	}
}
