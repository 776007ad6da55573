package audit

import (
	"context"

	"github.com/synaptica-ai/mlprofile/pkg/common/models"
)

// EventPublisher is satisfied by kafka.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// EventSink forwards audit records to the event bus.
type EventSink struct {
	publisher EventPublisher
	source    string
}

func NewEventSink(publisher EventPublisher, source string) *EventSink {
	return &EventSink{publisher: publisher, source: source}
}

func (s *EventSink) Record(ctx context.Context, rec models.AuditRecord) error {
	return s.publisher.PublishEvent(ctx, "audit", s.source, map[string]interface{}{
		"audit_id":     rec.ID,
		"subject_hash": rec.SubjectHash,
		"operation":    rec.Operation,
		"outcome":      rec.Outcome,
		"timestamp":    rec.Timestamp,
		"detail":       rec.Detail,
	})
}
