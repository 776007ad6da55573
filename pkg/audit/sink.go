package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/synaptica-ai/mlprofile/pkg/common/logger"
	"github.com/synaptica-ai/mlprofile/pkg/common/models"
)

// Operation names written to the audit trail.
const (
	OpPseudonymGenerate = "pseudonym.generate"
	OpPseudonymValidate = "pseudonym.validate"
	OpPseudonymRotate   = "pseudonym.rotate"
	OpProfileBuild      = "profile.build"
	OpProfileFailed     = "profile.build.failed"
	OpProfileBatch      = "profile.batch"
	OpKAnonymity        = "cohort.kanonymity"
	OpDifferentialPriv  = "cohort.dp"
	OpComplianceCheck   = "compliance.check"
)

// Sink receives audit records. Implementations must be append-only and must
// never be handed raw subject identifiers.
type Sink interface {
	Record(ctx context.Context, rec models.AuditRecord) error
}

// NewRecord builds a record for subjectID stamped at the caller's clock
// reading, hashing the id before it leaves the caller.
func NewRecord(at time.Time, operation, subjectID, outcome string, detail map[string]interface{}) models.AuditRecord {
	return models.AuditRecord{
		ID:          uuid.New().String(),
		SubjectHash: logger.HashSubject(subjectID),
		Operation:   operation,
		Outcome:     outcome,
		Timestamp:   at.UTC(),
		Detail:      detail,
	}
}

// Emit records rec on sink and logs, but never returns, a sink failure.
func Emit(ctx context.Context, sink Sink, rec models.AuditRecord) {
	if sink == nil {
		return
	}
	if err := sink.Record(ctx, rec); err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"operation":    rec.Operation,
			"subject_hash": rec.SubjectHash,
		}).Warn("failed to write audit record")
	}
}

type nopSink struct{}

func (nopSink) Record(context.Context, models.AuditRecord) error { return nil }

// Nop discards every record.
func Nop() Sink { return nopSink{} }

// LogSink writes records to the structured logger.
type LogSink struct{}

func (LogSink) Record(_ context.Context, rec models.AuditRecord) error {
	logger.Log.WithFields(logrus.Fields{
		"audit_id":     rec.ID,
		"operation":    rec.Operation,
		"subject_hash": rec.SubjectHash,
		"outcome":      rec.Outcome,
	}).Info("audit")
	return nil
}

// MemorySink keeps records in process; used by tests and local runs.
type MemorySink struct {
	mu      sync.Mutex
	records []models.AuditRecord
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Record(_ context.Context, rec models.AuditRecord) error {
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	return nil
}

// Records returns a snapshot copy.
func (m *MemorySink) Records() []models.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AuditRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Count returns how many records have the given operation.
func (m *MemorySink) Count(operation string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.records {
		if rec.Operation == operation {
			n++
		}
	}
	return n
}

// MultiSink fans a record out to every sink and returns the first error.
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, rec models.AuditRecord) error {
	var first error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}
