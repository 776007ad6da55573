package models

import (
	"time"
)

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // raw-record, profile, verdict, audit
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// AuditRecord is one append-only audit line. SubjectHash is never the raw subject id.
type AuditRecord struct {
	ID          string                 `json:"id"`
	SubjectHash string                 `json:"subject_hash,omitempty"`
	Operation   string                 `json:"operation"`
	Outcome     string                 `json:"outcome"`
	Timestamp   time.Time              `json:"timestamp"`
	Detail      map[string]interface{} `json:"detail,omitempty"`
}

const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeDegraded = "degraded"
)

// Batch request shapes accepted on the raw-record topic.
type BatchProfileRequest struct {
	BatchID string             `json:"batch_id,omitempty"`
	Records []RawSubjectRecord `json:"records"`
	Texts   []*string          `json:"texts,omitempty"`
	K       int                `json:"k,omitempty"`
	Epsilon float64            `json:"epsilon,omitempty"`
}

type BatchProfileResponse struct {
	BatchID    string               `json:"batch_id"`
	Profiles   []*AnonymizedProfile `json:"profiles"`
	Failed     int                  `json:"failed"`
	Suppressed int                  `json:"suppressed"`
}
