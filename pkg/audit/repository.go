package audit

import (
	"context"
	"time"

	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Entry struct {
	ID          string            `gorm:"primaryKey;column:id"`
	SubjectHash string            `gorm:"column:subject_hash;index"`
	Operation   string            `gorm:"column:operation;index"`
	Outcome     string            `gorm:"column:outcome"`
	Detail      datatypes.JSONMap `gorm:"column:detail"`
	CreatedAt   time.Time         `gorm:"column:created_at"`
}

func (Entry) TableName() string {
	return "privacy_audit_log"
}

// Repository is an append-only gorm sink. It exposes no update or delete.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Entry{})
}

func (r *Repository) Record(ctx context.Context, rec models.AuditRecord) error {
	entry := Entry{
		ID:          rec.ID,
		SubjectHash: rec.SubjectHash,
		Operation:   rec.Operation,
		Outcome:     rec.Outcome,
		Detail:      datatypes.JSONMap(rec.Detail),
		CreatedAt:   rec.Timestamp,
	}
	return r.db.WithContext(ctx).Create(&entry).Error
}

func (r *Repository) ListBySubject(ctx context.Context, subjectHash string, limit int) ([]models.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []Entry
	result := r.db.WithContext(ctx).
		Where("subject_hash = ?", subjectHash).
		Order("created_at asc").
		Limit(limit).
		Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}
	out := make([]models.AuditRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.AuditRecord{
			ID:          e.ID,
			SubjectHash: e.SubjectHash,
			Operation:   e.Operation,
			Outcome:     e.Outcome,
			Timestamp:   e.CreatedAt,
			Detail:      map[string]interface{}(e.Detail),
		})
	}
	return out, nil
}
