package storage

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Release is the immutable summary of one cohort released by the worker.
type Release struct {
	BatchID     string    `gorm:"primaryKey;column:batch_id"`
	Records     int       `gorm:"column:records"`
	Profiles    int       `gorm:"column:profiles"`
	Failed      int       `gorm:"column:failed"`
	Suppressed  int       `gorm:"column:suppressed"`
	K           int       `gorm:"column:k"`
	Epsilon     float64   `gorm:"column:epsilon"`
	Depth       int       `gorm:"column:generalization_depth"`
	ReadyCount  int       `gorm:"column:prediction_ready"`
	CompletedAt time.Time `gorm:"column:completed_at;index"`
}

func (Release) TableName() string {
	return "cohort_releases"
}

// ReleaseLog appends cohort release summaries. Rows are never updated.
type ReleaseLog struct {
	db *gorm.DB
}

func NewReleaseLog(db *gorm.DB) *ReleaseLog {
	return &ReleaseLog{db: db}
}

func (l *ReleaseLog) AutoMigrate() error {
	return l.db.AutoMigrate(&Release{})
}

func (l *ReleaseLog) Append(ctx context.Context, r *Release) error {
	if r.CompletedAt.IsZero() {
		r.CompletedAt = time.Now().UTC()
	}
	return l.db.WithContext(ctx).Create(r).Error
}

func (l *ReleaseLog) Recent(ctx context.Context, limit int) ([]Release, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Release
	err := l.db.WithContext(ctx).Order("completed_at desc").Limit(limit).Find(&out).Error
	return out, err
}
