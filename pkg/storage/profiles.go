package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileRow is the relational form of a released profile. Categorical data,
// vectors and the verdict are stored as JSON columns.
type ProfileRow struct {
	AnonymousID         string         `gorm:"primaryKey;column:anonymous_id"`
	BatchID             string         `gorm:"column:batch_id;index"`
	AlgorithmVersion    string         `gorm:"column:algorithm_version"`
	ComplianceValidated bool           `gorm:"column:compliance_validated"`
	PredictionReady     bool           `gorm:"column:prediction_ready;index"`
	QualityScore        float64        `gorm:"column:quality_score"`
	OverallScore        float64        `gorm:"column:overall_score"`
	Features            datatypes.JSON `gorm:"column:features"`
	VectorFeatures      datatypes.JSON `gorm:"column:vector_features"`
	Embedding           datatypes.JSON `gorm:"column:embedding"`
	SimilarityWeights   datatypes.JSON `gorm:"column:similarity_weights"`
	Verdict             datatypes.JSON `gorm:"column:verdict"`
	EmbeddingExpected   bool           `gorm:"column:embedding_expected"`
	CreatedAt           time.Time      `gorm:"column:created_at"`
	StoredAt            time.Time      `gorm:"column:stored_at"`
}

func (ProfileRow) TableName() string {
	return "anonymized_profiles"
}

type ProfileRepository struct {
	db    *gorm.DB
	clock func() time.Time
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db, clock: time.Now}
}

func (r *ProfileRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&ProfileRow{})
}

// Save upserts profiles keyed by anonymous id. A pseudonym is stable within
// its rotation window, so re-processing a subject replaces the earlier row.
func (r *ProfileRepository) Save(ctx context.Context, batchID string, profiles []*models.AnonymizedProfile) error {
	rows := make([]ProfileRow, 0, len(profiles))
	for _, p := range profiles {
		if p == nil {
			continue
		}
		row, err := toRow(batchID, p, r.clock().UTC())
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).Error
}

func (r *ProfileRepository) Get(ctx context.Context, anonymousID string) (*models.AnonymizedProfile, error) {
	var row ProfileRow
	err := r.db.WithContext(ctx).Where("anonymous_id = ?", anonymousID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRow(row)
}

// ReadyIDsSince returns the anonymous ids of prediction-ready profiles stored
// at or after since.
func (r *ProfileRepository) ReadyIDsSince(ctx context.Context, since time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&ProfileRow{}).
		Where("prediction_ready = ? AND stored_at >= ?", true, since.UTC()).
		Order("stored_at desc").
		Pluck("anonymous_id", &ids).Error
	return ids, err
}

func toRow(batchID string, p *models.AnonymizedProfile, storedAt time.Time) (ProfileRow, error) {
	row := ProfileRow{
		AnonymousID:         p.AnonymousID,
		BatchID:             batchID,
		AlgorithmVersion:    p.AlgorithmVersion,
		ComplianceValidated: p.ComplianceValidated,
		PredictionReady:     p.PredictionReady,
		QualityScore:        p.QualityScore,
		EmbeddingExpected:   p.EmbeddingExpected,
		CreatedAt:           p.CreatedAt,
		StoredAt:            storedAt,
	}
	if p.Verdict != nil {
		row.OverallScore = p.Verdict.OverallScore
	}
	fields := []struct {
		dst *datatypes.JSON
		src interface{}
	}{
		{&row.Features, p.Features},
		{&row.VectorFeatures, p.VectorFeatures},
		{&row.Embedding, p.Embedding},
		{&row.SimilarityWeights, p.SimilarityWeights},
		{&row.Verdict, p.Verdict},
	}
	for _, f := range fields {
		raw, err := json.Marshal(f.src)
		if err != nil {
			return ProfileRow{}, fmt.Errorf("encode profile %s: %w", p.AnonymousID, err)
		}
		*f.dst = datatypes.JSON(raw)
	}
	return row, nil
}

func fromRow(row ProfileRow) (*models.AnonymizedProfile, error) {
	p := &models.AnonymizedProfile{
		AnonymousID:         row.AnonymousID,
		AlgorithmVersion:    row.AlgorithmVersion,
		ComplianceValidated: row.ComplianceValidated,
		PredictionReady:     row.PredictionReady,
		QualityScore:        row.QualityScore,
		EmbeddingExpected:   row.EmbeddingExpected,
		CreatedAt:           row.CreatedAt,
	}
	fields := []struct {
		src datatypes.JSON
		dst interface{}
	}{
		{row.Features, &p.Features},
		{row.VectorFeatures, &p.VectorFeatures},
		{row.Embedding, &p.Embedding},
		{row.SimilarityWeights, &p.SimilarityWeights},
		{row.Verdict, &p.Verdict},
	}
	for _, f := range fields {
		if len(f.src) == 0 {
			continue
		}
		if err := json.Unmarshal(f.src, f.dst); err != nil {
			return nil, fmt.Errorf("decode profile %s: %w", row.AnonymousID, err)
		}
	}
	return p, nil
}
