package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func readyProfile(id string) *models.AnonymizedProfile {
	fs := models.CategoricalFeatureSet{
		AgeGroup:         models.AgeReproductive,
		Gender:           models.GenderFemale,
		PregnancyStatus:  models.PregnancyTrimester3,
		LocationCategory: models.LocationUrbanNortheast,
		SeasonCategory:   models.SeasonWinter,
		MedicalHistory:   []models.ClinicalCategory{models.ClinicalRespiratory},
		RiskFactors:      []string{"pregnancy", "winter_season"},
		RiskFactorCount:  2,
		ComorbidityScore: 3,
		Utilization:      models.UtilizationLow,
		Complexity:       models.ComplexityModerate,
		SimilarityWeights: map[string]float64{models.WeightMedical: 0.9},
	}
	return &models.AnonymizedProfile{
		AnonymousID:         id,
		Features:            fs,
		VectorFeatures:      []float64{0.4, 0.2, 0.9, 0.9, 0.85, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0.2},
		Embedding:           []float64{0.125, -0.5},
		SimilarityWeights:   map[string]float64{models.WeightMedical: 0.9},
		EmbeddingExpected:   true,
		QualityScore:        1,
		ComplianceValidated: true,
		PredictionReady:     true,
		Verdict: &models.ComplianceVerdict{
			HIPAACompliant: true, GDPRCompliant: true, SOC2Compliant: true, FHIRCompliant: true,
			OverallScore: 1,
			Violations: []models.Violation{
				{Standard: models.StandardGDPR, Severity: models.SeverityLow, Rule: "note", Message: "informational"},
			},
			CheckedAt: time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC),
		},
		CreatedAt:        time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC),
		AlgorithmVersion: "mlprofile-1.0/v1",
	}
}

func TestProfileCacheRoundTrip(t *testing.T) {
	kv := newFakeRedis()
	cache := NewProfileCache(kv, time.Hour)
	ctx := context.Background()

	held := readyProfile("anon_held")
	held.PredictionReady = false

	n, err := cache.Put(ctx, readyProfile("anon_ready"), held, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only prediction-ready profiles are cached")
	assert.Equal(t, time.Hour, kv.ttls["profile:anon_ready"])

	got, ok, err := cache.Get(ctx, "anon_ready")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, readyProfile("anon_ready"), got)

	_, ok, err = cache.Get(ctx, "anon_held")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Invalidate(ctx, "anon_ready"))
	_, ok, err = cache.Get(ctx, "anon_ready")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProfileCacheErrors(t *testing.T) {
	kv := newFakeRedis()
	kv.err = errors.New("connection refused")
	cache := NewProfileCache(kv, 0)

	_, err := cache.Put(context.Background(), readyProfile("anon_x"))
	assert.Error(t, err)
	_, ok, err := cache.Get(context.Background(), "anon_x")
	assert.Error(t, err)
	assert.False(t, ok)

	kv.err = nil
	kv.data["profile:anon_bad"] = "{not json"
	_, _, err = cache.Get(context.Background(), "anon_bad")
	assert.Error(t, err)
}

func TestProfileRowRoundTrip(t *testing.T) {
	p := readyProfile("anon_row")
	storedAt := time.Date(2025, 1, 21, 0, 0, 0, 0, time.UTC)

	row, err := toRow("batch-1", p, storedAt)
	require.NoError(t, err)
	assert.Equal(t, "batch-1", row.BatchID)
	assert.Equal(t, 1.0, row.OverallScore)
	assert.Equal(t, storedAt, row.StoredAt)
	assert.Contains(t, string(row.Features), `"age_group":"REPRODUCTIVE_AGE"`)

	back, err := fromRow(row)
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=mlprofile dbname=mlprofile sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func TestProfileRepositoryStatements(t *testing.T) {
	db := dryRunDB(t)
	repo := NewProfileRepository(db)
	require.NoError(t, repo.Save(context.Background(), "batch-1", []*models.AnonymizedProfile{readyProfile("anon_a"), nil}))
	require.NoError(t, repo.Save(context.Background(), "batch-1", nil))

	row, err := toRow("batch-1", readyProfile("anon_a"), time.Now())
	require.NoError(t, err)
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&[]ProfileRow{row})
	})
	assert.True(t, strings.HasPrefix(sql, `INSERT INTO "anonymized_profiles"`), sql)
	assert.Contains(t, sql, "ON CONFLICT")

	releases := NewReleaseLog(db)
	require.NoError(t, releases.Append(context.Background(), &Release{BatchID: "batch-1", Records: 3, Profiles: 2, Failed: 1}))
}

type mapProfiles struct {
	rows  map[string]*models.AnonymizedProfile
	reads int
}

func (m *mapProfiles) Get(_ context.Context, id string) (*models.AnonymizedProfile, error) {
	m.reads++
	p, ok := m.rows[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

func TestLookupFallsBackAndRefillsCache(t *testing.T) {
	kv := newFakeRedis()
	cache := NewProfileCache(kv, time.Hour)
	store := &mapProfiles{rows: map[string]*models.AnonymizedProfile{"anon_db": readyProfile("anon_db")}}
	lookup := NewLookup(cache, store)
	ctx := context.Background()

	got, err := lookup.Get(ctx, "anon_db")
	require.NoError(t, err)
	assert.Equal(t, readyProfile("anon_db"), got)
	assert.Contains(t, kv.data, "profile:anon_db")

	_, err = lookup.Get(ctx, "anon_db")
	require.NoError(t, err)
	assert.Equal(t, 1, store.reads, "second read is served from the cache")

	_, err = lookup.Get(ctx, "anon_missing")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	kv.err = errors.New("connection refused")
	got, err = lookup.Get(ctx, "anon_db")
	require.NoError(t, err, "cache outage falls back to postgres")
	assert.Equal(t, "anon_db", got.AnonymousID)
}

func TestReadyIDsSinceStatement(t *testing.T) {
	db := dryRunDB(t)
	since := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var ids []string
		return tx.Model(&ProfileRow{}).
			Where("prediction_ready = ? AND stored_at >= ?", true, since).
			Order("stored_at desc").
			Pluck("anonymous_id", &ids)
	})
	assert.Contains(t, sql, `FROM "anonymized_profiles"`)
	assert.Contains(t, sql, "stored_at >=")

	_, err := NewProfileRepository(db).ReadyIDsSince(context.Background(), since)
	require.NoError(t, err)
}
