package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/mlprofile/pkg/anonymize"
	"github.com/synaptica-ai/mlprofile/pkg/common/kafka"
	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"github.com/synaptica-ai/mlprofile/pkg/pseudonym"
	"github.com/synaptica-ai/mlprofile/pkg/storage"
)

type fakeEngine struct {
	gotK       int
	gotEpsilon float64
	dpCalls    int
	buildErr   error
}

func (f *fakeEngine) BatchBuildProfiles(_ context.Context, records []models.RawSubjectRecord, _ []*string) (anonymize.BatchResult, error) {
	if f.buildErr != nil {
		return anonymize.BatchResult{}, f.buildErr
	}
	res := anonymize.BatchResult{BatchID: "engine-batch"}
	for _, r := range records {
		if r.SubjectID == "" {
			res.Failed++
			continue
		}
		res.Profiles = append(res.Profiles, &models.AnonymizedProfile{AnonymousID: "anon_" + r.SubjectID, PredictionReady: true})
	}
	return res, nil
}

func (f *fakeEngine) ApplyKAnonymity(_ context.Context, profiles []*models.AnonymizedProfile, k int) (anonymize.KAnonymityResult, error) {
	f.gotK = k
	if len(profiles) < k {
		return anonymize.KAnonymityResult{Suppressed: len(profiles)}, nil
	}
	return anonymize.KAnonymityResult{Profiles: profiles, Depth: 1}, nil
}

func (f *fakeEngine) ApplyDifferentialPrivacy(_ context.Context, profiles []*models.AnonymizedProfile, epsilon float64) ([]*models.AnonymizedProfile, error) {
	f.gotEpsilon = epsilon
	f.dpCalls++
	return profiles, nil
}

type published struct {
	eventType string
	payload   interface{}
}

type fakePublisher struct {
	events []published
	err    error
}

func (f *fakePublisher) PublishPayload(_ context.Context, eventType, _ string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, published{eventType, payload})
	return nil
}

type fakeStore struct {
	saved map[string]int
	err   error
}

func (f *fakeStore) Save(_ context.Context, batchID string, profiles []*models.AnonymizedProfile) error {
	if f.err != nil {
		return f.err
	}
	if f.saved == nil {
		f.saved = map[string]int{}
	}
	f.saved[batchID] += len(profiles)
	return nil
}

type fakeCache struct{ puts int }

func (f *fakeCache) Put(_ context.Context, profiles ...*models.AnonymizedProfile) (int, error) {
	f.puts += len(profiles)
	return len(profiles), errors.New("redis down")
}

type fakeReleases struct{ got []*storage.Release }

func (f *fakeReleases) Append(_ context.Context, r *storage.Release) error {
	f.got = append(f.got, r)
	return nil
}

func requestEvent(t *testing.T, req models.BatchProfileRequest) models.Event {
	t.Helper()
	data, err := kafka.ToData(req)
	require.NoError(t, err)
	return kafka.NewEvent(EventRawBatch, "test", data)
}

func newWorker() (*Worker, *fakeEngine, *fakePublisher, *fakeStore, *fakeCache, *fakeReleases) {
	engine := &fakeEngine{}
	pub := &fakePublisher{}
	store := &fakeStore{}
	cache := &fakeCache{}
	releases := &fakeReleases{}
	w := &Worker{
		Engine:    engine,
		Publisher: pub,
		Store:     store,
		Cache:     cache,
		Releases:  releases,
		Config:    Config{Source: "anonymization-service", K: 2, Epsilon: 1},
	}
	return w, engine, pub, store, cache, releases
}

func TestHandleReleasesBatch(t *testing.T) {
	w, engine, pub, store, cache, releases := newWorker()
	event := requestEvent(t, models.BatchProfileRequest{
		BatchID: "batch-1",
		Records: []models.RawSubjectRecord{{SubjectID: "a"}, {SubjectID: "b"}, {}},
		K:       2,
		Epsilon: 0.5,
	})

	require.NoError(t, w.Handle(context.Background(), event))
	assert.Equal(t, 2, engine.gotK)
	assert.Equal(t, 0.5, engine.gotEpsilon)
	assert.Equal(t, 2, store.saved["batch-1"])
	assert.Equal(t, 2, cache.puts, "cache failures do not block the release")

	require.Len(t, pub.events, 1)
	assert.Equal(t, EventProfileRelease, pub.events[0].eventType)
	resp := pub.events[0].payload.(models.BatchProfileResponse)
	assert.Equal(t, "batch-1", resp.BatchID)
	assert.Equal(t, 1, resp.Failed)
	assert.Len(t, resp.Profiles, 2)

	require.Len(t, releases.got, 1)
	assert.Equal(t, &storage.Release{
		BatchID: "batch-1", Records: 3, Profiles: 2, Failed: 1, K: 2, Epsilon: 0.5, Depth: 1, ReadyCount: 2,
	}, releases.got[0])
}

func TestHandleAppliesDefaults(t *testing.T) {
	w, engine, pub, _, _, _ := newWorker()
	w.Config.Epsilon = 0
	w.Config.K = 5

	event := requestEvent(t, models.BatchProfileRequest{Records: []models.RawSubjectRecord{{SubjectID: "a"}}})
	require.NoError(t, w.Handle(context.Background(), event))
	assert.Equal(t, 5, engine.gotK)
	assert.Zero(t, engine.dpCalls, "noise disabled when epsilon is unset")

	resp := pub.events[0].payload.(models.BatchProfileResponse)
	assert.Equal(t, "engine-batch", resp.BatchID)
	assert.Equal(t, 1, resp.Suppressed)
	assert.Empty(t, resp.Profiles)
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	w, _, pub, _, _, _ := newWorker()
	require.NoError(t, w.Handle(context.Background(), kafka.NewEvent("audit", "test", nil)))
	assert.Empty(t, pub.events)
}

func TestHandlePoisonEvents(t *testing.T) {
	w, engine, _, _, _, _ := newWorker()

	err := w.Handle(context.Background(), kafka.NewEvent(EventRawBatch, "test", map[string]interface{}{"records": 42}))
	assert.True(t, IsPoison(err))

	engine.buildErr = wrapCaller(t)
	err = w.Handle(context.Background(), requestEvent(t, models.BatchProfileRequest{Records: []models.RawSubjectRecord{{SubjectID: "a"}}}))
	assert.True(t, IsPoison(err))
}

func TestHandleRetriesInfrastructureFailures(t *testing.T) {
	w, _, pub, store, _, _ := newWorker()
	store.err = errors.New("postgres down")
	err := w.Handle(context.Background(), requestEvent(t, models.BatchProfileRequest{Records: []models.RawSubjectRecord{{SubjectID: "a"}, {SubjectID: "b"}}}))
	require.Error(t, err)
	assert.False(t, IsPoison(err))
	assert.Empty(t, pub.events, "nothing is published before the store succeeds")

	store.err = nil
	pub.err = errors.New("broker unavailable")
	err = w.Handle(context.Background(), requestEvent(t, models.BatchProfileRequest{Records: []models.RawSubjectRecord{{SubjectID: "a"}, {SubjectID: "b"}}}))
	require.Error(t, err)
	assert.False(t, IsPoison(err))
}

// wrapCaller obtains a real caller input error from the engine's validation.
func wrapCaller(t *testing.T) error {
	t.Helper()
	var e *anonymize.Engine
	_, err := e.ApplyKAnonymity(context.Background(), nil, 1)
	require.True(t, anonymize.IsCallerInputError(err))
	return err
}

type fakeRotator struct{ calls int }

func (f *fakeRotator) Rotate(context.Context) pseudonym.RotationInfo {
	f.calls++
	return pseudonym.RotationInfo{PeriodIndex: int64(4 + f.calls)}
}

type fakeReleased struct {
	ids   []string
	since time.Time
	err   error
}

func (f *fakeReleased) ReadyIDsSince(_ context.Context, since time.Time) ([]string, error) {
	f.since = since
	return f.ids, f.err
}

type fakeInvalidator struct {
	evicted []string
	err     error
}

func (f *fakeInvalidator) Invalidate(_ context.Context, ids ...string) error {
	f.evicted = append(f.evicted, ids...)
	return f.err
}

func (f *fakeInvalidator) TTL() time.Duration { return 24 * time.Hour }

func TestRotationEvictsRecentlyCachedProfiles(t *testing.T) {
	now := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)
	rotator := &fakeRotator{}
	store := &fakeReleased{ids: []string{"anon_a", "anon_b"}}
	cache := &fakeInvalidator{}
	r := &Rotation{Engine: rotator, Store: store, Cache: cache, Clock: func() time.Time { return now }}

	info, evicted, err := r.Rotate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.PeriodIndex)
	assert.Equal(t, 2, evicted)
	assert.Equal(t, []string{"anon_a", "anon_b"}, cache.evicted)
	assert.Equal(t, now.Add(-24*time.Hour), store.since)
}

func TestRotationKeepsPeriodWhenLookupFails(t *testing.T) {
	rotator := &fakeRotator{}
	r := &Rotation{Engine: rotator, Store: &fakeReleased{err: errors.New("postgres down")}, Cache: &fakeInvalidator{}}

	_, _, err := r.Rotate(context.Background())
	require.Error(t, err)
	assert.Zero(t, rotator.calls)

	cache := &fakeInvalidator{err: errors.New("redis down")}
	r = &Rotation{Engine: rotator, Store: &fakeReleased{ids: []string{"anon_a"}}, Cache: cache}
	_, _, err = r.Rotate(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, rotator.calls)

	r = &Rotation{Engine: rotator}
	_, evicted, err := r.Rotate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, evicted)
}
