package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"github.com/synaptica-ai/mlprofile/pkg/pseudonym"
	"github.com/synaptica-ai/mlprofile/pkg/storage"
)

type fixedSchedule struct{}

func (fixedSchedule) RotationSchedule() pseudonym.RotationInfo {
	start := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)
	return pseudonym.RotationInfo{PeriodIndex: 5, PeriodDays: 90, CurrentStart: start, NextStart: start.AddDate(0, 0, 90)}
}

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	router := NewRouter(nil)

	rec := serve(t, router, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = serve(t, router, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mlprofile_profiles_built_total")

	assert.Equal(t, http.StatusNotFound, serve(t, router, "/rotation").Code)
}

func TestReadinessReportsFailingChecks(t *testing.T) {
	healthy := NewRouter(nil, Check{Name: "postgres", Ping: func() error { return nil }})
	assert.Equal(t, http.StatusOK, serve(t, healthy, "/ready").Code)

	broken := NewRouter(nil,
		Check{Name: "postgres", Ping: func() error { return nil }},
		Check{Name: "redis", Ping: func() error { return errors.New("dial tcp: refused") }},
	)
	rec := serve(t, broken, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status  string            `json:"status"`
		Failing map[string]string `json:"failing"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, map[string]string{"redis": "dial tcp: refused"}, body.Failing)
}

func TestRotationEndpoint(t *testing.T) {
	rec := serve(t, NewRouter(fixedSchedule{}), "/rotation")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"next_start":"2025-06-29"`), rec.Body.String())
}

func TestRecoveryMiddleware(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := serve(t, h, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type stubRotator struct{ err error }

func (s stubRotator) Rotate(context.Context) (pseudonym.RotationInfo, int, error) {
	if s.err != nil {
		return pseudonym.RotationInfo{}, 0, s.err
	}
	info := fixedSchedule{}.RotationSchedule()
	info.PeriodIndex++
	return info, 3, nil
}

type stubProfiles map[string]*models.AnonymizedProfile

func (s stubProfiles) Get(_ context.Context, id string) (*models.AnonymizedProfile, error) {
	if id == "anon_broken" {
		return nil, errors.New("connection reset")
	}
	p, ok := s[id]
	if !ok {
		return nil, storage.ErrProfileNotFound
	}
	return p, nil
}

func TestRotateEndpoint(t *testing.T) {
	router := NewRouter(fixedSchedule{})
	RegisterRotation(router, stubRotator{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rotation", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"evicted":3`)
	assert.Contains(t, rec.Body.String(), `"period_index":6`)

	assert.Equal(t, http.StatusOK, serve(t, router, "/rotation").Code, "schedule stays readable")

	failing := NewRouter(nil)
	RegisterRotation(failing, stubRotator{err: errors.New("postgres down")})
	rec = httptest.NewRecorder()
	failing.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rotation", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestProfileEndpoint(t *testing.T) {
	router := NewRouter(nil)
	RegisterProfiles(router, stubProfiles{"anon_a": {AnonymousID: "anon_a", PredictionReady: true}})

	rec := serve(t, router, "/profiles/anon_a")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"anonymous_id":"anon_a"`)

	assert.Equal(t, http.StatusNotFound, serve(t, router, "/profiles/anon_missing").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(t, router, "/profiles/anon_broken").Code)
}
