// Package ops serves the worker's operational endpoints: liveness,
// readiness, Prometheus metrics, pseudonym rotation and released-profile
// lookup.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/mlprofile/pkg/common/logger"
	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"github.com/synaptica-ai/mlprofile/pkg/observability/metrics"
	"github.com/synaptica-ai/mlprofile/pkg/pseudonym"
	"github.com/synaptica-ai/mlprofile/pkg/storage"
)

// Check is one readiness check, e.g. a database ping.
type Check struct {
	Name string
	Ping func() error
}

// Scheduler reports the active pseudonym rotation window.
type Scheduler interface {
	RotationSchedule() pseudonym.RotationInfo
}

func NewRouter(schedule Scheduler, checks ...Check) *mux.Router {
	router := mux.NewRouter()
	router.Use(Recovery, Logging)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "healthy"})
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		failing := map[string]string{}
		for _, c := range checks {
			if err := c.Ping(); err != nil {
				failing[c.Name] = err.Error()
			}
		}
		if len(failing) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not_ready", "failing": failing})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready"})
	}).Methods(http.MethodGet)

	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	if schedule != nil {
		router.HandleFunc("/rotation", func(w http.ResponseWriter, r *http.Request) {
			info := schedule.RotationSchedule()
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"period_index":  info.PeriodIndex,
				"period_days":   info.PeriodDays,
				"current_start": info.CurrentStart.Format("2006-01-02"),
				"next_start":    info.NextStart.Format("2006-01-02"),
			})
		}).Methods(http.MethodGet)
	}

	return router
}

// Rotator advances the pseudonym period and reports evicted cache entries.
type Rotator interface {
	Rotate(ctx context.Context) (pseudonym.RotationInfo, int, error)
}

// ProfileReader looks up one released profile by anonymous id.
type ProfileReader interface {
	Get(ctx context.Context, anonymousID string) (*models.AnonymizedProfile, error)
}

// RegisterRotation mounts POST /rotation.
func RegisterRotation(router *mux.Router, rotator Rotator) {
	router.HandleFunc("/rotation", func(w http.ResponseWriter, r *http.Request) {
		info, evicted, err := rotator.Rotate(r.Context())
		if err != nil {
			logger.Log.WithError(err).Error("pseudonym rotation failed")
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "rotation failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"period_index": info.PeriodIndex,
			"next_start":   info.NextStart.Format("2006-01-02"),
			"evicted":      evicted,
		})
	}).Methods(http.MethodPost)
}

// RegisterProfiles mounts GET /profiles/{id}.
func RegisterProfiles(router *mux.Router, profiles ProfileReader) {
	router.HandleFunc("/profiles/{id}", func(w http.ResponseWriter, r *http.Request) {
		p, err := profiles.Get(r.Context(), mux.Vars(r)["id"])
		switch {
		case errors.Is(err, storage.ErrProfileNotFound):
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "profile not found"})
		case err != nil:
			logger.Log.WithError(err).Error("profile lookup failed")
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "lookup failed"})
		default:
			writeJSON(w, http.StatusOK, p)
		}
	}).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
