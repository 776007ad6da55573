package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

var (
	profilesBuilt       atomic.Int64
	profilesReady       atomic.Int64
	profilesFailed      atomic.Int64
	profilesSuppressed  atomic.Int64
	embeddingFailures   atomic.Int64
	complianceFailures  atomic.Int64
	kAnonymityRuns      atomic.Int64
	dpRuns              atomic.Int64
	generalizationDepth atomic.Int64
)

// ObserveProfile counts one assembled profile and its gate outcomes.
func ObserveProfile(validated, ready, embeddingFailed bool) {
	profilesBuilt.Add(1)
	if ready {
		profilesReady.Add(1)
	}
	if !validated {
		complianceFailures.Add(1)
	}
	if embeddingFailed {
		embeddingFailures.Add(1)
	}
}

func ObserveBatchFailures(n int) {
	profilesFailed.Add(int64(n))
}

func ObserveKAnonymity(suppressed, depth int) {
	kAnonymityRuns.Add(1)
	profilesSuppressed.Add(int64(suppressed))
	generalizationDepth.Store(int64(depth))
}

func ObserveDifferentialPrivacy() {
	dpRuns.Add(1)
}

type Snapshot struct {
	ProfilesBuilt      int64
	ProfilesReady      int64
	ProfilesFailed     int64
	ProfilesSuppressed int64
	EmbeddingFailures  int64
	ComplianceFailures int64
	KAnonymityRuns     int64
	DPRuns             int64
}

func Read() Snapshot {
	return Snapshot{
		ProfilesBuilt:      profilesBuilt.Load(),
		ProfilesReady:      profilesReady.Load(),
		ProfilesFailed:     profilesFailed.Load(),
		ProfilesSuppressed: profilesSuppressed.Load(),
		EmbeddingFailures:  embeddingFailures.Load(),
		ComplianceFailures: complianceFailures.Load(),
		KAnonymityRuns:     kAnonymityRuns.Load(),
		DPRuns:             dpRuns.Load(),
	}
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	writeMetrics(w)
}

func writeMetrics(w io.Writer) {
	fmt.Fprintf(w, "# HELP mlprofile_profiles_built_total Number of anonymized profiles assembled.\n")
	fmt.Fprintf(w, "# TYPE mlprofile_profiles_built_total counter\n")
	fmt.Fprintf(w, "mlprofile_profiles_built_total %d\n", profilesBuilt.Load())

	fmt.Fprintf(w, "# HELP mlprofile_profiles_prediction_ready_total Number of profiles released as prediction ready.\n")
	fmt.Fprintf(w, "# TYPE mlprofile_profiles_prediction_ready_total counter\n")
	fmt.Fprintf(w, "mlprofile_profiles_prediction_ready_total %d\n", profilesReady.Load())

	fmt.Fprintf(w, "# HELP mlprofile_profiles_failed_total Number of batch records dropped after an unexpected error.\n")
	fmt.Fprintf(w, "# TYPE mlprofile_profiles_failed_total counter\n")
	fmt.Fprintf(w, "mlprofile_profiles_failed_total %d\n", profilesFailed.Load())

	fmt.Fprintf(w, "# HELP mlprofile_profiles_suppressed_total Number of profiles suppressed by k-anonymity.\n")
	fmt.Fprintf(w, "# TYPE mlprofile_profiles_suppressed_total counter\n")
	fmt.Fprintf(w, "mlprofile_profiles_suppressed_total %d\n", profilesSuppressed.Load())

	fmt.Fprintf(w, "# HELP mlprofile_embedding_failures_total Number of embedding calls that failed, timed out or returned the wrong dimension.\n")
	fmt.Fprintf(w, "# TYPE mlprofile_embedding_failures_total counter\n")
	fmt.Fprintf(w, "mlprofile_embedding_failures_total %d\n", embeddingFailures.Load())

	fmt.Fprintf(w, "# HELP mlprofile_compliance_failures_total Number of profiles below the compliance gate.\n")
	fmt.Fprintf(w, "# TYPE mlprofile_compliance_failures_total counter\n")
	fmt.Fprintf(w, "mlprofile_compliance_failures_total %d\n", complianceFailures.Load())

	fmt.Fprintf(w, "# HELP mlprofile_kanonymity_runs_total Number of k-anonymity passes.\n")
	fmt.Fprintf(w, "# TYPE mlprofile_kanonymity_runs_total counter\n")
	fmt.Fprintf(w, "mlprofile_kanonymity_runs_total %d\n", kAnonymityRuns.Load())

	fmt.Fprintf(w, "# HELP mlprofile_kanonymity_last_depth Generalization depth reached by the latest k-anonymity pass.\n")
	fmt.Fprintf(w, "# TYPE mlprofile_kanonymity_last_depth gauge\n")
	fmt.Fprintf(w, "mlprofile_kanonymity_last_depth %d\n", generalizationDepth.Load())

	fmt.Fprintf(w, "# HELP mlprofile_dp_runs_total Number of differential-privacy passes.\n")
	fmt.Fprintf(w, "# TYPE mlprofile_dp_runs_total counter\n")
	fmt.Fprintf(w, "mlprofile_dp_runs_total %d\n", dpRuns.Load())
}
