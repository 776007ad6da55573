package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCountersAndExposition(t *testing.T) {
	before := Read()

	ObserveProfile(true, true, false)
	ObserveProfile(false, false, true)
	ObserveBatchFailures(2)
	ObserveKAnonymity(3, 4)
	ObserveDifferentialPrivacy()

	after := Read()
	if got := after.ProfilesBuilt - before.ProfilesBuilt; got != 2 {
		t.Fatalf("profiles built delta = %d", got)
	}
	if got := after.ProfilesReady - before.ProfilesReady; got != 1 {
		t.Fatalf("prediction ready delta = %d", got)
	}
	if got := after.ComplianceFailures - before.ComplianceFailures; got != 1 {
		t.Fatalf("compliance failures delta = %d", got)
	}
	if got := after.EmbeddingFailures - before.EmbeddingFailures; got != 1 {
		t.Fatalf("embedding failures delta = %d", got)
	}
	if got := after.ProfilesFailed - before.ProfilesFailed; got != 2 {
		t.Fatalf("failed delta = %d", got)
	}
	if got := after.ProfilesSuppressed - before.ProfilesSuppressed; got != 3 {
		t.Fatalf("suppressed delta = %d", got)
	}

	rec := httptest.NewRecorder()
	WritePrometheus(rec)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	for _, name := range []string{
		"mlprofile_profiles_built_total",
		"mlprofile_profiles_prediction_ready_total",
		"mlprofile_profiles_suppressed_total",
		"mlprofile_kanonymity_last_depth 4",
		"mlprofile_dp_runs_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("exposition missing %s", name)
		}
	}
}
