package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestHashSubjectStableAndOpaque(t *testing.T) {
	a := HashSubject("patient-42")
	if a != HashSubject("patient-42") {
		t.Fatal("expected stable hash")
	}
	if len(a) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", a)
	}
	if strings.Contains(a, "patient") {
		t.Fatal("hash must not contain the id")
	}
	if HashSubject("") != "" {
		t.Fatal("empty id should hash to empty string")
	}
}

func TestHashSubjectIsKeyed(t *testing.T) {
	subjectKeyMu.RLock()
	prev := string(subjectKey)
	subjectKeyMu.RUnlock()
	defer SetSubjectKey(prev)

	SetSubjectKey("installation-a")
	a := HashSubject("patient-42")
	SetSubjectKey("")
	if HashSubject("patient-42") != a {
		t.Fatal("empty key must keep the installed key")
	}

	SetSubjectKey("installation-b")
	if HashSubject("patient-42") == a {
		t.Fatal("different keys must give different hashes")
	}
}

func TestSubjectHashNeverLogsRawID(t *testing.T) {
	var buf bytes.Buffer
	prev := Log
	Log = newLogger(&buf, "debug")
	defer func() { Log = prev }()

	WithField("subject_hash", HashSubject("patient-42")).Info("built profile")
	out := buf.String()
	if strings.Contains(out, "patient-42") {
		t.Fatalf("raw subject id leaked: %s", out)
	}
	if !strings.Contains(out, HashSubject("patient-42")) {
		t.Fatalf("expected hashed subject in output: %s", out)
	}
}
