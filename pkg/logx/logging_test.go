package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLoggerWithFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "reminder"))

	log.Info("armed", Int("n", 2), Err(errors.New("boom")))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if m["comp"] != "reminder" || m["message"] != "armed" {
		t.Fatalf("unexpected fields: %v", m)
	}
	if m["n"] != float64(2) {
		t.Fatalf("n = %v, want 2", m["n"])
	}
	if _, ok := m["caller"]; !ok {
		t.Fatal("expected short caller field")
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %q", buf.String())
	}
	if log.Enabled(LevelInfo) {
		t.Fatal("Enabled(info) = true at warn level")
	}
}

func TestZeroLoggerIsNop(t *testing.T) {
	t.Parallel()
	var log Logger
	if !log.IsZero() {
		t.Fatal("zero Logger should report IsZero")
	}
	log.Error("nothing happens")
}

func TestFormatChatJSON(t *testing.T) {
	t.Parallel()
	out := formatChatJSON([]byte(`{"level":"warn","message":"update check failed","err":"dial tcp"}`))
	if !strings.HasPrefix(out, "[WARN] update check failed") {
		t.Fatalf("unexpected prefix: %q", out)
	}
	if !strings.Contains(out, "- err=dial tcp") {
		t.Fatalf("missing field: %q", out)
	}
}
