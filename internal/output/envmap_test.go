package output_test

import (
	"bytes"
	"strings"
	"testing"

	"nixgen/internal/logging"
	"nixgen/internal/output"
)

func TestParseEnvironmentPlainLines(t *testing.T) {
	input := "FOO=bar\nBAZ=qux with spaces\n"
	env, err := output.ParseEnvironment(strings.NewReader(input), logging.NewNop())
	if err != nil {
		t.Fatalf("ParseEnvironment failed: %v", err)
	}
	if env.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", env.Len())
	}
	if v, _ := env.Get("BAZ"); v != "qux with spaces" {
		t.Fatalf("unexpected value %q", v)
	}
	if keys := env.Keys(); keys[0] != "FOO" || keys[1] != "BAZ" {
		t.Fatalf("insertion order lost: %v", keys)
	}
}

func TestParseEnvironmentSkipsMalformedLines(t *testing.T) {
	input := "FOO=bar\nnot an assignment\n=nokey\nBAZ=qux\n"
	env, err := output.ParseEnvironment(strings.NewReader(input), logging.NewNop())
	if err != nil {
		t.Fatalf("ParseEnvironment failed: %v", err)
	}
	if env.Len() != 2 {
		t.Fatalf("expected malformed lines skipped, got %d entries", env.Len())
	}
}

func TestParseEnvironmentJSONObject(t *testing.T) {
	input := `{"FOO": "bar", "BAZ": "qux"}`
	env, err := output.ParseEnvironment(strings.NewReader(input), logging.NewNop())
	if err != nil {
		t.Fatalf("ParseEnvironment failed: %v", err)
	}
	if v, _ := env.Get("FOO"); v != "bar" {
		t.Fatalf("unexpected value %q", v)
	}
	if env.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", env.Len())
	}
}

func TestShellExportRoundTrip(t *testing.T) {
	env := output.NewEnvironmentMap()
	env.Set("PATH", "/usr/bin:/bin")
	env.Set("MESSAGE", "it's 'quoted'")
	env.Set("EMPTY", "")

	var buf bytes.Buffer
	if err := env.WriteEnvironment(&buf, output.ModeShellExport); err != nil {
		t.Fatalf("WriteEnvironment failed: %v", err)
	}

	parsed, err := output.ParseEnvironment(&buf, logging.NewNop())
	if err != nil {
		t.Fatalf("ParseEnvironment failed: %v", err)
	}
	if parsed.Len() != env.Len() {
		t.Fatalf("round trip changed length: %d != %d", parsed.Len(), env.Len())
	}
	for _, key := range env.Keys() {
		want, _ := env.Get(key)
		got, ok := parsed.Get(key)
		if !ok || got != want {
			t.Fatalf("round trip lost %s: got %q, want %q", key, got, want)
		}
	}
	if keys := parsed.Keys(); keys[0] != "PATH" {
		t.Fatalf("round trip lost insertion order: %v", keys)
	}
}
