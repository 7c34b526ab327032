package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nixgen/internal/logging"
	"nixgen/internal/services"
)

func TestNewJSONLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nixgen.log")
	logger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("activation complete",
		logging.String(logging.FieldProfile, "system"),
		logging.Uint64(logging.FieldGeneration, 3),
	)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, data)
	}
	if entry["msg"] != "activation complete" {
		t.Fatalf("unexpected message: %#v", entry)
	}
	if entry["level"] != "info" {
		t.Fatalf("unexpected level: %#v", entry)
	}
	if entry["profile"] != "system" {
		t.Fatalf("profile field missing: %#v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected unknown format to be rejected")
	}
}

func TestContextFields(t *testing.T) {
	ctx := services.WithProfile(context.Background(), "system")
	ctx = services.WithOperation(ctx, "apply")
	ctx = services.WithRunID(ctx, "run-123")

	fields := logging.ContextFields(ctx)
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	got := make(map[string]string, len(fields))
	for _, f := range fields {
		got[f.Key] = f.Value.String()
	}
	if got[logging.FieldProfile] != "system" || got[logging.FieldOperation] != "apply" || got[logging.FieldRunID] != "run-123" {
		t.Fatalf("unexpected fields: %#v", got)
	}
}

func TestContextFieldsEmptyContext(t *testing.T) {
	if fields := logging.ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("expected no fields, got %#v", fields)
	}
}

func TestConsoleFormatViaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("build complete", logging.String("closure", "/nix/store/abc"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := strings.TrimSpace(string(data))
	if !strings.Contains(line, "INFO") || !strings.Contains(line, "build complete") || !strings.Contains(line, "closure=/nix/store/abc") {
		t.Fatalf("unexpected console line: %q", line)
	}
}
