package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestConfig writes a config rooted in a per-test temp directory and
// returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
state_dir = %q
profiles_dir = %q
log_dir = %q

[logging]
level = "error"
`,
		filepath.Join(base, "state"),
		filepath.Join(base, "profiles"),
		filepath.Join(base, "logs"),
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGenerationsCommandEmptyJSON(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCommand(t, "generations", "--json", "-c", cfgPath)
	if err != nil {
		t.Fatalf("generations failed: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", out)
	}
}

func TestCleanCommandNothingToRemove(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCommand(t, "clean", "-c", cfgPath)
	if err != nil {
		t.Fatalf("clean failed: %v", err)
	}
	if !strings.Contains(out, "Nothing to remove.") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestEnvCommandExportFromFile(t *testing.T) {
	cfgPath := writeTestConfig(t)
	envPath := filepath.Join(t.TempDir(), "env")
	if err := os.WriteFile(envPath, []byte("FOO=bar\nBAZ=with space\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	out, err := runCommand(t, "env", "--export", "-f", envPath, "-c", cfgPath)
	if err != nil {
		t.Fatalf("env failed: %v", err)
	}
	if !strings.Contains(out, "export FOO='bar'") || !strings.Contains(out, "export BAZ='with space'") {
		t.Fatalf("unexpected export output: %q", out)
	}
}

func TestEnvCommandWriteFile(t *testing.T) {
	cfgPath := writeTestConfig(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, "env")
	if err := os.WriteFile(envPath, []byte("FOO=bar\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	outPath := filepath.Join(dir, "out")

	if _, err := runCommand(t, "env", "-f", envPath, "-w", outPath, "-c", cfgPath); err != nil {
		t.Fatalf("env failed: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "FOO=bar\n" {
		t.Fatalf("unexpected file content %q", data)
	}
}

func TestRollbackWithoutGenerationsFails(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := runCommand(t, "rollback", "-c", cfgPath)
	if err == nil {
		t.Fatal("expected rollback on an empty profile to fail")
	}
}
