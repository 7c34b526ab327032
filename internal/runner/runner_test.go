package runner_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"nixgen/internal/runner"
	"nixgen/internal/services"
)

func TestRunCapturesStreamsSeparately(t *testing.T) {
	res, err := runner.Local{}.Run(context.Background(), "sh",
		[]string{"-c", "printf 'out-1\\nout-2\\n'; printf 'err-1\\n' >&2"},
		runner.Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d", res.ExitCode)
	}
	if len(res.Stdout) != 2 || res.Stdout[0] != "out-1" || res.Stdout[1] != "out-2" {
		t.Fatalf("unexpected stdout: %#v", res.Stdout)
	}
	if len(res.Stderr) != 1 || res.Stderr[0] != "err-1" {
		t.Fatalf("unexpected stderr: %#v", res.Stderr)
	}
	if res.Combined != nil {
		t.Fatalf("expected no combined capture in separate mode, got %#v", res.Combined)
	}
}

func TestRunInterleavedTagsLines(t *testing.T) {
	res, err := runner.Local{}.Run(context.Background(), "sh",
		[]string{"-c", "echo first; echo second >&2"},
		runner.Options{Capture: runner.CaptureInterleaved})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Combined) != 2 {
		t.Fatalf("expected 2 combined lines, got %d", len(res.Combined))
	}
	for _, line := range res.Combined {
		if line.At.IsZero() {
			t.Fatalf("combined line missing timestamp: %#v", line)
		}
		if line.Stream != runner.StreamStdout && line.Stream != runner.StreamStderr {
			t.Fatalf("combined line has unknown stream: %#v", line)
		}
	}
}

func TestRunReportsNonzeroExitWithoutError(t *testing.T) {
	res, err := runner.Local{}.Run(context.Background(), "sh",
		[]string{"-c", "echo 'error: evaluation failed' >&2; exit 1"},
		runner.Options{})
	if err != nil {
		t.Fatalf("expected nil error for nonzero exit, got %v", err)
	}
	if res.ExitCode != 1 {
		t.Fatalf("expected exit 1, got %d", res.ExitCode)
	}
	if tail := res.StderrTail(5); tail != "error: evaluation failed" {
		t.Fatalf("unexpected stderr tail: %q", tail)
	}
}

func TestRunDryRunSkipsExecution(t *testing.T) {
	marker := t.TempDir() + "/touched"
	res, err := runner.Local{}.Run(context.Background(), "touch", []string{marker},
		runner.Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ExitCode != 0 || len(res.Stdout) != 0 || len(res.Stderr) != 0 {
		t.Fatalf("expected synthetic empty result, got %#v", res)
	}
	if _, statErr := os.Stat(marker); statErr == nil {
		t.Fatal("dry run executed the command")
	}
}

func TestRunTimeoutTerminatesProcess(t *testing.T) {
	start := time.Now()
	res, err := runner.Local{}.Run(context.Background(), "sh",
		[]string{"-c", "echo started; sleep 30"},
		runner.Options{Timeout: 200 * time.Millisecond})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("timeout took too long: %s", elapsed)
	}
	if res == nil || len(res.Stdout) != 1 || res.Stdout[0] != "started" {
		t.Fatalf("expected pending output flushed before failure, got %#v", res)
	}
}

func TestRunStreamCallbackSeesEveryLine(t *testing.T) {
	var seen []string
	_, err := runner.Local{}.Run(context.Background(), "sh",
		[]string{"-c", "echo a; echo b"},
		runner.Options{Stream: func(line runner.Line) {
			seen = append(seen, line.Text)
		}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Fatalf("unexpected streamed lines: %#v", seen)
	}
}
