package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"nixgen/internal/logging"
	"nixgen/internal/services"
)

// CaptureMode selects how subprocess output streams are recorded.
type CaptureMode int

const (
	// CaptureSeparate records stdout and stderr independently. Lines within
	// one stream preserve emission order; no ordering is defined across
	// streams.
	CaptureSeparate CaptureMode = iota
	// CaptureInterleaved additionally records a timestamp-tagged merged view
	// of both streams in arrival order.
	CaptureInterleaved
)

// Stream identifies the origin of a captured line.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Line is one captured output line.
type Line struct {
	Stream Stream
	Text   string
	At     time.Time
}

// Options controls a single subprocess invocation.
type Options struct {
	Capture CaptureMode
	// DryRun logs the command line without executing it and returns a
	// synthetic zero-exit result.
	DryRun bool
	// Timeout bounds the subprocess lifetime. Zero disables the deadline.
	// On expiry the process receives SIGTERM, pending output is flushed,
	// and the call fails with the timeout marker.
	Timeout time.Duration
	// Stream, when set, receives every captured line as it arrives. It is
	// invoked from a single goroutine.
	Stream func(Line)
	// Env appends KEY=value entries to the subprocess environment.
	Env    []string
	Logger *slog.Logger
}

// Result is the structured outcome of one subprocess invocation.
type Result struct {
	ExitCode int
	Stdout   []string
	Stderr   []string
	// Combined holds the timestamp-tagged merged stream when
	// CaptureInterleaved was requested.
	Combined []Line
	Duration time.Duration
}

// StderrTail returns the last n captured stderr lines joined for error reporting.
func (r *Result) StderrTail(n int) string {
	if r == nil || len(r.Stderr) == 0 {
		return ""
	}
	lines := r.Stderr
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Executor abstracts subprocess execution so lifecycle components stay
// testable without spawning real processes.
type Executor interface {
	Run(ctx context.Context, command string, args []string, opts Options) (*Result, error)
}

// Local executes subprocesses on the local machine. It is the only component
// permitted to create or signal OS processes.
type Local struct{}

// Run spawns the subprocess and drains both output streams concurrently
// through a single queue, preserving per-stream arrival order. It returns
// once the process has exited and both drains have completed.
//
// A nonzero exit is reported in Result.ExitCode with a nil error; callers
// classify it. The returned error is non-nil only for start failures and
// timeouts.
func (Local) Run(ctx context.Context, command string, args []string, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	cmdline := commandLine(command, args)

	if opts.DryRun {
		logger.Info("dry run: skipping execution",
			logging.String(logging.FieldComponent, "runner"),
			logging.String("command", cmdline),
		)
		return &Result{ExitCode: 0}, nil
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, command, args...) //nolint:gosec
	cmd.Cancel = func() error {
		return cmd.Process.Signal(unix.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second
	if len(opts.Env) > 0 {
		cmd.Env = append(cmd.Environ(), opts.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	logger.Debug("starting subprocess",
		logging.String(logging.FieldComponent, "runner"),
		logging.String("command", cmdline),
	)
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", command, err)
	}

	lines := make(chan Line, 64)
	var drains sync.WaitGroup
	drains.Add(2)
	go drain(&drains, lines, StreamStdout, stdout)
	go drain(&drains, lines, StreamStderr, stderr)

	result := &Result{}
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for line := range lines {
			switch line.Stream {
			case StreamStdout:
				result.Stdout = append(result.Stdout, line.Text)
			case StreamStderr:
				result.Stderr = append(result.Stderr, line.Text)
			}
			if opts.Capture == CaptureInterleaved {
				result.Combined = append(result.Combined, line)
			}
			if opts.Stream != nil {
				opts.Stream(line)
			}
		}
	}()

	drains.Wait()
	close(lines)
	<-collected

	waitErr := cmd.Wait()
	result.Duration = time.Since(start)
	result.ExitCode = exitCode(cmd, waitErr)

	if runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		logger.Error("subprocess timed out",
			logging.String(logging.FieldComponent, "runner"),
			logging.String("command", cmdline),
			logging.Duration("timeout", opts.Timeout),
		)
		return result, services.Wrap(services.ErrTimeout, "runner", command,
			fmt.Sprintf("terminated after %s", opts.Timeout), nil)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return result, fmt.Errorf("wait %s: %w", command, waitErr)
		}
	}

	logger.Debug("subprocess finished",
		logging.String(logging.FieldComponent, "runner"),
		logging.String("command", cmdline),
		logging.Int("exit_code", result.ExitCode),
		logging.Duration("duration", result.Duration),
	)
	return result, nil
}

var _ Executor = Local{}

func drain(wg *sync.WaitGroup, out chan<- Line, stream Stream, r io.Reader) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		out <- Line{Stream: stream, Text: scanner.Text(), At: time.Now()}
	}
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

func commandLine(command string, args []string) string {
	if len(args) == 0 {
		return command
	}
	return command + " " + strings.Join(args, " ")
}
