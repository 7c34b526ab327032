package nix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nixgen/internal/config"
	"nixgen/internal/logging"
	"nixgen/internal/runner"
	"nixgen/internal/services"
)

// BuildRequest describes one system build.
type BuildRequest struct {
	// Flake is the flake reference, e.g. ".", "github:user/config".
	Flake string
	// Hostname selects the configuration attribute.
	Hostname string
	// Attr is the build attribute within the configuration, normally
	// "toplevel".
	Attr string
	// OutLink is the result symlink path the build tool creates.
	OutLink string
	// ExtraArgs are passed through to the build tool verbatim.
	ExtraArgs []string
	// Stream receives build output lines as they arrive.
	Stream func(runner.Line)
}

// ActivateRequest describes one activation of a built closure.
type ActivateRequest struct {
	// ClosurePath is the built system closure.
	ClosurePath string
	// Action is the switch-to-configuration action: switch, test, or boot.
	Action string
	// Specialisation selects an alternate activation variant beneath the
	// closure, when non-empty.
	Specialisation string
	// Stream receives activation output lines as they arrive.
	Stream func(runner.Line)
}

// Client wraps the external Nix toolchain. It owns command construction; all
// process execution flows through the injected executor.
type Client struct {
	binary            string
	exec              runner.Executor
	logger            *slog.Logger
	buildTimeout      time.Duration
	activationTimeout time.Duration
	minVersion        string
	requiredFeatures  []string
}

// New constructs a client from configuration.
func New(cfg *config.Config, exec runner.Executor, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		binary:            cfg.Nix.Binary,
		exec:              exec,
		logger:            logger,
		buildTimeout:      time.Duration(cfg.Nix.BuildTimeout) * time.Second,
		activationTimeout: time.Duration(cfg.Nix.ActivationTimeout) * time.Second,
		minVersion:        cfg.Nix.MinVersion,
		requiredFeatures:  cfg.Nix.ExperimentalFeatures,
	}
}

// Build runs the external build tool and returns the resolved closure path.
// The build itself is opaque; only its exit code and output are interpreted.
func (c *Client) Build(ctx context.Context, req BuildRequest) (string, *runner.Result, error) {
	attr := req.Attr
	if attr == "" {
		attr = "toplevel"
	}
	installable := fmt.Sprintf("%s#nixosConfigurations.%q.config.system.build.%s",
		req.Flake, req.Hostname, attr)

	args := []string{"build", installable, "--out-link", req.OutLink}
	args = append(args, req.ExtraArgs...)

	logger := logging.WithContext(ctx, c.logger)
	logger.Info("building configuration",
		logging.String(logging.FieldComponent, "nix"),
		logging.String("installable", installable),
	)
	res, err := c.exec.Run(ctx, c.binary, args, runner.Options{
		Timeout: c.buildTimeout,
		Stream:  req.Stream,
		Logger:  logger,
	})
	if err != nil {
		return "", res, err
	}
	if res.ExitCode != 0 {
		detail := fmt.Sprintf("exit code %d", res.ExitCode)
		if tail := res.StderrTail(5); tail != "" {
			detail += "\n" + tail
		}
		return "", res, services.Wrap(services.ErrBuildFailed, "nix", "build", detail, nil)
	}

	closurePath, err := resolveOutLink(req.OutLink)
	if err != nil {
		return "", res, services.Wrap(services.ErrBuildFailed, "nix", "build", "resolve output path", err)
	}
	return closurePath, res, nil
}

// Activate runs the closure's switch-to-configuration script with the given
// action. The caller decides how failures feed the state machine.
func (c *Client) Activate(ctx context.Context, req ActivateRequest) (*runner.Result, error) {
	root := req.ClosurePath
	if req.Specialisation != "" {
		root = filepath.Join(root, "specialisation", req.Specialisation)
		if _, err := os.Stat(root); err != nil {
			return nil, services.Wrap(services.ErrActivationFailed, "nix", "activate",
				fmt.Sprintf("specialisation %q not present in closure", req.Specialisation), err)
		}
	}
	script := filepath.Join(root, "bin", "switch-to-configuration")

	logger := logging.WithContext(ctx, c.logger)
	logger.Info("activating configuration",
		logging.String(logging.FieldComponent, "nix"),
		logging.String("script", script),
		logging.String("action", req.Action),
	)
	res, err := c.exec.Run(ctx, script, []string{req.Action}, runner.Options{
		Timeout: c.activationTimeout,
		Stream:  req.Stream,
		Logger:  logger,
	})
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, services.Wrap(services.ErrActivationFailed, "nix", "activate",
			fmt.Sprintf("exit code %d", res.ExitCode), nil)
	}
	return res, nil
}

func resolveOutLink(outLink string) (string, error) {
	target, err := os.Readlink(outLink)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("out-link %s was not created", outLink)
		}
		return "", err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(outLink), target)
	}
	return filepath.Clean(strings.TrimSpace(target)), nil
}
