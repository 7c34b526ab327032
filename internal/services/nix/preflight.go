package nix

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"

	"nixgen/internal/logging"
	"nixgen/internal/runner"
	"nixgen/internal/services"
)

var versionPattern = regexp.MustCompile(`\b(\d+\.\d+(?:\.\d+)?)\b`)

// Preflight verifies the external toolchain is usable before any build
// starts: the binary answers, meets the minimum version, and has the
// required experimental features enabled.
func (c *Client) Preflight(ctx context.Context) error {
	version, err := c.toolVersion(ctx)
	if err != nil {
		return err
	}
	if c.minVersion != "" && semver.Compare(canonical(version), canonical(c.minVersion)) < 0 {
		return services.Wrap(services.ErrBuildFailed, "nix", "preflight",
			fmt.Sprintf("nix %s is older than required %s", version, c.minVersion), nil)
	}

	if len(c.requiredFeatures) > 0 {
		enabled, err := c.experimentalFeatures(ctx)
		if err != nil {
			return err
		}
		var missing []string
		for _, want := range c.requiredFeatures {
			if !enabled[want] {
				missing = append(missing, want)
			}
		}
		if len(missing) > 0 {
			return services.Wrap(services.ErrBuildFailed, "nix", "preflight",
				fmt.Sprintf("experimental features not enabled: %s", strings.Join(missing, ", ")), nil)
		}
	}

	c.logger.Debug("preflight passed",
		logging.String(logging.FieldComponent, "nix"),
		logging.String("version", version),
	)
	return nil
}

func (c *Client) toolVersion(ctx context.Context) (string, error) {
	res, err := c.exec.Run(ctx, c.binary, []string{"--version"}, runner.Options{Logger: c.logger})
	if err != nil {
		return "", services.Wrap(services.ErrBuildFailed, "nix", "preflight", "query nix version", err)
	}
	if res.ExitCode != 0 {
		return "", services.Wrap(services.ErrBuildFailed, "nix", "preflight",
			fmt.Sprintf("nix --version exited with code %d", res.ExitCode), nil)
	}
	output := strings.Join(res.Stdout, "\n")
	match := versionPattern.FindStringSubmatch(output)
	if match == nil {
		return "", services.Wrap(services.ErrBuildFailed, "nix", "preflight",
			fmt.Sprintf("unrecognized version output %q", strings.TrimSpace(output)), nil)
	}
	return match[1], nil
}

func (c *Client) experimentalFeatures(ctx context.Context) (map[string]bool, error) {
	res, err := c.exec.Run(ctx, c.binary, []string{"config", "show", "experimental-features"}, runner.Options{Logger: c.logger})
	if err != nil {
		return nil, services.Wrap(services.ErrBuildFailed, "nix", "preflight", "query experimental features", err)
	}
	if res.ExitCode != 0 {
		return nil, services.Wrap(services.ErrBuildFailed, "nix", "preflight",
			fmt.Sprintf("nix config show exited with code %d", res.ExitCode), nil)
	}
	enabled := make(map[string]bool)
	for _, line := range res.Stdout {
		for _, feature := range strings.Fields(line) {
			enabled[feature] = true
		}
	}
	return enabled, nil
}

func canonical(version string) string {
	v := "v" + strings.TrimPrefix(version, "v")
	if semver.IsValid(v) {
		return v
	}
	// Two-segment versions like "2.18" need a patch digit for comparison.
	if semver.IsValid(v + ".0") {
		return v + ".0"
	}
	return v
}
