package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir    string `toml:"state_dir"`
	ProfilesDir string `toml:"profiles_dir"`
	LogDir      string `toml:"log_dir"`
}

// Nix contains configuration for the external build toolchain.
type Nix struct {
	Binary               string   `toml:"binary"`
	StoreBinary          string   `toml:"store_binary"`
	BuildTimeout         int      `toml:"build_timeout"`
	ActivationTimeout    int      `toml:"activation_timeout"`
	MinVersion           string   `toml:"min_version"`
	ExperimentalFeatures []string `toml:"experimental_features"`
}

// Activation contains defaults for build and switch commands.
type Activation struct {
	Profile  string `toml:"profile"`
	Flake    string `toml:"flake"`
	Hostname string `toml:"hostname"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Clean contains default generation retention policy.
type Clean struct {
	KeepLast            int  `toml:"keep_last"`
	KeepSinceDays       int  `toml:"keep_since_days"`
	KeepSpecialisations bool `toml:"keep_specialisations"`
}

// Config aggregates all settings.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Nix        Nix        `toml:"nix"`
	Activation Activation `toml:"activation"`
	Logging    Logging    `toml:"logging"`
	Clean      Clean      `toml:"clean"`
}

// Load reads configuration from the given path, falling back to the default
// location, and applies defaults, normalization, and validation. It returns
// the config, the resolved path, and whether a file existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// DefaultConfigPath returns the canonical config file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "nixgen", "config.toml"), nil
}

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}

// EnsureDirectories creates the state, profile, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.ProfilesDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// RegistryDBPath returns the sqlite file backing the generation registry.
func (c *Config) RegistryDBPath() string {
	return filepath.Join(c.Paths.StateDir, "registry.db")
}

// LogFilePath returns the persistent log file location.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "nixgen.log")
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(defaultPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaultPath, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return defaultPath, true, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return err
	}
	if c.Paths.ProfilesDir, err = expandPath(c.Paths.ProfilesDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Nix.Binary = strings.TrimSpace(c.Nix.Binary)
	c.Nix.StoreBinary = strings.TrimSpace(c.Nix.StoreBinary)
	c.Activation.Profile = strings.TrimSpace(c.Activation.Profile)
	c.Activation.Flake = strings.TrimSpace(c.Activation.Flake)
	c.Activation.Hostname = strings.TrimSpace(c.Activation.Hostname)
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Clean(trimmed), nil
}
