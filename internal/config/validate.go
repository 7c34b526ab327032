package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateNix(); err != nil {
		return err
	}
	if err := c.validateActivation(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateClean(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.ProfilesDir == "" {
		return errors.New("paths.profiles_dir must be set")
	}
	return nil
}

func (c *Config) validateNix() error {
	if c.Nix.Binary == "" {
		return errors.New("nix.binary must be set")
	}
	if c.Nix.StoreBinary == "" {
		return errors.New("nix.store_binary must be set")
	}
	if c.Nix.BuildTimeout < 0 {
		return errors.New("nix.build_timeout must not be negative")
	}
	if c.Nix.ActivationTimeout < 0 {
		return errors.New("nix.activation_timeout must not be negative")
	}
	return nil
}

func (c *Config) validateActivation() error {
	if c.Activation.Profile == "" {
		return errors.New("activation.profile must be set")
	}
	if strings.ContainsAny(c.Activation.Profile, "/\\") {
		return fmt.Errorf("activation.profile %q must be a plain name, not a path", c.Activation.Profile)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateClean() error {
	if c.Clean.KeepLast < 0 {
		return errors.New("clean.keep_last must not be negative")
	}
	if c.Clean.KeepSinceDays < 0 {
		return errors.New("clean.keep_since_days must not be negative")
	}
	return nil
}
