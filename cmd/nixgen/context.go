package main

import (
	"log/slog"
	"strings"
	"sync"

	"nixgen/internal/activation"
	"nixgen/internal/closure"
	"nixgen/internal/config"
	"nixgen/internal/generation"
	"nixgen/internal/logging"
	"nixgen/internal/runner"
	"nixgen/internal/services/nix"
)

// commandContext lazily assembles the shared pieces commands depend on, so a
// bad config only surfaces for commands that actually need it.
type commandContext struct {
	configFlag  *string
	profileFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	exec runner.Executor
}

func newCommandContext(configFlag, profileFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		profileFlag: profileFlag,
		exec:        runner.Local{},
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.New(logging.Options{
			Level:       cfg.Logging.Level,
			Format:      cfg.Logging.Format,
			OutputPaths: []string{"stderr", cfg.LogFilePath()},
		})
	})
	return c.logger, c.loggerErr
}

// profile resolves the profile name from the flag, falling back to config.
func (c *commandContext) profile() (string, error) {
	if c.profileFlag != nil {
		if p := strings.TrimSpace(*c.profileFlag); p != "" {
			return p, nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return cfg.Activation.Profile, nil
}

// withStore opens the registry for the duration of fn.
func (c *commandContext) withStore(fn func(*generation.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := generation.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (c *commandContext) nixClient() (*nix.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return nix.New(cfg, c.exec, logger), nil
}

func (c *commandContext) resolver() (closure.Resolver, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return closure.NewResolver(c.exec, cfg.Nix.StoreBinary), nil
}

// machine wires the full activation stack with the given confirmation hook.
func (c *commandContext) machine(store *generation.Store, confirm activation.ConfirmFunc) (*activation.Machine, error) {
	client, err := c.nixClient()
	if err != nil {
		return nil, err
	}
	resolver, err := c.resolver()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return activation.New(client, client, resolver, store, confirm, logger), nil
}
