package config

const (
	defaultStateDir            = "~/.local/share/nixgen"
	defaultProfilesDir         = "~/.local/share/nixgen/profiles"
	defaultLogDir              = "~/.local/share/nixgen/logs"
	defaultNixBinary           = "nix"
	defaultStoreBinary         = "nix-store"
	defaultActivationTimeout   = 600
	defaultMinNixVersion       = "2.18.0"
	defaultProfile             = "system"
	defaultLogLevel            = "info"
	defaultLogFormat           = "console"
	defaultKeepLast            = 5
	defaultKeepSpecialisations = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:    defaultStateDir,
			ProfilesDir: defaultProfilesDir,
			LogDir:      defaultLogDir,
		},
		Nix: Nix{
			Binary:               defaultNixBinary,
			StoreBinary:          defaultStoreBinary,
			ActivationTimeout:    defaultActivationTimeout,
			MinVersion:           defaultMinNixVersion,
			ExperimentalFeatures: []string{"nix-command", "flakes"},
		},
		Activation: Activation{
			Profile: defaultProfile,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Clean: Clean{
			KeepLast:            defaultKeepLast,
			KeepSpecialisations: defaultKeepSpecialisations,
		},
	}
}
