package config

import (
	"os"
	"path/filepath"

	"github.com/rileyhilliard/rig/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".rig.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/rig"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix is the prefix for environment overrides, e.g.
	// RIG_DEFAULTS_DRY_RUN=true.
	EnvPrefix = "RIG"
)

// Load reads config from the specified path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'rig init' to create a config file, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .rig.yaml in current directory
// 3. .rig.yaml in parent directories (stops at git root or home)
// 4. ~/.config/rig/config.yaml (global defaults)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	home, _ := os.UserHomeDir()
	dir := cwd
	for !isGitRoot(dir) {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		if home != "" && parent == home {
			break
		}
		dir = parent

		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
	}

	if home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// LoadOrDefault loads config from the found path, or returns defaults if
// none exists. Commands that can run against a bare ssh alias use this.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		v := viper.New()
		cfg, err := parseConfig(v, "")
		return cfg, "", err
	}

	cfg, err := Load(path)
	return cfg, path, err
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+displayPath(path))
	}

	if cfg.Hosts == nil {
		cfg.Hosts = make(map[string]Host)
	}
	for name, host := range cfg.Hosts {
		host.Key = ExpandTilde(Expand(host.Key))
		host.User = Expand(host.User)
		cfg.Hosts[name] = host
	}
	cfg.Defaults.Key = ExpandTilde(Expand(cfg.Defaults.Key))
	cfg.Defaults.User = Expand(cfg.Defaults.User)
	cfg.Defaults.KnownHosts = ExpandTilde(cfg.Defaults.KnownHosts)

	return cfg, nil
}

// setDefaults registers every defaults key so viper decodes durations and
// picks up environment overrides for keys missing from the file.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig().Defaults
	v.SetDefault("version", CurrentConfigVersion)
	v.SetDefault("defaults.host", d.Host)
	v.SetDefault("defaults.user", d.User)
	v.SetDefault("defaults.key", d.Key)
	v.SetDefault("defaults.timeout", d.Timeout.String())
	v.SetDefault("defaults.dry_run", d.DryRun)
	v.SetDefault("defaults.strict_host_keys", d.StrictHostKeys)
	v.SetDefault("defaults.known_hosts", d.KnownHosts)
}

func displayPath(path string) string {
	if path == "" {
		return "the environment"
	}
	return path
}

// isGitRoot checks if a directory is a git repository root.
func isGitRoot(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	if err != nil {
		return false
	}
	return info.IsDir()
}
