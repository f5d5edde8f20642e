package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// DefaultTimeout bounds the TCP connect and SSH handshake.
const DefaultTimeout = 10 * time.Second

// Config represents the complete .rig.yaml configuration file.
type Config struct {
	Version  int             `yaml:"version" mapstructure:"version"`
	Hosts    map[string]Host `yaml:"hosts" mapstructure:"hosts"`
	Defaults Defaults        `yaml:"defaults" mapstructure:"defaults"`
}

// Host defines a remote machine and how to log in to it.
type Host struct {
	// Address is host or host:port. The port defaults to 22.
	Address string `yaml:"address" mapstructure:"address"`

	// User to log in as. Falls back to defaults.user, then the local user.
	User string `yaml:"user" mapstructure:"user"`

	// Key is the private key file. Falls back to defaults.key, then every
	// key in ~/.ssh.
	Key string `yaml:"key" mapstructure:"key"`

	// SSHAlias resolves HostName, Port, User and IdentityFile from
	// ~/.ssh/config instead. Address, User and Key are ignored when set.
	SSHAlias string `yaml:"ssh_alias" mapstructure:"ssh_alias"`

	// Tags for selecting hosts with --tag.
	Tags []string `yaml:"tags" mapstructure:"tags"`
}

// Defaults apply to every host.
type Defaults struct {
	// Host is used when no --host flag is given.
	Host string `yaml:"host" mapstructure:"host"`

	User string `yaml:"user" mapstructure:"user"`
	Key  string `yaml:"key" mapstructure:"key"`

	// Timeout for connect and handshake.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// DryRun prints commands instead of running them.
	DryRun bool `yaml:"dry_run" mapstructure:"dry_run"`

	// StrictHostKeys verifies host keys against KnownHosts.
	StrictHostKeys bool   `yaml:"strict_host_keys" mapstructure:"strict_host_keys"`
	KnownHosts     string `yaml:"known_hosts" mapstructure:"known_hosts"`
}

// Target is a host with defaults applied, ready to connect to.
type Target struct {
	// Name is what the user called the host: a config key or an ssh alias.
	Name     string
	Address  string
	User     string
	Key      string
	SSHAlias string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Hosts:   make(map[string]Host),
		Defaults: Defaults{
			Timeout:    DefaultTimeout,
			KnownHosts: "~/.ssh/known_hosts",
		},
	}
}
