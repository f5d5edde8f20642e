package config

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/rileyhilliard/rig/internal/errors"
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but rig only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Grab the latest rig.")
	}

	for _, name := range HostNames(cfg.Hosts) {
		if err := validateHost(name, cfg.Hosts[name]); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check your host config in .rig.yaml.")
		}
	}

	if cfg.Defaults.Host != "" {
		if _, ok := cfg.Hosts[cfg.Defaults.Host]; !ok {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Default host '%s' doesn't exist", cfg.Defaults.Host),
				fmt.Sprintf("Did you rename or remove it? Available hosts: %s", strings.Join(HostNames(cfg.Hosts), ", ")))
		}
	}

	if cfg.Defaults.Timeout < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Timeout can't be negative (got %s)", cfg.Defaults.Timeout),
			"Use a duration like 10s, or leave it out for the default.")
	}

	if cfg.Defaults.StrictHostKeys && cfg.Defaults.KnownHosts == "" {
		return errors.New(errors.ErrConfig,
			"strict_host_keys is on but known_hosts is empty",
			"Set defaults.known_hosts, e.g. ~/.ssh/known_hosts")
	}

	return nil
}

func validateHost(name string, h Host) error {
	if strings.ContainsAny(name, "@/ ") {
		return fmt.Errorf("host name '%s' can't contain '@', '/' or spaces", name)
	}

	if h.SSHAlias != "" {
		if h.Address != "" {
			return fmt.Errorf("host '%s' sets both address and ssh_alias - pick one", name)
		}
		return nil
	}

	if h.Address == "" {
		return fmt.Errorf("host '%s' needs an address or an ssh_alias", name)
	}
	if strings.Contains(h.Address, "@") {
		return fmt.Errorf("host '%s' address '%s' includes a user - put it in 'user' instead", name, h.Address)
	}
	if _, port, err := net.SplitHostPort(h.Address); err == nil {
		if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
			return fmt.Errorf("host '%s' has an invalid port '%s'", name, port)
		}
	}
	return nil
}

// HostNames returns the configured host names in sorted order.
func HostNames(hosts map[string]Host) []string {
	names := make([]string, 0, len(hosts))
	for name := range hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
