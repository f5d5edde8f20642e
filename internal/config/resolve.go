package config

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/rig/internal/errors"
	"github.com/rileyhilliard/rig/pkg/sshutil"
)

// Resolve turns a host name into a Target. Names not in the config are
// treated as ssh_config aliases, so `rig run --host node1` works without a
// .rig.yaml as long as ~/.ssh/config knows node1.
func (c *Config) Resolve(name string) Target {
	h, ok := c.Hosts[name]
	if !ok {
		return Target{Name: name, SSHAlias: name}
	}

	t := Target{
		Name:     name,
		Address:  h.Address,
		User:     h.User,
		Key:      h.Key,
		SSHAlias: h.SSHAlias,
	}
	if t.SSHAlias != "" {
		return t
	}
	if t.User == "" {
		t.User = c.Defaults.User
	}
	if t.Key == "" {
		t.Key = c.Defaults.Key
	}
	return t
}

// Select resolves the hosts named on the command line, then every host
// carrying one of tags. With neither, it falls back to defaults.host.
// Duplicates are dropped; order follows the arguments, then host name.
func (c *Config) Select(names, tags []string) ([]Target, error) {
	var targets []Target
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			targets = append(targets, c.Resolve(name))
		}
	}

	for _, name := range names {
		add(name)
	}

	for _, tag := range tags {
		matched := false
		for _, name := range HostNames(c.Hosts) {
			if hasTag(c.Hosts[name], tag) {
				add(name)
				matched = true
			}
		}
		if !matched {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("No hosts are tagged '%s'", tag),
				"Add it under a host's 'tags' in .rig.yaml.")
		}
	}

	if len(targets) == 0 {
		if c.Defaults.Host == "" {
			return nil, errors.New(errors.ErrConfig,
				"No host to run on",
				"Pass --host, or set defaults.host in .rig.yaml.")
		}
		add(c.Defaults.Host)
	}

	return targets, nil
}

func hasTag(h Host, tag string) bool {
	for _, t := range h.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// ShellOptions returns the sshutil options the defaults call for.
func (c *Config) ShellOptions() []sshutil.Option {
	var opts []sshutil.Option
	if c.Defaults.Timeout > 0 {
		opts = append(opts, sshutil.WithTimeout(c.Defaults.Timeout))
	}
	if c.Defaults.StrictHostKeys {
		opts = append(opts, sshutil.WithKnownHosts(c.Defaults.KnownHosts))
	}
	return opts
}
