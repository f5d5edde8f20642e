package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/rig/internal/errors"
	"github.com/rileyhilliard/rig/pkg/sshutil"
	"gopkg.in/yaml.v3"
)

const templateHeader = `# rig configuration
#
# Hosts can point at an address, or at an alias from ~/.ssh/config:
#
#   hosts:
#     node1:
#       address: 10.0.0.11:22
#       user: ubuntu
#       key: ~/.ssh/id_ed25519
#       tags: [cluster]
#     node2:
#       ssh_alias: node2
#
# Values in defaults apply to every host. Environment variables override
# them, e.g. RIG_DEFAULTS_DRY_RUN=true.

`

// HostsFromSSHConfig turns ssh_config entries into config hosts that refer
// back to their alias.
func HostsFromSSHConfig(entries []sshutil.SSHHostEntry) map[string]Host {
	hosts := make(map[string]Host, len(entries))
	for _, e := range entries {
		hosts[e.Alias] = Host{SSHAlias: e.Alias}
	}
	return hosts
}

// Render encodes cfg as a commented .rig.yaml document.
func Render(cfg *Config) ([]byte, error) {
	out := struct {
		Version  int             `yaml:"version"`
		Hosts    map[string]Host `yaml:"hosts"`
		Defaults struct {
			Host           string `yaml:"host,omitempty"`
			User           string `yaml:"user,omitempty"`
			Key            string `yaml:"key,omitempty"`
			Timeout        string `yaml:"timeout"`
			DryRun         bool   `yaml:"dry_run"`
			StrictHostKeys bool   `yaml:"strict_host_keys"`
			KnownHosts     string `yaml:"known_hosts"`
		} `yaml:"defaults"`
	}{
		Version: cfg.Version,
		Hosts:   cfg.Hosts,
	}
	out.Defaults.Host = cfg.Defaults.Host
	out.Defaults.User = cfg.Defaults.User
	out.Defaults.Key = cfg.Defaults.Key
	out.Defaults.Timeout = cfg.Defaults.Timeout.String()
	out.Defaults.DryRun = cfg.Defaults.DryRun
	out.Defaults.StrictHostKeys = cfg.Defaults.StrictHostKeys
	out.Defaults.KnownHosts = cfg.Defaults.KnownHosts

	var node yaml.Node
	if err := node.Encode(out); err != nil {
		return nil, err
	}
	if hosts := findMapValue(&node, "hosts"); hosts != nil {
		for i := 1; i < len(hosts.Content); i += 2 {
			pruneEmpty(hosts.Content[i])
		}
	}

	var buf bytes.Buffer
	buf.WriteString(templateHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTemplate writes cfg to path. An existing file is only replaced when
// force is set.
func WriteTemplate(path string, cfg *Config, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("%s already exists", path),
			"Use --force to overwrite it.")
	}

	data, err := Render(cfg)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to render config", "")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't create %s", filepath.Dir(path)),
			"Check directory permissions")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't write %s", path),
			"Check directory permissions")
	}
	return nil
}
