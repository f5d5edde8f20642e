package sshutil

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kevinburke/ssh_config"
	"github.com/rileyhilliard/rig/internal/errors"
	"github.com/rileyhilliard/rig/internal/logger"
)

// SSHHostEntry represents a parsed host entry from SSH config.
type SSHHostEntry struct {
	Alias        string // The Host pattern (alias)
	Hostname     string // The HostName value (actual host to connect to)
	User         string // The User value
	Port         string // The Port value
	IdentityFile string // The IdentityFile value, with ~ expanded
}

// Address returns the host:port to dial, falling back to the alias and
// port 22.
func (h SSHHostEntry) Address() string {
	host := h.Hostname
	if host == "" {
		host = h.Alias
	}
	port := h.Port
	if port == "" {
		port = "22"
	}
	return net.JoinHostPort(host, port)
}

// Description returns a user-friendly description of the host.
func (h SSHHostEntry) Description() string {
	parts := []string{}

	if h.Hostname != "" && h.Hostname != h.Alias {
		parts = append(parts, h.Hostname)
	}
	if h.User != "" {
		parts = append(parts, "user: "+h.User)
	}
	if h.Port != "" && h.Port != "22" {
		parts = append(parts, "port: "+h.Port)
	}

	if len(parts) == 0 {
		return h.Alias
	}
	return strings.Join(parts, ", ")
}

// DefaultSSHConfigPath returns ~/.ssh/config.
func DefaultSSHConfigPath() string {
	return filepath.Join(homeDir(), ".ssh", "config")
}

// FromSSHConfig connects to an alias from ~/.ssh/config. See FromSSHConfigFile.
func FromSSHConfig(alias string, opts ...Option) (*Shell, error) {
	return FromSSHConfigFile(DefaultSSHConfigPath(), alias, opts...)
}

// FromSSHConfigFile resolves HostName, Port, User and IdentityFile for alias
// from the given ssh_config file and connects. Without an IdentityFile every
// key in ~/.ssh is tried, as WithAnyKey does. The alias is used as the
// display name.
func FromSSHConfigFile(configPath, alias string, opts ...Option) (*Shell, error) {
	entry, err := LookupHost(configPath, alias)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't read SSH config %s", configPath),
			"Check the file's syntax with: ssh -G "+alias)
	}

	user := entry.User
	if user == "" {
		user = currentUser()
	}

	opts = append([]Option{WithDisplayName(alias)}, opts...)
	if entry.IdentityFile != "" {
		return WithKey(user, entry.Address(), entry.IdentityFile, opts...)
	}
	return WithAnyKey(user, entry.Address(), opts...)
}

// LookupHost returns the settings ssh_config has for alias. A missing config
// file is not an error; the entry then only carries the alias.
//
// Match blocks are not supported by the parser, so only the part of the file
// before the first Match is read.
func LookupHost(configPath, alias string) (SSHHostEntry, error) {
	entry := SSHHostEntry{Alias: alias}

	content, matchLine, err := preprocessSSHConfig(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return entry, nil
		}
		return entry, err
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return entry, err
	}

	entry.Hostname, _ = cfg.Get(alias, "HostName")
	entry.Port, _ = cfg.Get(alias, "Port")
	entry.User, _ = cfg.Get(alias, "User")
	if identity, _ := cfg.Get(alias, "IdentityFile"); identity != "" {
		entry.IdentityFile = expandPath(identity)
	}

	found := entry.Hostname != "" || entry.Port != "" || entry.User != "" || entry.IdentityFile != ""
	if matchLine > 0 && !found {
		logger.Default().Warn(
			"host '%s' not found in %s (a Match block at line %d may hide later entries)",
			alias, configPath, matchLine)
	}

	return entry, nil
}

// ParseSSHConfigFile parses the specified SSH config file and returns its
// concrete host aliases, sorted. Wildcard patterns are skipped. A missing
// file yields no entries.
func ParseSSHConfigFile(configPath string) ([]SSHHostEntry, error) {
	content, _, err := preprocessSSHConfig(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	var hosts []SSHHostEntry
	seen := make(map[string]bool)

	for _, host := range cfg.Hosts {
		for _, pattern := range host.Patterns {
			alias := pattern.String()

			if strings.ContainsAny(alias, "*?!") || seen[alias] {
				continue
			}
			seen[alias] = true

			entry := SSHHostEntry{Alias: alias}
			entry.Hostname, _ = cfg.Get(alias, "HostName")
			entry.User, _ = cfg.Get(alias, "User")
			entry.Port, _ = cfg.Get(alias, "Port")
			if identity, _ := cfg.Get(alias, "IdentityFile"); identity != "" {
				entry.IdentityFile = expandPath(identity)
			}

			hosts = append(hosts, entry)
		}
	}

	sort.Slice(hosts, func(i, j int) bool {
		return hosts[i].Alias < hosts[j].Alias
	})

	return hosts, nil
}

// preprocessSSHConfig reads the SSH config and returns content up to the first Match directive.
// Also returns the line number where Match was found (0 if not found).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
