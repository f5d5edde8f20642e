// Package host turns configured targets into live SSH shells.
package host

import (
	"os"
	"time"

	"github.com/rileyhilliard/rig/internal/config"
	"github.com/rileyhilliard/rig/internal/errors"
	"github.com/rileyhilliard/rig/pkg/sshutil"
)

// ConnectionEvent reports progress while connecting to a target.
type ConnectionEvent struct {
	Type    ConnectionEventType
	Host    string
	Error   error
	Latency time.Duration
}

// ConnectionEventType categorizes connection events.
type ConnectionEventType int

const (
	// EventTrying indicates a connection attempt is starting.
	EventTrying ConnectionEventType = iota
	// EventFailed indicates a connection attempt failed.
	EventFailed
	// EventConnected indicates a successful connection.
	EventConnected
)

// String returns a human-readable description of the event type.
func (t ConnectionEventType) String() string {
	switch t {
	case EventTrying:
		return "trying"
	case EventFailed:
		return "failed"
	case EventConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// EventHandler is a callback for connection events.
type EventHandler func(event ConnectionEvent)

// Connector opens shells for config targets.
type Connector struct {
	// SSHConfigPath is the ssh_config file aliases are resolved from.
	SSHConfigPath string
	// Options are passed to every shell, after the display name.
	Options []sshutil.Option
	// OnEvent, when set, is called as each connection progresses.
	OnEvent EventHandler
}

// NewConnector creates a connector that resolves aliases from
// ~/.ssh/config and applies the config's shell options.
func NewConnector(cfg *config.Config, opts ...sshutil.Option) *Connector {
	return &Connector{
		SSHConfigPath: sshutil.DefaultSSHConfigPath(),
		Options:       append(cfg.ShellOptions(), opts...),
	}
}

// Connect opens a shell to t. Alias targets go through ssh_config, targets
// with a key use it, and the rest try every key in ~/.ssh. extra options
// apply to this shell only, after the connector's own.
func (c *Connector) Connect(t config.Target, extra ...sshutil.Option) (*sshutil.Shell, error) {
	c.emit(ConnectionEvent{Type: EventTrying, Host: t.Name})
	start := time.Now()

	shell, err := c.connect(t, extra)
	if err != nil {
		c.emit(ConnectionEvent{Type: EventFailed, Host: t.Name, Error: err})
		return nil, err
	}

	c.emit(ConnectionEvent{Type: EventConnected, Host: t.Name, Latency: time.Since(start)})
	return shell, nil
}

func (c *Connector) connect(t config.Target, extra []sshutil.Option) (*sshutil.Shell, error) {
	opts := make([]sshutil.Option, 0, len(c.Options)+len(extra)+1)
	opts = append(opts, sshutil.WithDisplayName(t.Name))
	opts = append(opts, c.Options...)
	opts = append(opts, extra...)

	if t.SSHAlias != "" {
		return sshutil.FromSSHConfigFile(c.SSHConfigPath, t.SSHAlias, opts...)
	}

	if t.Address == "" {
		return nil, errors.New(errors.ErrConfig,
			"Host '"+t.Name+"' has no address",
			"Set 'address' or 'ssh_alias' for it in .rig.yaml.")
	}

	user := t.User
	if user == "" {
		user = localUser()
	}
	if t.Key != "" {
		return sshutil.WithKey(user, t.Address, t.Key, opts...)
	}
	return sshutil.WithAnyKey(user, t.Address, opts...)
}

func (c *Connector) emit(event ConnectionEvent) {
	if c.OnEvent != nil {
		c.OnEvent(event)
	}
}

func localUser() string {
	for _, key := range []string{"USER", "LOGNAME"} {
		if u := os.Getenv(key); u != "" {
			return u
		}
	}
	return "root"
}
