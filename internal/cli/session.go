package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rileyhilliard/rig/internal/config"
	"github.com/rileyhilliard/rig/internal/errors"
	"github.com/rileyhilliard/rig/internal/fanout"
	"github.com/rileyhilliard/rig/internal/host"
	"github.com/rileyhilliard/rig/internal/logger"
	"github.com/rileyhilliard/rig/internal/output"
	"github.com/rileyhilliard/rig/pkg/sshutil"
	"github.com/spf13/cobra"
)

// session is what a command needs once flags are parsed: the loaded config,
// where to print, and whether anything may actually run.
type session struct {
	cfg       *config.Config
	out       io.Writer
	dryRun    bool
	connector *host.Connector
	log       logger.Logger
}

// newSession loads and validates the config and applies the target flags
// that change how connections are made.
func newSession(cmd *cobra.Command, g *globalOptions, flags *targetFlags) (*session, error) {
	cfg, path, err := config.LoadOrDefault(g.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	timeout, err := parseTimeout(flags.Timeout)
	if err != nil {
		return nil, err
	}

	log := logger.Default()
	if path != "" {
		log.Debug("using config %s", path)
	}

	// Parallel hosts share the writer.
	out := &syncWriter{w: cmd.OutOrStdout()}

	opts := []sshutil.Option{sshutil.WithOutput(out)}
	if timeout > 0 {
		opts = append(opts, sshutil.WithTimeout(timeout))
	}
	connector := host.NewConnector(cfg, opts...)
	connector.OnEvent = func(e host.ConnectionEvent) {
		switch e.Type {
		case host.EventConnected:
			log.Debug("%s: connected in %s", e.Host, e.Latency)
		case host.EventFailed:
			log.Debug("%s: connect failed: %v", e.Host, e.Error)
		default:
			log.Debug("%s: %s", e.Host, e.Type)
		}
	}

	return &session{
		cfg:       cfg,
		out:       out,
		dryRun:    flags.DryRun || cfg.Defaults.DryRun,
		connector: connector,
		log:       log,
	}, nil
}

// targets resolves the selected hosts, with --user and --key overriding
// whatever the config says.
func (s *session) targets(flags *targetFlags) ([]config.Target, error) {
	targets, err := s.cfg.Select(flags.Hosts, flags.Tags)
	if err != nil {
		return nil, err
	}
	for i := range targets {
		if flags.User != "" {
			targets[i].User = flags.User
		}
		if flags.Key != "" {
			targets[i].Key = config.ExpandTilde(flags.Key)
		}
	}
	return targets, nil
}

// target is targets for commands that only make sense on one host.
func (s *session) target(flags *targetFlags) (config.Target, error) {
	targets, err := s.targets(flags)
	if err != nil {
		return config.Target{}, err
	}
	if len(targets) != 1 {
		return config.Target{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("This command runs on one host, but %d were selected", len(targets)),
			"Pass a single --host.")
	}
	return targets[0], nil
}

// connect opens a shell to t, switched to dry-run mode if the session is.
func (s *session) connect(t config.Target, extra ...sshutil.Option) (*sshutil.Shell, error) {
	shell, err := s.connector.Connect(t, extra...)
	if err != nil {
		return nil, err
	}
	if s.dryRun {
		shell.SetDryRun(true)
	}
	return shell, nil
}

// fanout runs cmd on every target. With more than one, output lines are
// labelled with their host and a summary follows.
func (s *session) fanout(ctx context.Context, targets []config.Target, cmd sshutil.Command, cfg fanout.Config) error {
	cfg.DryRun = s.dryRun

	dial := func(t config.Target) (fanout.Conn, error) {
		shell, err := s.connect(t)
		if err != nil {
			return nil, err
		}
		return shell, nil
	}
	if len(targets) > 1 {
		mux := output.NewMux(s.out)
		dial = func(t config.Target) (fanout.Conn, error) {
			w := mux.Writer(t.Name)
			shell, err := s.connect(t, sshutil.WithOutput(w))
			if err != nil {
				_ = w.Flush()
				return nil, err
			}
			return &labelledConn{Shell: shell, out: w}, nil
		}
	}

	result, err := fanout.NewRunner(dial, cfg).Run(ctx, targets, cmd)
	if err != nil {
		return err
	}
	if len(targets) > 1 {
		fmt.Fprintln(s.out)
		fanout.RenderSummary(s.out, result)
	}
	return result.Err()
}

// labelledConn flushes the host's last partial line when it is closed.
type labelledConn struct {
	*sshutil.Shell
	out *output.LineWriter
}

func (c *labelledConn) Close() error {
	err := c.Shell.Close()
	if ferr := c.out.Flush(); err == nil {
		err = ferr
	}
	return err
}

// syncWriter serializes writes from concurrently running hosts.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
