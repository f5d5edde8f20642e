// Package fanout runs one command against several hosts at once and
// summarizes how each one went.
package fanout

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rileyhilliard/rig/internal/config"
	"github.com/rileyhilliard/rig/internal/errors"
	"github.com/rileyhilliard/rig/internal/logger"
	"github.com/rileyhilliard/rig/pkg/sshutil"
	"golang.org/x/sync/errgroup"
)

// errSkipped marks hosts that were never attempted.
var errSkipped = stderrors.New("skipped after an earlier host failed")

// Runner connects to each target and runs a command there. Every host gets
// its own connection, so hosts never wait on each other.
type Runner struct {
	dial   DialFunc
	config Config
	log    logger.Logger
}

// NewRunner creates a runner that opens connections with dial.
func NewRunner(dial DialFunc, cfg Config) *Runner {
	return &Runner{
		dial:   dial,
		config: cfg,
		log:    logger.Default(),
	}
}

// Run executes cmd on every target and waits for all of them. Per-host
// failures are reported in the Result, not as an error; the error is only
// non-nil when there was nothing to run on.
func (r *Runner) Run(ctx context.Context, targets []config.Target, cmd sshutil.Command) (*Result, error) {
	if len(targets) == 0 {
		return nil, errors.New(errors.ErrConfig,
			"No hosts to run on",
			"Pass --host or --tag, or set defaults.host in .rig.yaml.")
	}
	if r.config.DryRun {
		cmd = cmd.DryRun(true)
	}

	start := time.Now()
	results := make([]HostResult, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	if r.config.MaxParallel > 0 {
		g.SetLimit(r.config.MaxParallel)
	}

	for i, t := range targets {
		g.Go(func() error {
			results[i] = r.runOne(gctx, t, cmd)
			if r.config.FailFast && !results[i].Success() && !results[i].Skipped {
				return results[i].Error
			}
			return nil
		})
	}
	_ = g.Wait()

	return buildResult(results, time.Since(start)), nil
}

func (r *Runner) runOne(ctx context.Context, t config.Target, cmd sshutil.Command) HostResult {
	result := HostResult{Host: t.Name, ExitCode: -1}

	if err := ctx.Err(); err != nil {
		result.Error = errSkipped
		result.Skipped = true
		return result
	}

	start := time.Now()
	conn, err := r.dial(t)
	if err != nil {
		r.log.Debug("fanout: connect to %s failed: %v", t.Name, err)
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}
	defer conn.Close()

	h, err := conn.Spawn(cmd)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}
	out, err := h.Join()

	result.Output = out
	result.Error = err
	result.ExitCode = exitCode(err)
	result.Duration = time.Since(start)
	return result
}

// exitCode maps a command error to the remote exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *sshutil.NonZeroExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Exit
	}
	return -1
}

func buildResult(hosts []HostResult, d time.Duration) *Result {
	result := &Result{Hosts: hosts, Duration: d}
	for _, h := range hosts {
		if h.Success() {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	return result
}

// Err summarizes a failed run as a single error, or nil when every host
// passed. A single host's remote exit status is carried through so the CLI
// can exit with it.
func (r *Result) Err() error {
	if r.Success() {
		return nil
	}
	if len(r.Hosts) == 1 {
		if code := r.Hosts[0].ExitCode; code > 0 {
			return errors.NewExitError(code)
		}
		return r.Hosts[0].Error
	}
	return errors.New(errors.ErrExec,
		fmt.Sprintf("%d of %d hosts failed", r.Failed, len(r.Hosts)),
		"See the summary above for each host's error.")
}
