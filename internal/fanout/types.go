package fanout

import (
	"time"

	"github.com/rileyhilliard/rig/internal/config"
	"github.com/rileyhilliard/rig/pkg/sshutil"
)

// Conn is a connected host the runner can issue commands on and close.
type Conn interface {
	sshutil.Executor
	Close() error
}

// DialFunc opens a connection to a target.
type DialFunc func(t config.Target) (Conn, error)

// Config holds configuration for a multi-host run.
type Config struct {
	MaxParallel int  // Max hosts in flight at once (0 = all)
	FailFast    bool // Skip hosts not yet started after the first failure
	DryRun      bool // Print commands instead of running them
}

// Result holds the aggregate result of a multi-host run.
type Result struct {
	Hosts    []HostResult  // One per target, in target order
	Duration time.Duration // Total wall-clock time
	Passed   int
	Failed   int
}

// Success returns true if every host passed.
func (r *Result) Success() bool {
	return r.Failed == 0
}

// HostResult holds the result of running the command on one host.
type HostResult struct {
	Host     string
	Output   sshutil.Output
	ExitCode int // Remote exit status; -1 when the command never completed
	Duration time.Duration
	Error    error
	Skipped  bool // Not attempted because of FailFast
}

// Success returns true if the command ran and exited zero (or was allowed
// not to).
func (r *HostResult) Success() bool {
	return r.Error == nil
}
