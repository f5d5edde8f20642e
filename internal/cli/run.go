package cli

import (
	"strings"

	"github.com/rileyhilliard/rig/internal/fanout"
	"github.com/rileyhilliard/rig/pkg/sshutil"
	"github.com/spf13/cobra"
)

// runOptions holds the flags for the run command.
type runOptions struct {
	targetFlags
	Cwd        string
	Bash       bool
	AllowError bool
	NoPty      bool
	Parallel   int
	FailFast   bool
}

func newRunCmd(g *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [flags] -- <command>",
		Short: "Run a command on remote hosts",
		Long: `Run a shell command on one or more hosts and stream its output.

The command runs under a pseudo-terminal so sudo can prompt. With several
hosts, each gets its own connection and a summary is printed at the end.
A single host's non-zero exit status becomes rig's exit status.

Examples:
  rig run --host node1 -- df -h
  rig run --host node1 --cwd /data --bash -- 'ls *.csv | wc -l'
  rig run --tag cluster --parallel 8 --fail-fast -- sudo apt-get update`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, g, opts, strings.Join(args, " "))
		},
	}

	addTargetFlags(cmd, &opts.targetFlags)
	cmd.Flags().StringVar(&opts.Cwd, "cwd", "", "remote directory to run in")
	cmd.Flags().BoolVar(&opts.Bash, "bash", false, "run through bash -c (for globs, pipes, $VARS)")
	cmd.Flags().BoolVar(&opts.AllowError, "allow-error", false, "treat a non-zero exit status as success")
	cmd.Flags().BoolVar(&opts.NoPty, "no-pty", false, "don't allocate a pseudo-terminal")
	cmd.Flags().IntVarP(&opts.Parallel, "parallel", "p", 0, "max hosts to run on at once (0 = all)")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "skip hosts not yet started after the first failure")

	return cmd
}

func runCommand(cmd *cobra.Command, g *globalOptions, opts *runOptions, text string) error {
	s, err := newSession(cmd, g, &opts.targetFlags)
	if err != nil {
		return err
	}
	targets, err := s.targets(&opts.targetFlags)
	if err != nil {
		return err
	}

	return s.fanout(cmd.Context(), targets, buildCommand(text, opts), fanout.Config{
		MaxParallel: opts.Parallel,
		FailFast:    opts.FailFast,
	})
}

// buildCommand turns the run flags into a Command.
func buildCommand(text string, opts *runOptions) sshutil.Command {
	c := sshutil.NewCommand(text)
	if opts.Cwd != "" {
		c = c.Cwd(opts.Cwd)
	}
	if opts.Bash {
		c = c.UseBash()
	}
	if opts.AllowError {
		c = c.AllowError()
	}
	if opts.NoPty {
		c = c.NoPty()
	}
	return c
}
