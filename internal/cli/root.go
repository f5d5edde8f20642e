package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rileyhilliard/rig/internal/errors"
	"github.com/rileyhilliard/rig/internal/ui"
	"github.com/spf13/cobra"
)

// globalOptions holds the flags every command sees.
type globalOptions struct {
	ConfigPath string
	NoColor    bool
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "rig",
		Short: "Script remote machine setup over SSH",
		Long: `rig runs shell commands on remote hosts over SSH and wraps the chores
that come up when preparing machines for experiments: installing
packages, formatting disks, rebooting and waiting for the host to return.

Hosts come from .rig.yaml (see 'rig init') or straight from ~/.ssh/config.

Examples:
  rig run --host node1 -- uname -a
  rig run --tag cluster --parallel 4 -- sudo apt-get update
  rig install --host node1 --distro ubuntu htop iotop
  rig reboot --host node1`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.NoColor {
				ui.DisableColors()
				return
			}
			ui.ConfigureColor(cmd.OutOrStdout())
		},
	}

	cmd.PersistentFlags().StringVar(&g.ConfigPath, "config", "", "config file (default: .rig.yaml, searched upward)")
	cmd.PersistentFlags().BoolVar(&g.NoColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		newRunCmd(g),
		newInstallCmd(g),
		newRebootCmd(g),
		newDevicesCmd(g),
		newFormatCmd(g),
		newCopyCmd(g),
		newInitCmd(),
		newHostCmd(g),
		newVersionCmd(),
	)
	cmd.AddCommand(newCompletionCmd(cmd))

	return cmd
}

// Execute runs the root command and exits the process with its result.
// Interrupts cancel the command's context, which stops reconnect loops.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(handleError(err, os.Stderr))
}

// handleError prints err and returns the exit code for it. A remote exit
// status is passed through without a message: the remote output already
// explained it.
func handleError(err error, w io.Writer) int {
	if err == nil {
		return 0
	}
	if code, ok := errors.GetExitCode(err); ok {
		return code
	}
	fmt.Fprintln(w, ui.ErrorStyle().Render(err.Error()))
	return 1
}
