package cli

import (
	"github.com/rileyhilliard/rig/pkg/sysutil"
	"github.com/spf13/cobra"
)

func newRebootCmd(g *globalOptions) *cobra.Command {
	flags := &targetFlags{}

	cmd := &cobra.Command{
		Use:   "reboot",
		Short: "Reboot a host and wait for it to come back",
		Long: `Reboot a host with sudo, then keep reconnecting until SSH answers again.

Interrupt with Ctrl-C to stop waiting.

Examples:
  rig reboot --host node1
  rig reboot --host node1 --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, g, flags)
			if err != nil {
				return err
			}
			t, err := s.target(flags)
			if err != nil {
				return err
			}
			shell, err := s.connect(t)
			if err != nil {
				return err
			}
			defer shell.Close()

			return sysutil.Reboot(cmd.Context(), shell, s.dryRun)
		},
	}

	addTargetFlags(cmd, flags)
	return cmd
}
