package cli

import (
	"github.com/spf13/cobra"
)

func newCopyCmd(g *globalOptions) *cobra.Command {
	flags := &targetFlags{}

	cmd := &cobra.Command{
		Use:   "copy <local-file> <remote-path>",
		Short: "Upload a file to a host over SFTP",
		Long: `Upload one local file to a host, creating the remote directory if
needed. The file keeps its permission bits.

Examples:
  rig copy --host node1 ./agent_1.2_amd64.deb /tmp/agent_1.2_amd64.deb
  rig copy --tag cluster ./sysctl.conf /tmp/sysctl.conf`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, g, flags)
			if err != nil {
				return err
			}
			targets, err := s.targets(flags)
			if err != nil {
				return err
			}

			for _, t := range targets {
				shell, err := s.connect(t)
				if err != nil {
					return err
				}
				err = shell.CopyTo(args[0], args[1])
				shell.Close()
				if err != nil {
					return err
				}
			}
			return nil
		},
	}

	addTargetFlags(cmd, flags)
	return cmd
}
