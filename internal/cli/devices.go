package cli

import (
	"fmt"

	"github.com/rileyhilliard/rig/internal/ui"
	"github.com/rileyhilliard/rig/pkg/sysutil"
	"github.com/spf13/cobra"
)

// devicesOptions holds the flags for the devices command.
type devicesOptions struct {
	targetFlags
	Mounted bool
}

func newDevicesCmd(g *globalOptions) *cobra.Command {
	opts := &devicesOptions{}

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List block devices that are free to partition",
		Long: `List the block devices on a host that have no partitions and are not
mounted, with their sizes. These are the candidates for 'rig format-ext4'
after partitioning.

Examples:
  rig devices --host node1
  rig devices --host node1 --mounted`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, g, &opts.targetFlags)
			if err != nil {
				return err
			}
			t, err := s.target(&opts.targetFlags)
			if err != nil {
				return err
			}
			shell, err := s.connect(t)
			if err != nil {
				return err
			}
			defer shell.Close()

			var rows [][]string
			var titles []string
			if opts.Mounted {
				mounted, err := sysutil.GetMountedDevices(shell, s.dryRun)
				if err != nil {
					return err
				}
				titles = []string{"DEVICE", "MOUNTPOINT"}
				for _, m := range mounted {
					rows = append(rows, []string{m.Name, m.MountPoint})
				}
			} else {
				free, err := sysutil.GetUnpartitionedDevices(shell, s.dryRun)
				if err != nil {
					return err
				}
				names := sysutil.SortedNames(free)
				sizes, err := sysutil.GetDeviceSizes(shell, names, s.dryRun)
				if err != nil {
					return err
				}
				titles = []string{"DEVICE", "SIZE"}
				for _, name := range names {
					rows = append(rows, []string{"/dev/" + name, sizes[name]})
				}
			}

			fmt.Fprintln(s.out)
			if len(rows) == 0 {
				fmt.Fprintln(s.out, ui.MutedStyle().Render("No devices found."))
				return nil
			}
			fmt.Fprintln(s.out, ui.RenderSimpleTable(ui.ColumnsFor(titles, rows), rows))
			return nil
		},
	}

	addTargetFlags(cmd, &opts.targetFlags)
	cmd.Flags().BoolVar(&opts.Mounted, "mounted", false, "list mounted devices instead")

	return cmd
}
