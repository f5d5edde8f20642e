package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/rig/internal/errors"
	"github.com/rileyhilliard/rig/pkg/sysutil"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// formatOptions holds the flags for the format-ext4 command.
type formatOptions struct {
	targetFlags
	Partition  string
	MountPoint string
	Owner      string
	Yes        bool
}

// stdinIsTerminal and confirm are swapped out in tests.
var (
	stdinIsTerminal = func() bool {
		return term.IsTerminal(int(os.Stdin.Fd()))
	}

	confirm = func(title string) (bool, error) {
		var proceed bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(title).
					Affirmative("Yes").
					Negative("No").
					Value(&proceed),
			),
		)
		if err := form.Run(); err != nil {
			return false, err
		}
		return proceed, nil
	}
)

func newFormatCmd(g *globalOptions) *cobra.Command {
	opts := &formatOptions{}

	cmd := &cobra.Command{
		Use:   "format-ext4 --partition <dev> --mount <dir>",
		Short: "Format a partition as ext4 and mount it",
		Long: `Make an ext4 filesystem on a partition and mount it in place of an
existing directory. The directory's current contents are copied onto the
new filesystem, and an /etc/fstab entry keeps the mount across reboots.

Everything on the partition is lost. rig asks before formatting; pass
--yes to skip the question when running from a script.

Examples:
  rig format-ext4 --host node1 --partition /dev/sdb1 --mount /data
  rig format-ext4 --host node1 --partition /dev/nvme0n1p1 --mount /scratch --owner ubuntu --yes`,
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

			if !opts.Yes && !s.dryRun {
				ok, err := confirmFormat(opts.Partition, t.Name)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(s.out, "Cancelled.")
					return nil
				}
			}

			shell, err := s.connect(t)
			if err != nil {
				return err
			}
			defer shell.Close()

			owner := opts.Owner
			if owner == "" {
				owner = shell.Username()
			}
			return sysutil.FormatPartitionAsExt4(shell, s.dryRun, opts.Partition, opts.MountPoint, owner)
		},
	}

	addTargetFlags(cmd, &opts.targetFlags)
	cmd.Flags().StringVar(&opts.Partition, "partition", "", "partition to format, e.g. /dev/sdb1")
	cmd.Flags().StringVar(&opts.MountPoint, "mount", "", "directory to mount it on")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner of the mounted filesystem (default: the login user)")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "don't ask for confirmation")
	_ = cmd.MarkFlagRequired("partition")
	_ = cmd.MarkFlagRequired("mount")

	return cmd
}

// confirmFormat asks before a destructive format. Without a terminal to
// ask on, it refuses.
func confirmFormat(partition, host string) (bool, error) {
	if !stdinIsTerminal() {
		return false, errors.New(errors.ErrConfig,
			fmt.Sprintf("Refusing to format %s on %s without confirmation", partition, host),
			"Pass --yes to format from a script.")
	}

	ok, err := confirm(fmt.Sprintf("Format %s on %s as ext4? Everything on it will be lost.", partition, host))
	if err != nil {
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Pass --yes to skip the question.")
	}
	return ok, nil
}
