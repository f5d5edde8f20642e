package cli

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/rig/internal/errors"
	"github.com/rileyhilliard/rig/internal/fanout"
	"github.com/rileyhilliard/rig/pkg/distro/centos"
	"github.com/rileyhilliard/rig/pkg/distro/ubuntu"
	"github.com/rileyhilliard/rig/pkg/sshutil"
	"github.com/spf13/cobra"
)

// installOptions holds the flags for the install command.
type installOptions struct {
	targetFlags
	Distro   string
	Parallel int
}

func newInstallCmd(g *globalOptions) *cobra.Command {
	opts := &installOptions{}

	cmd := &cobra.Command{
		Use:   "install --distro <ubuntu|centos> <package>...",
		Short: "Install packages on remote hosts",
		Long: `Install packages with the distro's package manager, non-interactively.

A single local path ending in .deb or .rpm is installed from the remote
filesystem with dpkg or rpm instead; upload it first with 'rig copy'.

Examples:
  rig install --host node1 --distro ubuntu htop iotop
  rig install --tag cluster --distro centos epel-release
  rig install --host node1 --distro ubuntu /tmp/agent_1.2_amd64.deb`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			install, err := installCommand(opts.Distro, args)
			if err != nil {
				return err
			}

			s, err := newSession(cmd, g, &opts.targetFlags)
			if err != nil {
				return err
			}
			targets, err := s.targets(&opts.targetFlags)
			if err != nil {
				return err
			}
			return s.fanout(cmd.Context(), targets, install, fanout.Config{MaxParallel: opts.Parallel})
		},
	}

	addTargetFlags(cmd, &opts.targetFlags)
	cmd.Flags().StringVar(&opts.Distro, "distro", "", "remote distribution: ubuntu or centos")
	cmd.Flags().IntVarP(&opts.Parallel, "parallel", "p", 0, "max hosts to install on at once (0 = all)")
	_ = cmd.MarkFlagRequired("distro")

	return cmd
}

// installCommand picks the install one-liner for distro.
func installCommand(distro string, pkgs []string) (sshutil.Command, error) {
	switch strings.ToLower(distro) {
	case "ubuntu", "debian":
		if len(pkgs) == 1 && strings.HasSuffix(pkgs[0], ".deb") {
			return ubuntu.DpkgInstall(pkgs[0]), nil
		}
		return ubuntu.AptInstall(pkgs...), nil
	case "centos", "rhel", "fedora":
		if len(pkgs) == 1 && strings.HasSuffix(pkgs[0], ".rpm") {
			return centos.RpmInstall(pkgs[0]), nil
		}
		return centos.YumInstall(pkgs...), nil
	default:
		return sshutil.Command{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unsupported distro '%s'", distro),
			"Use --distro ubuntu or --distro centos.")
	}
}
