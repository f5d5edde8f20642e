// Package cli implements the rig command-line interface.
//
// Every command is a cobra.Command built by a constructor, so tests can
// assemble a fresh tree with newRootCmd and capture its output. Commands are
// thin: they load .rig.yaml, pick targets, connect through internal/host, and
// hand the Shell to pkg/sysutil or internal/fanout.
//
// # Command Structure
//
//	rig run [flags] -- <command>          - Run a command on one or more hosts
//	rig install --distro ubuntu <pkgs>    - Install packages
//	rig reboot                            - Reboot a host and wait for it
//	rig devices                           - List unpartitioned disks
//	rig format-ext4 --partition --mount   - Format and mount a partition
//	rig copy <local> <remote>             - Upload a file over SFTP
//	rig init                              - Create .rig.yaml
//	rig host [add|list]                   - Manage hosts in .rig.yaml
//
// # Flag Handling
//
// Global flags (--config, --no-color) live on the root command. Host
// selection flags (--host, --tag, --user, --key, --dry-run) are added to
// each command that connects, through addTargetFlags.
package cli
