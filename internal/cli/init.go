package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/rig/internal/config"
	"github.com/rileyhilliard/rig/internal/errors"
	"github.com/rileyhilliard/rig/internal/ui"
	"github.com/rileyhilliard/rig/internal/util"
	"github.com/rileyhilliard/rig/pkg/sshutil"
	"github.com/spf13/cobra"
)

// initOptions holds the flags for the init command.
type initOptions struct {
	Path          string
	Force         bool
	FromSSHConfig bool
	SSHConfigPath string
	DefaultHost   string
	User          string
	Key           string
}

func newInitCmd() *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a .rig.yaml config file",
		Long: `Write a commented .rig.yaml in the current directory.

With --from-ssh-config, every concrete Host in ~/.ssh/config becomes a
host entry that refers back to its alias.

Examples:
  rig init
  rig init --from-ssh-config --default-host node1
  rig init --user ubuntu --key ~/.ssh/lab_ed25519 --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Path, "path", "", "where to write the file (default: ./"+config.ConfigFileName+")")
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "overwrite an existing config")
	cmd.Flags().BoolVar(&opts.FromSSHConfig, "from-ssh-config", false, "import hosts from ssh_config")
	cmd.Flags().StringVar(&opts.SSHConfigPath, "ssh-config", sshutil.DefaultSSHConfigPath(), "ssh_config file to import from")
	cmd.Flags().StringVar(&opts.DefaultHost, "default-host", "", "host to use when --host is not given")
	cmd.Flags().StringVar(&opts.User, "user", "", "default login user")
	cmd.Flags().StringVar(&opts.Key, "key", "", "default private key file")

	return cmd
}

func runInit(cmd *cobra.Command, opts *initOptions) error {
	out := cmd.OutOrStdout()

	path := opts.Path
	if path == "" {
		path = filepath.Join(".", config.ConfigFileName)
	}

	force := opts.Force
	if _, err := os.Stat(path); err == nil && !force && stdinIsTerminal() {
		overwrite, err := confirm(fmt.Sprintf("%s already exists. Overwrite?", path))
		if err != nil {
			return err
		}
		if !overwrite {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
		force = true
	}

	cfg := config.DefaultConfig()
	cfg.Defaults.Host = opts.DefaultHost
	cfg.Defaults.User = opts.User
	cfg.Defaults.Key = opts.Key

	if opts.FromSSHConfig {
		entries, err := sshutil.ParseSSHConfigFile(opts.SSHConfigPath)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read "+opts.SSHConfigPath,
				"Check the file is valid ssh_config syntax.")
		}
		cfg.Hosts = config.HostsFromSSHConfig(entries)
	}
	// A default host nobody described is an ssh_config alias.
	if h := cfg.Defaults.Host; h != "" {
		if _, ok := cfg.Hosts[h]; !ok {
			cfg.Hosts[h] = config.Host{SSHAlias: h}
		}
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.WriteTemplate(path, cfg, force); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s Wrote %s", ui.SuccessStyle().Render(ui.SymbolSuccess), path)
	if n := len(cfg.Hosts); n > 0 {
		fmt.Fprintf(out, " with %s", util.Count(n, "host", "hosts"))
	}
	fmt.Fprintln(out)
	return nil
}
