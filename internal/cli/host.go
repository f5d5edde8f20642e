package cli

import (
	"fmt"

	"github.com/rileyhilliard/rig/internal/config"
	"github.com/rileyhilliard/rig/internal/errors"
	"github.com/rileyhilliard/rig/internal/ui"
	"github.com/rileyhilliard/rig/internal/util"
	"github.com/spf13/cobra"
)

// hostAddOptions holds the flags for the host add command.
type hostAddOptions struct {
	Address  string
	User     string
	Key      string
	SSHAlias string
	Tags     []string
}

func newHostCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Manage hosts in .rig.yaml",
	}
	cmd.AddCommand(newHostAddCmd(g), newHostListCmd(g))
	return cmd
}

func newHostAddCmd(g *globalOptions) *cobra.Command {
	opts := &hostAddOptions{}

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a host to the config",
		Long: `Add a host entry to the nearest .rig.yaml, keeping its comments and layout.

Examples:
  rig host add node1 --address 10.0.0.11 --user ubuntu --tag cluster
  rig host add gpu --ssh-alias gpu-box`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return hostAdd(cmd, g, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Address, "address", "", "host or host:port")
	cmd.Flags().StringVar(&opts.User, "user", "", "login user")
	cmd.Flags().StringVar(&opts.Key, "key", "", "private key file")
	cmd.Flags().StringVar(&opts.SSHAlias, "ssh-alias", "", "resolve everything from this ssh_config alias instead")
	cmd.Flags().StringSliceVar(&opts.Tags, "tag", nil, "tag for --tag selection (repeatable)")

	return cmd
}

func hostAdd(cmd *cobra.Command, g *globalOptions, name string, opts *hostAddOptions) error {
	path, err := config.Find(g.ConfigPath)
	if err != nil {
		return err
	}
	if path == "" {
		return errors.New(errors.ErrConfig,
			"No config file to add the host to",
			"Run 'rig init' first.")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if _, exists := cfg.Hosts[name]; exists {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Host '%s' already exists", name),
			"Choose a different name, or edit it in "+path)
	}

	h := config.Host{
		Address:  opts.Address,
		User:     opts.User,
		Key:      opts.Key,
		SSHAlias: opts.SSHAlias,
		Tags:     opts.Tags,
	}
	cfg.Hosts[name] = h
	if err := config.Validate(cfg); err != nil {
		return err
	}

	if err := config.AddHost(path, name, h); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Failed to add '%s' to %s", name, path),
			"Check the file is writable and valid YAML.")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Added %s to %s\n",
		ui.SuccessStyle().Render(ui.SymbolSuccess), name, path)
	return nil
}

func newHostListCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured hosts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.LoadOrDefault(g.ConfigPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(cfg.Hosts) == 0 {
				fmt.Fprintln(out, ui.MutedStyle().Render("No hosts configured. Add one with 'rig host add'."))
				return nil
			}

			titles := []string{"NAME", "ADDRESS", "USER", "TAGS"}
			var rows [][]string
			for _, name := range config.HostNames(cfg.Hosts) {
				t := cfg.Resolve(name)
				address := t.Address
				if t.SSHAlias != "" {
					address = "ssh:" + t.SSHAlias
				}
				label := name
				if name == cfg.Defaults.Host {
					label += " *"
				}
				rows = append(rows, []string{label, address, t.User, util.JoinOrDefault(cfg.Hosts[name].Tags, "-")})
			}
			fmt.Fprintln(out, ui.RenderSimpleTable(ui.ColumnsFor(titles, rows), rows))
			return nil
		},
	}
}
