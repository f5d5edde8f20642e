package cli

import (
	"fmt"
	"time"

	"github.com/rileyhilliard/rig/internal/errors"
	"github.com/spf13/cobra"
)

// targetFlags holds the host selection flags shared by every command that
// connects somewhere.
type targetFlags struct {
	Hosts   []string
	Tags    []string
	User    string
	Key     string
	Timeout string
	DryRun  bool
}

// addTargetFlags registers --host, --tag, --user, --key, --timeout and
// --dry-run on a command.
func addTargetFlags(cmd *cobra.Command, flags *targetFlags) {
	cmd.Flags().StringSliceVar(&flags.Hosts, "host", nil, "target host name or ssh_config alias (repeatable)")
	cmd.Flags().StringSliceVar(&flags.Tags, "tag", nil, "select hosts by tag (repeatable)")
	cmd.Flags().StringVarP(&flags.User, "user", "u", "", "log in as this user")
	cmd.Flags().StringVarP(&flags.Key, "key", "i", "", "private key file")
	cmd.Flags().StringVar(&flags.Timeout, "timeout", "", "connect timeout (e.g., 5s, 1m)")
	cmd.Flags().BoolVarP(&flags.DryRun, "dry-run", "n", false, "print commands without running them")
}

// parseTimeout parses a timeout flag into a duration.
// Returns zero duration if the flag is empty.
func parseTimeout(flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}

	duration, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid timeout", flag),
			"Try something like 5s, 2m, or 500ms.")
	}
	if duration <= 0 {
		return 0, errors.New(errors.ErrConfig,
			fmt.Sprintf("Timeout must be positive, got %s", flag),
			"Try something like 5s, 2m, or 500ms.")
	}
	return duration, nil
}
