// Package ubuntu builds package-install commands for Debian and Ubuntu hosts.
package ubuntu

import (
	"strings"

	"github.com/rileyhilliard/rig/pkg/sshutil"
)

// DpkgInstall installs a local .deb file with dpkg. Requires sudo.
func DpkgInstall(pkg string) sshutil.Command {
	return sshutil.Cmd("sudo dpkg -i %s", pkg)
}

// AptInstall installs packages from the configured apt repositories.
// Requires sudo.
func AptInstall(pkgs ...string) sshutil.Command {
	return sshutil.Cmd("sudo apt-get -y install %s", strings.Join(pkgs, " "))
}
