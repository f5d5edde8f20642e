// Package centos builds package-install commands for CentOS, RHEL, Amazon
// Linux and related distributions.
package centos

import (
	"strings"

	"github.com/rileyhilliard/rig/pkg/sshutil"
)

// RpmInstall installs a local .rpm file. Requires sudo.
func RpmInstall(pkg string) sshutil.Command {
	return sshutil.Cmd("sudo rpm -ivh %s", pkg)
}

// YumInstall installs packages with yum. Requires sudo.
func YumInstall(pkgs ...string) sshutil.Command {
	return sshutil.Cmd("sudo yum install -y %s", strings.Join(pkgs, " "))
}
