package sysutil

import "github.com/rileyhilliard/rig/pkg/sshutil"

// SetCPUScalingGovernor sets the frequency governor (e.g. "performance") on
// every core. Requires cpupower and sudo.
func SetCPUScalingGovernor(governor string) sshutil.Command {
	return sshutil.Cmd("sudo cpupower frequency-set -g %s", governor)
}

// SwapOff disables swapping on device.
func SwapOff(device string) sshutil.Command {
	return sshutil.Cmd("sudo swapoff %s", device)
}

// SwapOn enables swapping on device.
func SwapOn(device string) sshutil.Command {
	return sshutil.Cmd("sudo swapon %s", device)
}

// AddToGroup adds the remote user to group. Takes effect on the next login,
// so callers usually Reconnect afterwards.
func AddToGroup(group string) sshutil.Command {
	return sshutil.Cmd("sudo usermod -aG %s $(whoami)", group).UseBash()
}

// WritePartitionTable writes a fresh GPT label to device, destroying the
// existing table.
func WritePartitionTable(device string) sshutil.Command {
	return sshutil.Cmd("sudo parted -a optimal %s -s -- mklabel gpt", device)
}

// CreatePartition creates one primary partition spanning all of device.
func CreatePartition(device string) sshutil.Command {
	return sshutil.Cmd("sudo parted -a optimal %s -s -- mkpart primary 0%% 100%%", device)
}
