package sysutil

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rileyhilliard/rig/pkg/sshutil"
)

// MountedDevice is a block device with a mountpoint, as reported by lsblk.
type MountedDevice struct {
	Name       string
	MountPoint string
}

// GetPartitions returns the kernel names of device's partitions, e.g.
// {sda1, sda2} for /dev/sda.
func GetPartitions(shell sshutil.Executor, device string, dryRun bool) (map[string]struct{}, error) {
	out, err := shell.Run(sshutil.Cmd("lsblk -o KNAME %s", device).DryRun(dryRun))
	if err != nil {
		return nil, err
	}

	// header, then the device itself
	parts := make(map[string]struct{})
	for _, line := range skipLines(out.Stdout, 2) {
		parts[line] = struct{}{}
	}
	return parts, nil
}

// GetMountedDevices returns every mounted block device in lsblk order. A
// device listed twice is reported once.
func GetMountedDevices(shell sshutil.Executor, dryRun bool) ([]MountedDevice, error) {
	out, err := shell.Run(sshutil.NewCommand("lsblk -o KNAME,MOUNTPOINT").DryRun(dryRun))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var devices []MountedDevice
	for _, line := range skipLines(out.Stdout, 1) {
		fields := strings.Fields(line)
		if len(fields) != 2 || seen[fields[0]] {
			continue
		}
		seen[fields[0]] = true
		devices = append(devices, MountedDevice{Name: fields[0], MountPoint: fields[1]})
	}
	return devices, nil
}

// GetUnpartitionedDevices returns the block devices that have no
// partitions, are not a partition of another device, and are not mounted.
// These are candidates for WritePartitionTable.
func GetUnpartitionedDevices(shell sshutil.Executor, dryRun bool) (map[string]struct{}, error) {
	out, err := shell.Run(sshutil.NewCommand("lsblk -o KNAME").DryRun(dryRun))
	if err != nil {
		return nil, err
	}
	all := skipLines(out.Stdout, 1)

	unpartitioned := make(map[string]struct{}, len(all))
	for _, dev := range all {
		unpartitioned[dev] = struct{}{}
	}

	for _, dev := range all {
		parts, err := GetPartitions(shell, "/dev/"+dev, dryRun)
		if err != nil {
			return nil, err
		}
		if len(parts) == 0 {
			continue
		}
		delete(unpartitioned, dev)
		for part := range parts {
			delete(unpartitioned, part)
		}
	}

	mounted, err := GetMountedDevices(shell, dryRun)
	if err != nil {
		return nil, err
	}
	for _, m := range mounted {
		delete(unpartitioned, m.Name)
	}

	return unpartitioned, nil
}

// GetDeviceSizes returns the human-readable size lsblk reports for each
// device, keyed by device name (e.g. "sda" -> "477G").
func GetDeviceSizes(shell sshutil.Executor, devices []string, dryRun bool) (map[string]string, error) {
	sizes := make(map[string]string, len(devices))
	for _, dev := range devices {
		out, err := shell.Run(sshutil.Cmd("lsblk -o SIZE /dev/%s", dev).DryRun(dryRun))
		if err != nil {
			return nil, err
		}
		lines := skipLines(out.Stdout, 1)
		if len(lines) == 0 {
			if dryRun {
				continue
			}
			return nil, fmt.Errorf("lsblk reported no size for /dev/%s", dev)
		}
		sizes[dev] = lines[0]
	}
	return sizes, nil
}

// SortedNames returns the keys of a device set in name order.
func SortedNames(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// skipLines splits command output into trimmed, non-empty lines and drops
// the first n.
func skipLines(output string, n int) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) <= n {
		return nil
	}
	return lines[n:]
}
