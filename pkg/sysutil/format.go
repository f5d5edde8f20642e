package sysutil

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/rig/pkg/sshutil"
)

// TempMountPoint is where FormatPartitionAsExt4 stages the new filesystem.
const TempMountPoint = "/tmp/tmp_mnt"

// FstabLine formats a /etc/fstab entry for an ext4 filesystem. uuid is the
// UUID=... line printed by blkid -o export.
func FstabLine(uuid, mountPoint string) string {
	return fmt.Sprintf("%s    %s    ext4    defaults    0    1", uuid, mountPoint)
}

// FormatPartitionAsExt4 makes an ext4 filesystem on partition and mounts it
// at mountPoint, owned by owner. Whatever already lives under mountPoint is
// copied onto the new filesystem first, and an fstab entry is added so the
// mount survives a reboot. Requires sudo and rsync.
//
// This is destructive: anything on partition is lost.
func FormatPartitionAsExt4(shell sshutil.Executor, dryRun bool, partition, mountPoint, owner string) error {
	run := func(cmd sshutil.Command) (sshutil.Output, error) {
		return shell.Run(cmd.DryRun(dryRun))
	}

	steps := []sshutil.Command{
		sshutil.NewCommand("lsblk"),
		sshutil.Cmd("sudo mkfs.ext4 %s", partition),
		sshutil.Cmd("mkdir -p %s && sudo mount -t ext4 %s %s", TempMountPoint, partition, TempMountPoint),
		sshutil.Cmd("sudo chown %s %s", owner, TempMountPoint),
		sshutil.Cmd("rsync -a %s/ %s/", strings.TrimSuffix(mountPoint, "/"), TempMountPoint),
		sshutil.NewCommand("sync"),
		sshutil.Cmd("sudo umount %s", TempMountPoint),
		sshutil.Cmd("sudo mount -t ext4 %s %s", partition, mountPoint),
		sshutil.Cmd("sudo chown %s %s", owner, mountPoint),
	}
	for _, cmd := range steps {
		if _, err := run(cmd); err != nil {
			return err
		}
	}

	out, err := run(sshutil.Cmd("sudo blkid -o export %s | grep '^UUID='", partition).UseBash())
	if err != nil {
		return err
	}
	uuid := strings.TrimSpace(out.Stdout)

	line := FstabLine(uuid, mountPoint)
	if _, err := run(sshutil.Cmd(`echo "%s" | sudo tee -a /etc/fstab`, line).UseBash()); err != nil {
		return err
	}

	_, err = run(sshutil.NewCommand("lsblk"))
	return err
}
