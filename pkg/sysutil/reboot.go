package sysutil

import (
	"context"
	"time"

	"github.com/rileyhilliard/rig/internal/logger"
	"github.com/rileyhilliard/rig/pkg/sshutil"
)

// RebootGracePeriod is how long Reboot waits before it starts reconnecting.
// Reconnecting right away would find the host still up.
var RebootGracePeriod = 10 * time.Second

// Reboot reboots the host behind shell and waits for it to come back, then
// checks the new connection with whoami. Requires sudo.
//
// The reboot command's own result is ignored, since the connection usually
// dies under it. In dry-run mode nothing is reconnected and both commands
// are only printed.
func Reboot(ctx context.Context, shell sshutil.Executor, dryRun bool) error {
	log := logger.Default()

	if _, err := shell.Run(sshutil.NewCommand("sudo reboot").DryRun(dryRun)); err != nil {
		log.Debug("reboot command returned: %v", err)
	}

	if !dryRun {
		if err := sleep(ctx, RebootGracePeriod); err != nil {
			return err
		}
		if err := shell.Reconnect(ctx); err != nil {
			return err
		}
	}

	_, err := shell.Run(sshutil.NewCommand("whoami").DryRun(dryRun))
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
