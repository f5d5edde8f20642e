package sysutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rileyhilliard/rig/pkg/sshutil"
	sshtesting "github.com/rileyhilliard/rig/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noGracePeriod(t *testing.T) {
	t.Helper()
	old := RebootGracePeriod
	RebootGracePeriod = 0
	t.Cleanup(func() { RebootGracePeriod = old })
}

func TestReboot(t *testing.T) {
	noGracePeriod(t)
	shell := sshtesting.NewBlockDeviceShell()

	require.NoError(t, Reboot(context.Background(), shell, false))

	assert.Equal(t, []sshutil.Command{
		sshutil.MakeCommand("sudo reboot", "", false, false, false, false),
		sshutil.MakeCommand("whoami", "", false, false, false, false),
	}, shell.Commands())
	assert.Equal(t, 1, shell.Reconnects())
}

func TestReboot_IgnoresRebootFailure(t *testing.T) {
	noGracePeriod(t)
	shell := sshtesting.NewScriptedShell().
		On("reboot", sshtesting.Response{Error: errors.New("connection lost")})

	require.NoError(t, Reboot(context.Background(), shell, false))
	assert.Len(t, shell.Commands(), 2)
}

func TestReboot_DryRun(t *testing.T) {
	noGracePeriod(t)
	shell := sshtesting.NewScriptedShell()

	require.NoError(t, Reboot(context.Background(), shell, true))

	cmds := shell.Commands()
	require.Len(t, cmds, 2)
	assert.True(t, cmds[0].IsDryRun())
	assert.True(t, cmds[1].IsDryRun())
	assert.Zero(t, shell.Reconnects())
}

func TestReboot_ReconnectFails(t *testing.T) {
	noGracePeriod(t)
	down := errors.New("host never came back")
	shell := sshtesting.NewScriptedShell()
	shell.FailReconnect(down)

	err := Reboot(context.Background(), shell, false)

	assert.ErrorIs(t, err, down)
	assert.Len(t, shell.Commands(), 1)
}

func TestReboot_CancelledDuringGracePeriod(t *testing.T) {
	old := RebootGracePeriod
	RebootGracePeriod = time.Hour
	t.Cleanup(func() { RebootGracePeriod = old })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	shell := sshtesting.NewScriptedShell()

	err := Reboot(ctx, shell, false)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, shell.Reconnects())
}
