package sshutil_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	rigerrors "github.com/rileyhilliard/rig/internal/errors"
	"github.com/rileyhilliard/rig/internal/logger"
	"github.com/rileyhilliard/rig/pkg/sshutil"
	sshtesting "github.com/rileyhilliard/rig/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh/knownhosts"
)

// syncBuffer is a bytes.Buffer safe for the spawned goroutines to write to.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fakeRemote understands a handful of commands.
func fakeRemote(req sshtesting.Request, stdout, stderr io.Writer) int {
	switch {
	case req.Command == "whoami":
		fmt.Fprintln(stdout, "alice")
		return 0
	case strings.HasPrefix(req.Command, "echo "):
		fmt.Fprintln(stdout, strings.TrimPrefix(req.Command, "echo "))
		return 0
	case strings.HasPrefix(req.Command, "exit "):
		code, _ := strconv.Atoi(strings.TrimPrefix(req.Command, "exit "))
		fmt.Fprintln(stdout, "about to fail")
		fmt.Fprintln(stderr, "failing")
		return code
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", req.Command)
		return 127
	}
}

func connect(t *testing.T, srv *sshtesting.Server, opts ...sshutil.Option) (*sshutil.Shell, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	opts = append([]sshutil.Option{sshutil.WithOutput(out)}, opts...)

	shell, err := sshutil.WithKey("alice", srv.Addr, srv.KeyPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { shell.Close() })
	return shell, out
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestWithKey_Connects(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)

	shell, out := connect(t, srv)

	assert.Equal(t, "alice", shell.Username())
	assert.Equal(t, srv.Addr, shell.Remote())
	assert.Equal(t, srv.Addr, shell.RemoteName())
	assert.Equal(t, srv.KeyPath, shell.KeyPath())
	assert.False(t, shell.DryRunMode())
	assert.Equal(t, []string{"alice"}, srv.Logins())
	assert.Equal(t, fmt.Sprintf("alice@%s (%s)\n", srv.Addr, srv.Addr), out.String())
	assert.Contains(t, shell.String(), "alice@"+srv.Addr)
}

func TestWithKey_MissingKeyFailsBeforeDialing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")

	_, err := sshutil.WithKey("alice", "192.0.2.1", missing, sshutil.WithOutput(io.Discard))

	var keyErr *sshutil.KeyNotFoundError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, missing, keyErr.File)
}

func TestWithKey_Unreachable(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)

	_, err := sshutil.WithKey("alice", freeAddr(t), srv.KeyPath,
		sshutil.WithOutput(io.Discard), sshutil.WithTimeout(time.Second))

	require.Error(t, err)
	assert.True(t, rigerrors.IsCode(err, rigerrors.ErrSSH))
}

func TestWithKey_RejectedKey(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	stranger := srv.WriteKeyPair(t.TempDir(), "id_stranger", false)

	_, err := sshutil.WithKey("alice", srv.Addr, stranger, sshutil.WithOutput(io.Discard))

	var authErr *sshutil.AuthFailedError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, stranger, authErr.Key)
	assert.True(t, rigerrors.IsCode(err, rigerrors.ErrAuth))
	assert.Empty(t, srv.Logins())
}

func TestWithKey_EncryptedKey(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	locked := srv.WriteEncryptedKey(t.TempDir(), "id_locked", "hunter2")

	_, err := sshutil.WithKey("alice", srv.Addr, locked, sshutil.WithOutput(io.Discard))

	var encErr *sshutil.EncryptedKeyError
	assert.ErrorAs(t, err, &encErr)
}

func TestRun_CapturesOutput(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, out := connect(t, srv)

	result, err := shell.Run(sshutil.NewCommand("echo hello world"))

	require.NoError(t, err)
	assert.Equal(t, "hello world\n", result.Stdout)
	assert.Empty(t, result.Stderr)
	assert.Contains(t, out.String(), fmt.Sprintf("alice@%s echo hello world\nhello world\n", srv.Addr))

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, sshtesting.Request{Command: "echo hello world", Pty: true, Term: "vt100"}, reqs[0])
}

func TestRun_NoPty(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, _ := connect(t, srv)

	_, err := shell.Run(sshutil.NewCommand("whoami").NoPty())

	require.NoError(t, err)
	assert.False(t, srv.Requests()[0].Pty)
}

func TestRun_PtyRefused(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	srv.SetRejectPty(true)
	shell, _ := connect(t, srv)

	_, err := shell.Run(sshutil.NewCommand("whoami"))
	require.Error(t, err)
	assert.Empty(t, srv.Requests())

	result, err := shell.Run(sshutil.NewCommand("whoami").NoPty())
	require.NoError(t, err)
	assert.Equal(t, "alice\n", result.Stdout)
}

func TestRun_SendsRewrittenCommand(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, _ := connect(t, srv)

	_, _ = shell.Run(sshutil.NewCommand("ls 'my dir'").UseBash().Cwd("/tmp").AllowError())

	assert.Equal(t, `cd /tmp ; bash -c 'ls '"'"'my dir'"'"''`, srv.Requests()[0].Command)
}

func TestRun_NonZeroExit(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, _ := connect(t, srv)

	_, err := shell.Run(sshutil.NewCommand("exit 3"))

	var exitErr *sshutil.NonZeroExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Exit)
	assert.Equal(t, "exit 3", exitErr.Cmd)
	assert.Equal(t, "about to fail\n", exitErr.Stdout)
	assert.Equal(t, "failing\n", exitErr.Stderr)
}

func TestRun_AllowError(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, _ := connect(t, srv)

	result, err := shell.Run(sshutil.NewCommand("exit 3").AllowError())

	require.NoError(t, err)
	assert.Equal(t, sshutil.Output{Stdout: "about to fail\n", Stderr: "failing\n"}, result)
}

func TestRun_LargeOutput(t *testing.T) {
	payload := strings.Repeat("x", 300_000)
	srv := sshtesting.NewServer(t, func(_ sshtesting.Request, stdout, stderr io.Writer) int {
		io.WriteString(stderr, payload)
		io.WriteString(stdout, payload)
		return 0
	})
	shell, _ := connect(t, srv, sshutil.WithOutput(io.Discard))

	result, err := shell.Run(sshutil.NewCommand("spew"))

	require.NoError(t, err)
	assert.Len(t, result.Stdout, len(payload))
	assert.Len(t, result.Stderr, len(payload))
}

func TestRun_CommandDryRun(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, out := connect(t, srv)

	result, err := shell.Run(sshutil.NewCommand("exit 1").DryRun(true))

	require.NoError(t, err)
	assert.Equal(t, sshutil.Output{}, result)
	assert.Empty(t, srv.Requests())
	assert.Contains(t, out.String(), "exit 1")
}

func TestSetDryRun_ForcesDryRun(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, _ := connect(t, srv)

	shell.SetDryRun(true)
	assert.True(t, shell.DryRunMode())

	result, err := shell.Run(sshutil.NewCommand("exit 5"))
	require.NoError(t, err)
	assert.Equal(t, sshutil.Output{}, result)

	h, err := shell.Spawn(sshutil.NewCommand("exit 6"))
	require.NoError(t, err)
	// the override is captured when the command is spawned
	shell.SetDryRun(false)
	_, err = h.Join()
	require.NoError(t, err)

	assert.Empty(t, srv.Requests())

	_, err = shell.Run(sshutil.NewCommand("whoami"))
	require.NoError(t, err)
	assert.Len(t, srv.Requests(), 1)
}

func TestSpawn_Join(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, _ := connect(t, srv)

	h, err := shell.Spawn(sshutil.NewCommand("echo from the background"))
	require.NoError(t, err)

	result, err := h.Join()
	require.NoError(t, err)
	assert.Equal(t, "from the background\n", result.Stdout)

	select {
	case <-h.Done():
	default:
		t.Fatal("Done should be closed after Join")
	}

	again, err := h.Join()
	require.NoError(t, err)
	assert.Equal(t, result, again)
}

func TestSpawn_JoinReturnsError(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, _ := connect(t, srv)

	h, err := shell.Spawn(sshutil.NewCommand("exit 9"))
	require.NoError(t, err)

	_, err = h.Join()
	var exitErr *sshutil.NonZeroExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 9, exitErr.Exit)
}

func TestSpawn_CommandsNeverOverlap(t *testing.T) {
	var running, maxRunning atomic.Int32
	srv := sshtesting.NewServer(t, func(req sshtesting.Request, stdout, _ io.Writer) int {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		io.WriteString(stdout, req.Command)
		return 0
	})
	shell, _ := connect(t, srv)

	const n = 8
	handles := make([]*sshutil.SpawnHandle, n)
	for i := range handles {
		h, err := shell.Spawn(sshutil.Cmd("job-%d", i))
		require.NoError(t, err)
		handles[i] = h
	}
	// a blocking Run queues behind the spawned commands
	_, err := shell.Run(sshutil.NewCommand("job-run"))
	require.NoError(t, err)

	for i, h := range handles {
		result, err := h.Join()
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("job-%d", i), result.Stdout)
	}

	assert.Equal(t, int32(1), maxRunning.Load())
	assert.Len(t, srv.Requests(), n+1)
}

func TestRun_SequentialOrder(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, _ := connect(t, srv)

	for i := 0; i < 5; i++ {
		_, err := shell.Run(sshutil.Cmd("echo %d", i))
		require.NoError(t, err)
	}

	var got []string
	for _, r := range srv.Requests() {
		got = append(got, r.Command)
	}
	assert.Equal(t, []string{"echo 0", "echo 1", "echo 2", "echo 3", "echo 4"}, got)
}

func TestDuplicate(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, _ := connect(t, srv)
	shell.SetDryRun(true)

	dup, err := shell.Duplicate()
	require.NoError(t, err)
	defer dup.Close()

	assert.Equal(t, shell.Username(), dup.Username())
	assert.Equal(t, shell.Remote(), dup.Remote())
	assert.Equal(t, shell.RemoteName(), dup.RemoteName())
	assert.Equal(t, shell.KeyPath(), dup.KeyPath())
	assert.False(t, dup.DryRunMode())
	assert.Len(t, srv.Logins(), 2)

	// closing the original leaves the duplicate usable
	require.NoError(t, shell.Close())
	result, err := dup.Run(sshutil.NewCommand("whoami"))
	require.NoError(t, err)
	assert.Equal(t, "alice\n", result.Stdout)

	other, err := sshutil.FromExisting(dup)
	require.NoError(t, err)
	defer other.Close()
	assert.Len(t, srv.Logins(), 3)
}

func TestClose_ThenRunFails(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, _ := connect(t, srv)

	require.NoError(t, shell.Close())
	require.NoError(t, shell.Close())

	_, err := shell.Run(sshutil.NewCommand("whoami"))
	assert.True(t, rigerrors.IsCode(err, rigerrors.ErrSSH))
}

func TestReconnect_AfterConnectionDrop(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, out := connect(t, srv)

	srv.DropConnections()

	require.NoError(t, shell.Reconnect(context.Background()))
	assert.Contains(t, out.String(), "TCP connected, doing SSH handshake")

	result, err := shell.Run(sshutil.NewCommand("whoami"))
	require.NoError(t, err)
	assert.Equal(t, "alice\n", result.Stdout)
	assert.Len(t, srv.Logins(), 2)
}

func TestShell_TracesOnlyAtDebug(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	logs := logger.NewBufferLogger()
	shell, _ := connect(t, srv, sshutil.WithLogger(logs))

	shell.SetDryRun(true)
	srv.DropConnections()
	require.NoError(t, shell.Reconnect(context.Background()))

	assert.True(t, logs.HasLevel("debug"))
	for _, m := range logs.Snapshot() {
		assert.Equal(t, "debug", m.Level, m.Message)
	}
}

func TestShell_QuietWithoutDebugEnv(t *testing.T) {
	t.Setenv(logger.DebugEnv, "")
	var logged bytes.Buffer
	log.SetOutput(&logged)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	srv := sshtesting.NewServer(t, fakeRemote)
	shell, _ := connect(t, srv, sshutil.WithLogger(logger.NewEnvLogger("[rig]")))
	shell.SetDryRun(true)

	assert.Empty(t, logged.String())
}

func TestReconnect_RetriesUntilHostIsBack(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, out := connect(t, srv, sshutil.WithTimeout(200*time.Millisecond))

	srv.Stop()
	go func() {
		time.Sleep(350 * time.Millisecond)
		srv.Start()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, shell.Reconnect(ctx))

	assert.Contains(t, out.String(), "failed, retrying")
	_, err := shell.Run(sshutil.NewCommand("whoami"))
	assert.NoError(t, err)
}

func TestReconnect_StopsWhenContextDone(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, _ := connect(t, srv, sshutil.WithTimeout(100*time.Millisecond))
	srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := shell.Reconnect(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReconnect_AuthFailureIsNotRetried(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, _ := connect(t, srv)
	srv.RevokeAll()
	srv.DropConnections()

	start := time.Now()
	err := shell.Reconnect(context.Background())

	var authErr *sshutil.AuthFailedError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, srv.KeyPath, authErr.Key)
	assert.Less(t, time.Since(start), sshutil.DefaultTimeout)
}

func TestReconnect_WaitsForRunningCommand(t *testing.T) {
	release := make(chan struct{})
	srv := sshtesting.NewServer(t, func(req sshtesting.Request, stdout, _ io.Writer) int {
		if req.Command == "slow" {
			<-release
		}
		io.WriteString(stdout, "done")
		return 0
	})
	shell, _ := connect(t, srv)

	h, err := shell.Spawn(sshutil.NewCommand("slow"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(srv.Requests()) == 1 }, 5*time.Second, 10*time.Millisecond)

	reconnected := make(chan error, 1)
	go func() { reconnected <- shell.Reconnect(context.Background()) }()

	select {
	case <-reconnected:
		t.Fatal("Reconnect swapped the connection under a running command")
	case <-time.After(200 * time.Millisecond):
	}

	close(release)
	result, err := h.Join()
	require.NoError(t, err)
	assert.Equal(t, "done", result.Stdout)
	require.NoError(t, <-reconnected)
}

func TestWithAnyKey_FirstWorkingKeyWins(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	home := t.TempDir()
	sshDir := filepath.Join(home, ".ssh")
	require.NoError(t, os.Mkdir(sshDir, 0700))
	rejected := srv.WriteKeyPair(sshDir, "a_rejected", false)
	accepted := srv.WriteKeyPair(sshDir, "b_accepted", true)
	srv.WriteKeyPair(sshDir, "c_unused", true)
	require.NoError(t, os.WriteFile(filepath.Join(sshDir, "known_hosts"), nil, 0600))
	t.Setenv("HOME", home)

	out := &syncBuffer{}
	shell, err := sshutil.WithAnyKey("alice", srv.Addr, sshutil.WithOutput(out))
	require.NoError(t, err)
	defer shell.Close()

	assert.Equal(t, accepted, shell.KeyPath())
	assert.Contains(t, out.String(), rejected)
	assert.Contains(t, out.String(), "authentication failed with private key")
}

func TestWithAnyKey_NoneWork(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	home := t.TempDir()
	sshDir := filepath.Join(home, ".ssh")
	require.NoError(t, os.Mkdir(sshDir, 0700))
	srv.WriteKeyPair(sshDir, "id_rejected", false)
	t.Setenv("HOME", home)

	_, err := sshutil.WithAnyKey("alice", srv.Addr, sshutil.WithOutput(io.Discard))

	var keyErr *sshutil.KeyNotFoundError
	assert.ErrorAs(t, err, &keyErr)
}

func TestFromSSHConfigFile(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	host, port, err := net.SplitHostPort(srv.Addr)
	require.NoError(t, err)

	configPath := filepath.Join(t.TempDir(), "config")
	config := fmt.Sprintf("Host node1\n    HostName %s\n    Port %s\n    User bob\n    IdentityFile %s\n", host, port, srv.KeyPath)
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0600))

	out := &syncBuffer{}
	shell, err := sshutil.FromSSHConfigFile(configPath, "node1", sshutil.WithOutput(out))
	require.NoError(t, err)
	defer shell.Close()

	assert.Equal(t, "bob", shell.Username())
	assert.Equal(t, "node1", shell.RemoteName())
	assert.Equal(t, srv.Addr, shell.Remote())
	assert.Equal(t, []string{"bob"}, srv.Logins())

	_, err = shell.Run(sshutil.NewCommand("whoami"))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "bob@node1 whoami")
}

func TestWithKnownHosts(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	other := sshtesting.NewServer(t, fakeRemote)
	dir := t.TempDir()

	t.Run("unknown host is rejected and the file is created", func(t *testing.T) {
		path := filepath.Join(dir, "empty", "known_hosts")

		_, err := sshutil.WithKey("alice", srv.Addr, srv.KeyPath,
			sshutil.WithOutput(io.Discard), sshutil.WithKnownHosts(path))

		require.Error(t, err)
		assert.True(t, rigerrors.IsCode(err, rigerrors.ErrSSH))
		assert.FileExists(t, path)
	})

	t.Run("known host is accepted", func(t *testing.T) {
		path := filepath.Join(dir, "good_known_hosts")
		line := knownhosts.Line([]string{knownhosts.Normalize(srv.Addr)}, srv.HostKey)
		require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0600))

		shell, err := sshutil.WithKey("alice", srv.Addr, srv.KeyPath,
			sshutil.WithOutput(io.Discard), sshutil.WithKnownHosts(path))
		require.NoError(t, err)
		shell.Close()
	})

	t.Run("changed host key is a mismatch", func(t *testing.T) {
		path := filepath.Join(dir, "stale_known_hosts")
		line := knownhosts.Line([]string{knownhosts.Normalize(srv.Addr)}, other.HostKey)
		require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0600))

		_, err := sshutil.WithKey("alice", srv.Addr, srv.KeyPath,
			sshutil.WithOutput(io.Discard), sshutil.WithKnownHosts(path))

		var mismatch *sshutil.HostKeyMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "ssh-ed25519", mismatch.ReceivedType)
	})
}

func TestCopyTo(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, out := connect(t, srv)

	local := filepath.Join(t.TempDir(), "setup.sh")
	require.NoError(t, os.WriteFile(local, []byte("#!/bin/sh\necho hi\n"), 0755))
	remote := filepath.Join(t.TempDir(), "nested", "dir", "setup.sh")

	require.NoError(t, shell.CopyTo(local, remote))

	data, err := os.ReadFile(remote)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho hi\n", string(data))
	info, err := os.Stat(remote)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
	assert.Contains(t, out.String(), "upload "+local+" -> "+remote)
}

func TestCopyTo_DryRun(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, out := connect(t, srv)
	shell.SetDryRun(true)

	local := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(local, []byte("a"), 0644))
	remote := filepath.Join(t.TempDir(), "a.txt")

	require.NoError(t, shell.CopyTo(local, remote))

	assert.NoFileExists(t, remote)
	assert.Contains(t, out.String(), "upload "+local+" -> "+remote)
}

func TestCopyTo_MissingLocalFile(t *testing.T) {
	srv := sshtesting.NewServer(t, fakeRemote)
	shell, _ := connect(t, srv)

	err := shell.CopyTo(filepath.Join(t.TempDir(), "nope"), "/tmp/nope")

	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
