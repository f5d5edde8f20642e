package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rileyhilliard/rig/internal/errors"
	"github.com/rileyhilliard/rig/internal/logger"
	"github.com/rileyhilliard/rig/internal/ui"
	"golang.org/x/crypto/ssh"
)

// DefaultTimeout bounds the TCP connect and each read/write of the SSH
// handshake. Reconnect dials with half of it and waits half of it between
// attempts.
const DefaultTimeout = 10 * time.Second

// Shell is one authenticated SSH connection to a remote host.
//
// Commands issued through Run and Spawn share the connection and are
// serialized by a single mutex, so two commands never interleave on the
// wire. Reconnect swaps the connection under the same mutex.
type Shell struct {
	mu     sync.Mutex
	client *ssh.Client

	username   string
	keyPath    string
	remoteName string // what the caller asked for, for display
	remote     string // resolved host:port

	dryRunMode atomic.Bool
	opts       options
}

// Option configures a Shell.
type Option func(*options)

type options struct {
	timeout         time.Duration
	out             io.Writer
	log             logger.Logger
	hostKeyCallback ssh.HostKeyCallback
	knownHosts      string
	displayName     string
}

// WithTimeout replaces DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithOutput sets where command lines and remote output are echoed.
// Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithLogger sets the debug logger. Defaults to logger.Default().
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithHostKeyCallback verifies server host keys with cb. Without this or
// WithKnownHosts, host keys are not checked.
func WithHostKeyCallback(cb ssh.HostKeyCallback) Option {
	return func(o *options) { o.hostKeyCallback = cb }
}

// WithKnownHosts verifies server host keys against a known_hosts file,
// creating it if missing.
func WithKnownHosts(path string) Option {
	return func(o *options) { o.knownHosts = path }
}

// WithDisplayName sets the name shown for the host in console output.
// Defaults to the address passed to WithKey.
func WithDisplayName(name string) Option {
	return func(o *options) { o.displayName = name }
}

func newOptions(opts []Option) options {
	o := options{
		timeout: DefaultTimeout,
		out:     os.Stdout,
		log:     logger.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) clientConfig(username string, signer ssh.Signer) (*ssh.ClientConfig, error) {
	cb := o.hostKeyCallback
	if cb == nil && o.knownHosts != "" {
		var err error
		cb, err = createHostKeyCallback(o.knownHosts)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrSSH,
				fmt.Sprintf("Failed to load known_hosts from %s", o.knownHosts),
				"Check the file exists and is readable, or turn off strict host keys.")
		}
	}
	if cb == nil {
		cb = ssh.InsecureIgnoreHostKey() //nolint:gosec // strict host keys are opt-in
	}

	return &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: cb,
		Timeout:         o.timeout,
	}, nil
}

// WithKey connects to remote as username, authenticating with the
// unencrypted private key at keyPath. remote may omit the port, which
// defaults to 22.
func WithKey(username, remote, keyPath string, opts ...Option) (*Shell, error) {
	o := newOptions(opts)
	return connect(username, remote, keyPath, o)
}

// FromExisting opens a second, independent connection with the same
// credentials as s.
func FromExisting(s *Shell) (*Shell, error) {
	return s.Duplicate()
}

// Duplicate opens a second, independent connection with the same username,
// key, remote, and options. Dry-run mode is not carried over.
func (s *Shell) Duplicate() (*Shell, error) {
	o := s.opts
	o.displayName = s.remoteName
	return connect(s.username, s.remote, s.keyPath, o)
}

func connect(username, remote, keyPath string, o options) (*Shell, error) {
	name := remote
	if o.displayName != "" {
		name = o.displayName
	}
	o.log.Debug("new SSH shell: %s@%s", username, remote)
	o.log.Debug("using key: %s", keyPath)

	signer, err := loadSigner(keyPath)
	if err != nil {
		return nil, err
	}

	addr := withDefaultPort(remote)
	conn, err := net.DialTimeout("tcp", addr, o.timeout)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s", name, addr),
			suggestionForDialError(err))
	}

	client, err := handshake(conn, addr, username, keyPath, signer, o)
	if err != nil {
		return nil, err
	}

	resolved := conn.RemoteAddr().String()
	ui.Connected(o.out, username, name, resolved)

	return &Shell{
		client:     client,
		username:   username,
		keyPath:    keyPath,
		remoteName: name,
		remote:     resolved,
		opts:       o,
	}, nil
}

// handshake runs the SSH handshake and key authentication over conn. conn
// is closed on failure. The timeout applies to each read and write of the
// handshake only.
func handshake(conn net.Conn, addr, username, keyPath string, signer ssh.Signer, o options) (*ssh.Client, error) {
	config, err := o.clientConfig(username, signer)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := conn.SetDeadline(time.Now().Add(o.timeout)); err != nil {
		conn.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't bound the SSH handshake with %s", addr),
			"The connection closed before the handshake started. Try again.")
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.WrapWithCode(hostKeyErr, errors.ErrSSH,
				hostKeyErr.Error(),
				hostKeyErr.Suggestion())
		}
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, &AuthFailedError{Key: keyPath, Cause: err}
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with %s didn't go through", addr),
			suggestionForHandshakeError(err))
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		sshConn.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't clear the handshake deadline on %s", addr),
			"The connection closed right after authenticating. Try again.")
	}
	o.log.Debug("SSH session authenticated")

	return ssh.NewClient(sshConn, chans, reqs), nil
}

func withDefaultPort(remote string) string {
	if _, _, err := net.SplitHostPort(remote); err == nil {
		return remote
	}
	return net.JoinHostPort(strings.Trim(remote, "[]"), "22")
}

// SetDryRun toggles dry-run mode. While on, every command passed to Run or
// Spawn is printed but not executed. The connection stays open.
func (s *Shell) SetDryRun(on bool) {
	s.dryRunMode.Store(on)
	state := "off"
	if on {
		state = "on"
	}
	s.opts.log.Debug("toggled dry run mode: %s", state)
}

// DryRunMode reports whether dry-run mode is on.
func (s *Shell) DryRunMode() bool {
	return s.dryRunMode.Load()
}

func (s *Shell) applyDryRun(cmd Command) Command {
	if s.dryRunMode.Load() {
		return cmd.DryRun(true)
	}
	return cmd
}

// Run executes cmd and blocks until it completes.
//
// A command that asks for a password (e.g. sudo without NOPASSWD) blocks
// forever.
func (s *Shell) Run(cmd Command) (Output, error) {
	cmd = s.applyDryRun(cmd)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runLocked(cmd)
}

// Spawn starts cmd in the background and returns immediately. The command
// waits its turn on the connection like any other. The handle must be
// joined.
func (s *Shell) Spawn(cmd Command) (*SpawnHandle, error) {
	cmd = s.applyDryRun(cmd)

	h := Go(func() (Output, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.runLocked(cmd)
	})
	s.opts.log.Debug("spawned: %s", cmd)
	return h, nil
}

func (s *Shell) runLocked(cmd Command) (Output, error) {
	if s.client == nil {
		return Output{}, errors.New(errors.ErrSSH,
			fmt.Sprintf("Connection to %s is closed", s.remoteName),
			"Open a new shell or call Reconnect.")
	}

	sess, err := s.client.NewSession()
	if err != nil {
		return Output{}, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	ch, err := newSessionChannel(sess)
	if err != nil {
		sess.Close()
		return Output{}, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to attach to SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer func() { _ = ch.Close() }()

	return runOnChannel(ch, cmd, s.execContext())
}

func (s *Shell) execContext() execContext {
	return execContext{
		host: s.username + "@" + s.remoteName,
		out:  s.opts.out,
		log:  s.opts.log,
	}
}

// Reconnect replaces the connection with a new one to the same resolved
// address, for example after the host rebooted.
//
// The TCP dial is retried every timeout/2 until it succeeds or ctx is done;
// with context.Background() it retries forever. The handshake is not
// retried: a rejected key returns *AuthFailedError at once.
//
// Reconnect waits for any command holding the connection to finish before
// swapping it.
func (s *Shell) Reconnect(ctx context.Context) error {
	s.opts.log.Debug("reconnect attempt: %s@%s", s.username, s.remote)

	signer, err := loadSigner(s.keyPath)
	if err != nil {
		return err
	}

	half := s.opts.timeout / 2
	dialer := net.Dialer{Timeout: half}

	var conn net.Conn
	dial := func() error {
		ui.ReconnectAttempt(s.opts.out)
		c, err := dialer.DialContext(ctx, "tcp", s.remote)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		s.opts.log.Debug("reconnect dial failed: %v (next attempt in %s)", err, wait)
		ui.ReconnectFailed(s.opts.out)
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(half), ctx)
	if err := backoff.RetryNotify(dial, policy, notify); err != nil {
		return errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Gave up reconnecting to %s", s.remote),
			"The host did not come back before the deadline.")
	}

	ui.HandshakeNotice(s.opts.out)

	client, err := handshake(conn, s.remote, s.username, s.keyPath, signer, s.opts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.client
	s.client = client
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	ui.Connected(s.opts.out, s.username, s.remote, "")
	return nil
}

// Close closes the connection. Commands issued afterwards fail.
func (s *Shell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// Username returns the user the shell authenticated as.
func (s *Shell) Username() string { return s.username }

// Remote returns the resolved host:port the shell is connected to.
func (s *Shell) Remote() string { return s.remote }

// RemoteName returns the host as the caller named it.
func (s *Shell) RemoteName() string { return s.remoteName }

// KeyPath returns the private key the shell authenticated with.
func (s *Shell) KeyPath() string { return s.keyPath }

func (s *Shell) String() string {
	return fmt.Sprintf("Shell{ %s@%s dry_run=%t key=%q }",
		s.username, s.remote, s.dryRunMode.Load(), s.keyPath)
}
