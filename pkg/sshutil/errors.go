package sshutil

import (
	"fmt"
	"net"
	"runtime"
	"strings"

	"github.com/rileyhilliard/rig/internal/errors"
	"golang.org/x/crypto/ssh/knownhosts"
)

// KeyNotFoundError is returned when no usable private key could be found:
// the key file is missing, the home directory is unknown, or no key in
// ~/.ssh authenticated.
type KeyNotFoundError struct {
	File string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("no such key: %s", e.File)
}

// ErrorCode implements errors.Coded.
func (e *KeyNotFoundError) ErrorCode() string { return errors.ErrKey }

// AuthFailedError is returned when the handshake succeeded but the server
// rejected the key. Callers may retry with a different key.
type AuthFailedError struct {
	Key   string
	Cause error
}

func (e *AuthFailedError) Error() string {
	return fmt.Sprintf("authentication failed with private key: %s", e.Key)
}

func (e *AuthFailedError) Unwrap() error { return e.Cause }

// ErrorCode implements errors.Coded.
func (e *AuthFailedError) ErrorCode() string { return errors.ErrAuth }

// NonZeroExitError is returned when a remote command exits non-zero and did
// not opt into AllowError. Cmd is the command as sent, after cwd and bash
// rewriting. Stdout and Stderr hold whatever was captured before exit.
type NonZeroExitError struct {
	Cmd    string
	Exit   int
	Stdout string
	Stderr string
}

func (e *NonZeroExitError) Error() string {
	return fmt.Sprintf("non-zero exit (%d) for command: %s", e.Exit, e.Cmd)
}

// ErrorCode implements errors.Coded.
func (e *NonZeroExitError) ErrorCode() string { return errors.ErrExec }

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// ErrorCode implements errors.Coded.
func (e *EncryptedKeyError) ErrorCode() string { return errors.ErrKey }

// Suggestion returns the ssh-add invocation that would make the key usable.
func (e *EncryptedKeyError) Suggestion() string {
	if runtime.GOOS == "darwin" {
		return fmt.Sprintf("rig needs an unencrypted key. Decrypt a copy with: ssh-keygen -p -f %s\n  or add it to the agent: ssh-add --apple-use-keychain %s", e.Path, e.Path)
	}
	return fmt.Sprintf("rig needs an unencrypted key. Decrypt a copy with: ssh-keygen -p -f %s\n  or add it to the agent: ssh-add %s", e.Path, e.Path)
}

// HostKeyMismatchError provides helpful context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// ErrorCode implements errors.Coded.
func (e *HostKeyMismatchError) ErrorCode() string { return errors.ErrSSH }

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The server's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  To update known_hosts:\n"+
			"    ssh-keyscan -t rsa,ecdsa,ed25519 %s >> %s\n\n"+
			"  Or remove the old entry:\n"+
			"    ssh-keygen -R %s",
		wantStr, e.ReceivedType, host, e.KnownHosts, host)
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that box? Try: ssh <host>"
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "timeout") {
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	return "Make sure the host is reachable: ping <host>"
}

func suggestionForHandshakeError(err error) string {
	if strings.Contains(err.Error(), "host key") {
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}
