package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/rig/internal/errors"
	"github.com/rileyhilliard/rig/internal/ui"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultKeySuffix is the default private key, relative to the home directory.
const DefaultKeySuffix = ".ssh/id_rsa"

// WithDefaultKey connects with ~/.ssh/id_rsa.
func WithDefaultKey(username, remote string, opts ...Option) (*Shell, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, &KeyNotFoundError{File: "~/" + DefaultKeySuffix}
	}
	return WithKey(username, remote, filepath.Join(home, DefaultKeySuffix), opts...)
}

// WithAnyKey tries the private key of every *.pub file in ~/.ssh, in name
// order, and returns the first shell that connects.
func WithAnyKey(username, remote string, opts ...Option) (*Shell, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, &KeyNotFoundError{File: "~/.ssh"}
	}
	return withAnyKeyIn(filepath.Join(home, ".ssh"), username, remote, opts...)
}

func withAnyKeyIn(dir, username, remote string, opts ...Option) (*Shell, error) {
	o := newOptions(opts)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &KeyNotFoundError{File: dir}
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pub") {
			continue
		}
		keyPath := filepath.Join(dir, strings.TrimSuffix(entry.Name(), ".pub"))

		shell, err := WithKey(username, remote, keyPath, opts...)
		if err == nil {
			return shell, nil
		}
		o.log.Debug("key %s did not work: %v", keyPath, err)
		ui.KeyRejected(o.out, keyPath, firstLine(err))
	}

	return nil, &KeyNotFoundError{File: dir}
}

// loadSigner reads an unencrypted private key.
func loadSigner(keyPath string) (ssh.Signer, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &KeyNotFoundError{File: keyPath}
		}
		return nil, errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("Can't read SSH key %s", keyPath),
			"Check the file permissions: chmod 600 <key>")
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || isEncryptedPEM(data) {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		return nil, errors.WrapWithCode(err, errors.ErrKey,
			fmt.Sprintf("Can't parse SSH key %s", keyPath),
			"rig expects an unencrypted private key in OpenSSH or PEM format.")
	}
	return signer, nil
}

// isEncryptedPEM checks if PEM data contains encryption markers.
func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED"))
}

// createHostKeyCallback wraps the knownhosts callback to provide better error messages.
func createHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create .ssh directory: %w", err)
		}
		if err := os.WriteFile(knownHostsPath, []byte{}, 0600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
			return &HostKeyMismatchError{
				Hostname:     hostname,
				ReceivedType: key.Type(),
				KnownHosts:   knownHostsPath,
				Want:         keyErr.Want,
			}
		}
		return err
	}, nil
}

// firstLine returns a one-line reason for err. Structured errors render
// over several lines starting with a ✗ marker.
func firstLine(err error) string {
	msg := strings.TrimSpace(err.Error())
	msg = strings.TrimPrefix(msg, ui.SymbolFail+" ")
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}
