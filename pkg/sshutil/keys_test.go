package sshutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	rigerrors "github.com/rileyhilliard/rig/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func writeTestKey(t *testing.T, dir, name, passphrase string) string {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	}
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))
	return path
}

func TestLoadSigner(t *testing.T) {
	dir := t.TempDir()
	path := writeTestKey(t, dir, "id_ed25519", "")

	signer, err := loadSigner(path)

	require.NoError(t, err)
	assert.Equal(t, ssh.KeyAlgoED25519, signer.PublicKey().Type())
}

func TestLoadSigner_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope")

	_, err := loadSigner(path)

	var keyErr *KeyNotFoundError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, path, keyErr.File)
}

func TestLoadSigner_Encrypted(t *testing.T) {
	path := writeTestKey(t, t.TempDir(), "id_locked", "hunter2")

	_, err := loadSigner(path)

	var encErr *EncryptedKeyError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, path, encErr.Path)
}

func TestLoadSigner_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id_bad")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0600))

	_, err := loadSigner(path)

	require.Error(t, err)
	assert.True(t, rigerrors.IsCode(err, rigerrors.ErrKey))
	var encErr *EncryptedKeyError
	assert.False(t, errors.As(err, &encErr))
}

func TestWithDefaultKey_NoHome(t *testing.T) {
	t.Setenv("HOME", "")

	_, err := WithDefaultKey("alice", "127.0.0.1:1")

	var keyErr *KeyNotFoundError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, "~/"+DefaultKeySuffix, keyErr.File)
}

func TestWithDefaultKey_MissingKeyFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	_, err := WithDefaultKey("alice", "127.0.0.1:1")

	var keyErr *KeyNotFoundError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, filepath.Join(home, DefaultKeySuffix), keyErr.File)
}

func TestWithAnyKey_NoKeys(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(home, ".ssh"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "config"), nil, 0600))
	t.Setenv("HOME", home)

	_, err := WithAnyKey("alice", "127.0.0.1:1")

	var keyErr *KeyNotFoundError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, filepath.Join(home, ".ssh"), keyErr.File)
}

func TestWithAnyKey_NoKeyDirectory(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := WithAnyKey("alice", "127.0.0.1:1")

	var keyErr *KeyNotFoundError
	assert.ErrorAs(t, err, &keyErr)
}

func TestFirstLine(t *testing.T) {
	structured := rigerrors.WrapWithCode(errors.New("dial tcp: refused"), rigerrors.ErrSSH, "Can't reach 'node1'", "Is SSH running?")

	assert.Equal(t, "Can't reach 'node1'", firstLine(structured))
	assert.Equal(t, "no such key: /k", firstLine(&KeyNotFoundError{File: "/k"}))
}
