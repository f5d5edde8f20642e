package sshutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"testing"
	"time"

	rigerrors "github.com/rileyhilliard/rig/internal/errors"
	"github.com/rileyhilliard/rig/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// deadlineConn fails every SetDeadline call.
type deadlineConn struct {
	net.Conn
	closed bool
}

func (c *deadlineConn) SetDeadline(time.Time) error {
	return errors.New("use of closed network connection")
}

func (c *deadlineConn) Close() error {
	c.closed = true
	return c.Conn.Close()
}

func TestHandshake_DeadlineFailureIsReported(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	client, server := net.Pipe()
	defer server.Close()
	conn := &deadlineConn{Conn: client}

	_, err = handshake(conn, "10.0.0.1:22", "alice", "/keys/id", signer,
		newOptions([]Option{WithLogger(logger.Noop())}))

	require.Error(t, err)
	assert.True(t, rigerrors.IsCode(err, rigerrors.ErrSSH))
	assert.Contains(t, err.Error(), "10.0.0.1:22")
	assert.True(t, conn.closed, "conn is closed when the handshake can't start")
}
