package sshutil

import (
	stderrors "errors"
	"io"

	"golang.org/x/crypto/ssh"
)

// sessionChannel adapts an *ssh.Session to Channel. Pipes are attached at
// creation, before the session starts.
type sessionChannel struct {
	sess   *ssh.Session
	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Reader
}

func newSessionChannel(sess *ssh.Session) (*sessionChannel, error) {
	stdin, err := sess.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		return nil, err
	}
	return &sessionChannel{sess: sess, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

func (c *sessionChannel) RequestPty(term string, height, width int) error {
	modes := ssh.TerminalModes{
		ssh.ECHO:          0,     // Disable echoing
		ssh.TTY_OP_ISPEED: 14400, // Input speed = 14.4kbaud
		ssh.TTY_OP_OSPEED: 14400, // Output speed = 14.4kbaud
	}
	return c.sess.RequestPty(term, height, width, modes)
}

func (c *sessionChannel) Start(cmd string) error { return c.sess.Start(cmd) }

func (c *sessionChannel) Stdout() io.Reader { return c.stdout }

func (c *sessionChannel) Stderr() io.Reader { return c.stderr }

func (c *sessionChannel) CloseWrite() error { return c.stdin.Close() }

func (c *sessionChannel) Wait() (int, error) {
	err := c.sess.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *ssh.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	return -1, err
}

// Close closes the session. Closing one the remote side already closed
// is not an error.
func (c *sessionChannel) Close() error {
	if err := c.sess.Close(); err != nil && !stderrors.Is(err, io.EOF) {
		return err
	}
	return nil
}
