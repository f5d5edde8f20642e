package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rileyhilliard/rig/internal/errors"
	"github.com/rileyhilliard/rig/internal/logger"
	"github.com/rileyhilliard/rig/internal/ui"
	"golang.org/x/sync/errgroup"
)

const (
	readChunkSize = 256
	ptyTerm       = "vt100"
	ptyHeight     = 24
	ptyWidth      = 80
)

// Channel is the part of a remote command channel that running a Command
// needs. A Channel is used for exactly one command.
type Channel interface {
	// RequestPty asks the remote side for a pseudo-terminal.
	RequestPty(term string, height, width int) error
	// Start executes cmd remotely without waiting for it.
	Start(cmd string) error
	Stdout() io.Reader
	Stderr() io.Reader
	// CloseWrite signals EOF on the remote command's stdin.
	CloseWrite() error
	// Wait blocks until the remote side closes the channel and returns the
	// command's exit status.
	Wait() (int, error)
	Close() error
}

// Output holds the captured streams of one completed command. Both are
// empty for a dry run.
type Output struct {
	Stdout string
	Stderr string
}

// execContext carries what runOnChannel needs from the Shell besides the
// channel itself.
type execContext struct {
	host string // user@name, for the console line
	out  io.Writer
	log  logger.Logger
}

// runOnChannel executes cmd on ch and returns its captured output.
//
// The exit status is read only after stdout has hit EOF, stdin has been
// closed, the remote side has closed the channel, and stderr is drained.
func runOnChannel(ch Channel, cmd Command, ec execContext) (Output, error) {
	ec.log.Debug("run on channel: %s", cmd)

	msg := cmd.Text()
	text := cmd.resolved()
	if dir, ok := cmd.Dir(); ok {
		ec.log.Debug("cwd %s, resolved command: %q", dir, text)
	} else {
		ec.log.Debug("resolved command: %q", text)
	}

	ui.HostCommand(ec.out, ec.host, msg)

	if cmd.IsDryRun() {
		if err := ch.Close(); err != nil {
			return Output{}, errors.Wrap(err, "Failed to close channel after dry run")
		}
		ec.log.Debug("closed channel after dry run")
		return Output{}, nil
	}

	// sudo needs a tty to prompt on
	if cmd.WantsPty() {
		if err := ch.RequestPty(ptyTerm, ptyHeight, ptyWidth); err != nil {
			return Output{}, errors.WrapWithCode(err, errors.ErrSSH,
				"Failed to allocate PTY",
				"The remote host may not support pseudo-terminals. Try the command with NoPty.")
		}
		ec.log.Debug("requested pty")
	}

	if err := ch.Start(text); err != nil {
		return Output{}, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to execute command: %s", text),
			"Connection may have been closed. Try reconnecting.")
	}

	var stdout, stderr bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		return readChunks(ch.Stderr(), io.Discard, &stderr)
	})

	if err := readChunks(ch.Stdout(), ec.out, &stdout); err != nil {
		return Output{}, errors.Wrap(err, fmt.Sprintf("Lost stdout of: %s", text))
	}
	ec.log.Debug("no more stdout")

	if err := ch.CloseWrite(); err != nil && !stderrors.Is(err, io.EOF) {
		return Output{}, errors.Wrap(err, "Failed to close channel")
	}
	exit, err := ch.Wait()
	if err != nil {
		return Output{}, errors.Wrap(err, fmt.Sprintf("Channel closed without an exit status: %s", text))
	}
	if err := g.Wait(); err != nil {
		return Output{}, errors.Wrap(err, fmt.Sprintf("Lost stderr of: %s", text))
	}
	ec.log.Debug("command completed remotely, exit status %d", exit)

	if _, err := ec.out.Write(stderr.Bytes()); err != nil {
		return Output{}, errors.Wrap(err, "Failed to echo stderr")
	}

	result := Output{
		Stdout: decodeLossy(stdout.Bytes()),
		Stderr: decodeLossy(stderr.Bytes()),
	}

	if exit != 0 && !cmd.AllowsError() {
		return Output{}, &NonZeroExitError{
			Cmd:    text,
			Exit:   exit,
			Stdout: result.Stdout,
			Stderr: result.Stderr,
		}
	}

	return result, nil
}

// decodeLossy decodes b as UTF-8, replacing each byte that is not part of a
// valid sequence with U+FFFD.
func decodeLossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
		} else {
			sb.Write(b[:size])
		}
		b = b[size:]
	}
	return sb.String()
}

// readChunks copies r into dst in fixed-size reads until EOF, echoing each
// chunk to echo as it arrives.
func readChunks(r io.Reader, echo io.Writer, dst *bytes.Buffer) error {
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			dst.Write(buf[:n])
			if _, werr := echo.Write(buf[:n]); werr != nil {
				return werr
			}
			clear(buf[:n])
		}
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
