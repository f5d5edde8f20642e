package sshutil

import "context"

// Executor runs Commands against one remote host.
//
// *Shell is the real implementation; the testing package provides a
// scripted one so helpers that drive sequences of commands can be tested
// without a server.
type Executor interface {
	// Run executes cmd and blocks until it completes.
	Run(cmd Command) (Output, error)

	// Spawn starts cmd in the background and returns immediately.
	Spawn(cmd Command) (*SpawnHandle, error)

	// Reconnect replaces the underlying connection, retrying the dial until
	// it succeeds or ctx is done. It must not overlap in-flight commands.
	Reconnect(ctx context.Context) error
}

var _ Executor = (*Shell)(nil)
