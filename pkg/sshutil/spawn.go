package sshutil

// SpawnHandle is a command running in the background. It must be joined.
type SpawnHandle struct {
	done chan struct{}
	out  Output
	err  error
}

// Go runs fn in a new goroutine and returns a handle for its result.
func Go(fn func() (Output, error)) *SpawnHandle {
	h := &SpawnHandle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.out, h.err = fn()
	}()
	return h
}

// Join blocks until the command completes and returns what Run would have.
// Join may be called more than once; every call returns the same result.
func (h *SpawnHandle) Join() (Output, error) {
	<-h.done
	return h.out, h.err
}

// Done is closed when the command has completed.
func (h *SpawnHandle) Done() <-chan struct{} {
	return h.done
}
