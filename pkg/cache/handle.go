package cache

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// Handle tracks one asynchronous load.
//
// Cancel is cooperative: the load checks it before each tier lookup and
// before the network fetch. A load cancelled by then still invokes its
// completion exactly once, with nil. Once bytes reach the completion the
// tier writes always finish.
type Handle struct {
	id        string
	cancelled atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
}

func newHandle(cancel context.CancelFunc) *Handle {
	return &Handle{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID returns the load identifier used in log events.
func (h *Handle) ID() string { return h.id }

// Cancel abandons the load and aborts an in-flight network fetch. It is safe
// to call more than once and after the load finished.
func (h *Handle) Cancel() {
	h.cancelled.Store(true)
	h.cancel()
}

// Cancelled reports whether Cancel was called.
func (h *Handle) Cancelled() bool { return h.cancelled.Load() }

// Done is closed once the completion has returned and every tier write of
// the load has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until Done is closed.
func (h *Handle) Wait() { <-h.done }
