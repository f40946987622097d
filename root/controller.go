package root

import (
	"context"
	"time"

	"github.com/tailored-agentic-units/roots/core/protocol"
)

// Stats is a snapshot of a root's mailbox counters.
type Stats struct {
	Processed int64
	Failed    int64
	Queued    int
}

// Controller is the thread-safe handle to an installed root. It is the only
// part of a root that may be used from goroutines other than the root's own.
type Controller struct {
	rt *Runtime
}

// ID returns the root ID.
func (c *Controller) ID() string {
	return c.rt.id
}

// Address returns the root's component address.
func (c *Controller) Address() protocol.ComponentAddress {
	return c.rt.address
}

// Start begins mailbox processing on a new goroutine.
func (c *Controller) Start() error {
	return c.rt.start()
}

// Shutdown signals the root to stop. It does not wait for termination and
// may be called any number of times from any goroutine.
func (c *Controller) Shutdown() {
	c.rt.shutdown()
}

// Submit queues a call without blocking. It returns false when the root is
// shutting down or terminated.
func (c *Controller) Submit(call *protocol.Call) bool {
	if call == nil {
		return false
	}
	return c.rt.mailbox.offer(call)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.rt.state.Load())
}

// IsAlive reports whether the root's goroutine is running.
func (c *Controller) IsAlive() bool {
	return c.State().IsActive()
}

// Done is closed once the root has terminated.
func (c *Controller) Done() <-chan struct{} {
	return c.rt.done
}

// AwaitTermination blocks until the root terminates or ctx is done.
func (c *Controller) AwaitTermination(ctx context.Context) error {
	select {
	case <-c.rt.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitTerminationTimeout is AwaitTermination with a timeout.
func (c *Controller) AwaitTerminationTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.AwaitTermination(ctx)
}

// Stats returns mailbox counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Processed: c.rt.processed.Load(),
		Failed:    c.rt.failed.Load(),
		Queued:    c.rt.mailbox.len(),
	}
}
