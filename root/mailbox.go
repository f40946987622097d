package root

import (
	"sync"

	"github.com/tailored-agentic-units/roots/core/protocol"
)

// mailbox is an unbounded multi-producer, single-consumer FIFO of Calls.
// Producers never block; the consumer waits on a one-slot signal channel
// that coalesces wake-ups.
type mailbox struct {
	mu     sync.Mutex
	calls  []*protocol.Call
	closed bool
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		calls:  make([]*protocol.Call, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// offer appends a call. Returns false once the mailbox is closed.
func (m *mailbox) offer(call *protocol.Call) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.calls = append(m.calls, call)

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// next blocks until a call is available or the mailbox is closed. Calls
// still queued at close are left for drain.
func (m *mailbox) next() (*protocol.Call, bool) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, false
		}
		if len(m.calls) > 0 {
			call := m.calls[0]
			m.calls[0] = nil
			m.calls = m.calls[1:]
			m.mu.Unlock()
			return call, true
		}
		m.mu.Unlock()

		<-m.signal
	}
}

func (m *mailbox) close() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.closed = true

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// drain removes and returns everything still queued.
func (m *mailbox) drain() []*protocol.Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := m.calls
	m.calls = nil
	return calls
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
