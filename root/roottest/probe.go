// Package roottest provides a root for observing calls in tests.
package roottest

import (
	"testing"
	"time"

	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/root"
)

// DefaultTimeout bounds Receive.
const DefaultTimeout = 2 * time.Second

// Probe is a root that records every call it receives on a channel, so a
// test goroutine can send requests into a hub and wait for the answers.
type Probe struct {
	*root.Runtime

	calls chan *protocol.Call
	hub   root.Hub
	ctrl  *root.Controller
}

// NewProbe creates a probe that buffers up to 256 unread calls.
func NewProbe() *Probe {
	p := &Probe{calls: make(chan *protocol.Call, 256)}
	p.Runtime = root.New(p)
	return p
}

func (p *Probe) Initialize(id string, hub root.Hub) (*root.Controller, error) {
	ctrl, err := p.Runtime.Initialize(id, hub)
	if err != nil {
		return nil, err
	}
	p.hub = hub
	p.ctrl = ctrl
	return ctrl, nil
}

func (p *Probe) Activate(ctx *root.Context) error { return nil }
func (p *Probe) Terminate(ctx *root.Context)      {}

func (p *Probe) Handle(ctx *root.Context, call *protocol.Call) error {
	p.calls <- call
	return nil
}

// Controller returns the controller assigned on install.
func (p *Probe) Controller() *root.Controller {
	return p.ctrl
}

// Address returns the control address replies come back to.
func (p *Probe) Address() protocol.ControlAddress {
	return protocol.MustControl(p.ctrl.Address(), "in")
}

// Request dispatches a reply-required request from the probe.
func (p *Probe) Request(to protocol.ControlAddress, args ...any) *protocol.Call {
	call := protocol.NewRequest(to, p.Address(), p.hub.Time(), args...)
	p.hub.Dispatch(call)
	return call
}

// Notify dispatches a quiet request from the probe.
func (p *Probe) Notify(to protocol.ControlAddress, args ...any) *protocol.Call {
	call := protocol.NewQuietRequest(to, p.Address(), p.hub.Time(), args...)
	p.hub.Dispatch(call)
	return call
}

// Receive waits for the next call delivered to the probe.
func (p *Probe) Receive(t testing.TB) *protocol.Call {
	t.Helper()
	select {
	case call := <-p.calls:
		return call
	case <-time.After(DefaultTimeout):
		t.Fatal("probe: timed out waiting for call")
		return nil
	}
}

// Call sends a request and waits for its answer, failing the test if the
// answer carries a different match ID.
func (p *Probe) Call(t testing.TB, to protocol.ControlAddress, args ...any) *protocol.Call {
	t.Helper()
	req := p.Request(to, args...)
	resp := p.Receive(t)
	if resp.MatchID() != req.MatchID() {
		t.Fatalf("probe: got match id %s, want %s", resp.MatchID(), req.MatchID())
	}
	return resp
}

// ExpectNone fails the test if a call arrives within d.
func (p *Probe) ExpectNone(t testing.TB, d time.Duration) {
	t.Helper()
	select {
	case call := <-p.calls:
		t.Fatalf("probe: unexpected call %s", call)
	case <-time.After(d):
	}
}
