package main

import (
	"fmt"

	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/hub"
	"github.com/tailored-agentic-units/roots/root"
)

// console is the root the CLI evaluates through. It receives the eval
// result and then asks the system manager to exit: 0 after a reply, 1
// after an error. An exit issued by the script itself is queued first and
// wins.
type console struct {
	*root.Runtime

	ctrl    *root.Controller
	results chan *protocol.Call
}

func newConsole() *console {
	c := &console{results: make(chan *protocol.Call, 1)}
	c.Runtime = root.New(c)
	return c
}

func (c *console) Initialize(id string, h root.Hub) (*root.Controller, error) {
	ctrl, err := c.Runtime.Initialize(id, h)
	if err != nil {
		return nil, err
	}
	c.ctrl = ctrl
	return ctrl, nil
}

func (c *console) Activate(ctx *root.Context) error { return nil }
func (c *console) Terminate(ctx *root.Context)      {}

func (c *console) Handle(ctx *root.Context, call *protocol.Call) error {
	if call.IsRequest() {
		return fmt.Errorf("%w: console accepts no requests", protocol.ErrUnknownControl)
	}

	select {
	case c.results <- call:
	default:
		return nil
	}

	code := 0
	if call.IsError() {
		code = 1
	}
	if addr, ok := ctx.Locate(protocol.SystemManagerService); ok {
		to := protocol.MustControl(addr, protocol.ControlExit)
		ctx.Send(protocol.NewQuietRequest(to, call.To(), ctx.Time(), code))
	}
	return nil
}

// eval sends source to the script service on the console's behalf.
func (c *console) eval(h *hub.Hub, source string) error {
	addr, ok := h.Locate(protocol.ScriptService)
	if !ok {
		return fmt.Errorf("%w: %s", protocol.ErrServiceUnavailable, protocol.ScriptService)
	}

	from := protocol.MustControl(c.ctrl.Address(), "result")
	call := protocol.NewRequest(protocol.MustControl(addr, protocol.ControlEval), from, h.Time(), source)
	if !h.Dispatch(call) {
		return fmt.Errorf("%w: cannot route to %s", protocol.ErrServiceUnavailable, addr)
	}
	return nil
}

// result returns the eval answer if one arrived before the hub stopped.
func (c *console) result() (*protocol.Call, bool) {
	select {
	case call := <-c.results:
		return call, true
	default:
		return nil, false
	}
}
