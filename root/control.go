package root

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/tailored-agentic-units/roots/core/protocol"
)

// Control handles the calls addressed to one control ID. Requests, and any
// replies or errors to calls the control sent, arrive here.
type Control interface {
	Call(ctx *Context, call *protocol.Call) error
}

// ControlFunc is a synchronous control: its results become the reply.
// Replies and errors arriving at a ControlFunc are ignored.
type ControlFunc func(ctx *Context, call *protocol.Call) ([]any, error)

func (f ControlFunc) Call(ctx *Context, call *protocol.Call) error {
	if !call.IsRequest() {
		return nil
	}
	args, err := f(ctx, call)
	if err != nil {
		return err
	}
	return ctx.Reply(call, args...)
}

// Controls is a Handler that routes calls to controls by control ID.
type Controls struct {
	controls  map[string]Control
	activate  func(ctx *Context) error
	terminate func(ctx *Context)
}

// NewControls creates an empty Controls handler.
func NewControls() *Controls {
	return &Controls{controls: make(map[string]Control)}
}

// Add registers a control. Later registrations replace earlier ones.
func (c *Controls) Add(id string, control Control) *Controls {
	if !protocol.IsValidID(id) {
		panic(fmt.Sprintf("root: invalid control id %q", id))
	}
	c.controls[id] = control
	return c
}

// AddFunc registers a synchronous control.
func (c *Controls) AddFunc(id string, fn func(ctx *Context, call *protocol.Call) ([]any, error)) *Controls {
	return c.Add(id, ControlFunc(fn))
}

// OnActivate sets the activation hook.
func (c *Controls) OnActivate(fn func(ctx *Context) error) *Controls {
	c.activate = fn
	return c
}

// OnTerminate sets the termination hook.
func (c *Controls) OnTerminate(fn func(ctx *Context)) *Controls {
	c.terminate = fn
	return c
}

// IDs returns the registered control IDs in sorted order.
func (c *Controls) IDs() []string {
	ids := make([]string, 0, len(c.controls))
	for id := range c.controls {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Controls) Activate(ctx *Context) error {
	if c.activate == nil {
		return nil
	}
	return c.activate(ctx)
}

func (c *Controls) Terminate(ctx *Context) {
	if c.terminate != nil {
		c.terminate(ctx)
	}
}

func (c *Controls) Handle(ctx *Context, call *protocol.Call) error {
	to := call.To()
	if to.Component() != ctx.Address() {
		return c.unroutable(ctx, call, fmt.Errorf("%w: %s", ErrNoSuchComponent, to.Component()))
	}

	control, exists := c.controls[to.ID()]
	if !exists {
		return c.unroutable(ctx, call, fmt.Errorf("%w: %s", protocol.ErrUnknownControl, to))
	}
	return control.Call(ctx, call)
}

// unroutable reports a protocol error for requests; stray replies and
// errors are only logged.
func (c *Controls) unroutable(ctx *Context, call *protocol.Call, err error) error {
	if call.IsRequest() {
		return err
	}
	ctx.Logger().Debug("dropping response for unknown control",
		slog.String("to", call.To().String()),
		slog.String("match_id", call.MatchID()),
	)
	return nil
}
