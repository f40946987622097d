package root

import (
	"log/slog"

	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/observability"
)

// Context is a root's view of itself and its hub. It must only be used on
// the root's own goroutine, i.e. from Handler, Control and frame code.
type Context struct {
	rt *Runtime
}

func (c *Context) ID() string {
	return c.rt.id
}

func (c *Context) Address() protocol.ComponentAddress {
	return c.rt.address
}

// ControlAddress returns the address of one of this root's controls.
func (c *Context) ControlAddress(id string) protocol.ControlAddress {
	return protocol.MustControl(c.rt.address, id)
}

// Time returns the hub clock.
func (c *Context) Time() int64 {
	return c.rt.hub.Time()
}

// Send dispatches a call through the hub.
func (c *Context) Send(call *protocol.Call) bool {
	return c.rt.hub.Dispatch(call)
}

// Reply answers a request if its sender expects a reply.
func (c *Context) Reply(call *protocol.Call, args ...any) error {
	if !call.IsReplyRequired() {
		return nil
	}
	reply, err := call.ReplyAt(c.Time(), args...)
	if err != nil {
		return err
	}
	c.Send(reply)
	return nil
}

// Fail answers a request with an error if its sender expects a reply.
func (c *Context) Fail(call *protocol.Call, err error) {
	if !call.IsReplyRequired() {
		return
	}
	errCall, e := call.ErrorAt(c.Time(), err)
	if e != nil {
		c.rt.logger.Debug("cannot answer non-request with error",
			slog.String("call", call.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	c.Send(errCall)
}

func (c *Context) Locate(service protocol.ServiceType) (protocol.ComponentAddress, bool) {
	return c.rt.hub.Locate(service)
}

func (c *Context) LocateAll(service protocol.ServiceType) []protocol.ComponentAddress {
	return c.rt.hub.LocateAll(service)
}

func (c *Context) Logger() *slog.Logger {
	return c.rt.logger
}

func (c *Context) Observer() observability.Observer {
	return c.rt.hub.Observer()
}

// Emit sends an observability event tagged with this root's ID.
func (c *Context) Emit(eventType observability.EventType, level observability.Level, data map[string]any) {
	c.rt.emit(eventType, level, data)
}
