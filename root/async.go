package root

import (
	"fmt"
	"log/slog"

	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/observability"
)

// AsyncHandler implements the two phases of an AsyncControl.
type AsyncHandler interface {
	// OnInvoke handles an inbound request. It returns either the final
	// reply or error for call, or a new reply-required request addressed
	// elsewhere whose response completes the work. A nil call means an
	// empty reply.
	OnInvoke(ctx *Context, call *protocol.Call) (*protocol.Call, error)

	// OnResponse receives the reply to the outbound request and returns the
	// final reply or error for active. It may instead return a further
	// outbound request, which is tracked in place of the previous one.
	OnResponse(ctx *Context, active, response *protocol.Call) (*protocol.Call, error)
}

// AsyncErrorHandler is optionally implemented by an AsyncHandler to handle
// an Error response itself. Without it the error is forwarded to the
// active call's sender.
type AsyncErrorHandler interface {
	OnError(ctx *Context, active, errCall *protocol.Call) (*protocol.Call, error)
}

// AsyncControl tracks, per inbound call in service, the single outbound
// request it is waiting on. Everything runs on the root goroutine, so the
// pending map needs no lock. Responses whose match ID is not pending are
// dropped, which is how abandoned work is cancelled.
type AsyncControl struct {
	handler AsyncHandler
	pending map[string]*protocol.Call
}

// NewAsyncControl creates an AsyncControl driven by handler.
func NewAsyncControl(handler AsyncHandler) *AsyncControl {
	return &AsyncControl{
		handler: handler,
		pending: make(map[string]*protocol.Call),
	}
}

// Pending returns the number of inbound calls awaiting a response.
func (a *AsyncControl) Pending() int {
	return len(a.pending)
}

func (a *AsyncControl) Call(ctx *Context, call *protocol.Call) error {
	switch {
	case call.IsRequest():
		return a.invoke(ctx, call)
	case call.IsReply(), call.IsError():
		a.respond(ctx, call)
	}
	return nil
}

func (a *AsyncControl) invoke(ctx *Context, call *protocol.Call) error {
	next, err := a.handler.OnInvoke(ctx, call)
	if err != nil {
		return err
	}
	if next == nil {
		return ctx.Reply(call)
	}
	return a.advance(ctx, call, next)
}

func (a *AsyncControl) respond(ctx *Context, response *protocol.Call) {
	active, ok := a.pending[response.MatchID()]
	if !ok {
		ctx.Logger().Debug("dropping stale response",
			slog.String("to", response.To().String()),
			slog.String("match_id", response.MatchID()),
		)
		ctx.Emit(EventCallDropped, observability.LevelVerbose, map[string]any{"match_id": response.MatchID()})
		return
	}
	delete(a.pending, response.MatchID())

	var (
		next *protocol.Call
		err  error
	)
	if response.IsReply() {
		next, err = a.safeResponse(ctx, active, response)
	} else if eh, ok := a.handler.(AsyncErrorHandler); ok {
		next, err = a.safeError(ctx, eh, active, response)
	} else {
		next, err = active.ErrorArgsAt(ctx.Time(), response.Args()...)
	}
	if err == nil && next == nil {
		next, err = active.ReplyAt(ctx.Time())
	}
	if err != nil {
		ctx.Fail(active, err)
		return
	}
	if err := a.advance(ctx, active, next); err != nil {
		ctx.Fail(active, err)
	}
}

// advance either sends the final response to active or tracks a new
// outbound request on its behalf.
func (a *AsyncControl) advance(ctx *Context, active, next *protocol.Call) error {
	if next.IsRequest() {
		if !next.IsReplyRequired() {
			return fmt.Errorf("%w: %s", ErrQuietOutbound, next.To())
		}
		a.pending[next.MatchID()] = active
		if !ctx.Send(next) {
			delete(a.pending, next.MatchID())
			return fmt.Errorf("%w: cannot route to %s", protocol.ErrServiceUnavailable, next.To())
		}
		return nil
	}

	if next.MatchID() != active.MatchID() {
		return fmt.Errorf("%w: response does not match %s", ErrInvalidResponse, active.MatchID())
	}
	if active.IsReplyRequired() {
		ctx.Send(next)
	}
	return nil
}

func (a *AsyncControl) safeResponse(ctx *Context, active, response *protocol.Call) (next *protocol.Call, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			next, err = nil, protocol.PanicError(rec)
		}
	}()
	return a.handler.OnResponse(ctx, active, response)
}

func (a *AsyncControl) safeError(ctx *Context, eh AsyncErrorHandler, active, errCall *protocol.Call) (next *protocol.Call, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			next, err = nil, protocol.PanicError(rec)
		}
	}()
	return eh.OnError(ctx, active, errCall)
}
