package root

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/observability"
)

// Hub is the view of the hub a root is initialized against.
type Hub interface {
	// Dispatch routes a call without blocking. It reports whether any
	// mailbox accepted it.
	Dispatch(call *protocol.Call) bool

	// Time returns the hub clock in nanoseconds since hub start.
	Time() int64

	Locate(service protocol.ServiceType) (protocol.ComponentAddress, bool)
	LocateAll(service protocol.ServiceType) []protocol.ComponentAddress

	Logger() *slog.Logger
	Observer() observability.Observer
}

// Root is a component that can be installed into a hub.
type Root interface {
	// Initialize binds the root to its ID and hub and returns the
	// Controller used to start, feed and stop it. A root can only be
	// initialized once.
	Initialize(id string, hub Hub) (*Controller, error)
}

// ServiceProvider is implemented by roots that offer services. Extension
// roots have their services merged into the hub's registry on install.
type ServiceProvider interface {
	Services() []protocol.ServiceType
}

// Handler is the message-handling logic of a root. All methods run on the
// root's own goroutine.
type Handler interface {
	// Activate runs once before the first call is handled. An error
	// terminates the root.
	Activate(ctx *Context) error

	// Handle processes one call. A returned error is converted into an
	// Error Call when the call required a reply.
	Handle(ctx *Context, call *protocol.Call) error

	// Terminate runs once after the mailbox loop has stopped.
	Terminate(ctx *Context)
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithServices declares the services the root provides.
func WithServices(services ...protocol.ServiceType) Option {
	return func(r *Runtime) {
		r.services = append(r.services, services...)
	}
}

// Runtime is the standard Root implementation: one mailbox, one goroutine
// and a Handler.
type Runtime struct {
	handler  Handler
	services []protocol.ServiceType

	initialized atomic.Bool
	id          string
	address     protocol.ComponentAddress
	hub         Hub
	logger      *slog.Logger
	ctx         *Context

	mailbox   *mailbox
	state     atomic.Int32
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}

	processed atomic.Int64
	failed    atomic.Int64
}

// New creates a Runtime around handler.
func New(handler Handler, opts ...Option) *Runtime {
	r := &Runtime{
		handler: handler,
		mailbox: newMailbox(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Services returns the services declared with WithServices.
func (r *Runtime) Services() []protocol.ServiceType {
	return append([]protocol.ServiceType(nil), r.services...)
}

func (r *Runtime) Initialize(id string, hub Hub) (*Controller, error) {
	if !protocol.IsValidID(id) {
		return nil, fmt.Errorf("%w: %q", protocol.ErrInvalidID, id)
	}
	if hub == nil {
		return nil, fmt.Errorf("root %s: nil hub", id)
	}
	if !r.initialized.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInitialized, r.id)
	}

	r.id = id
	r.address = protocol.RootAddress(id)
	r.hub = hub
	r.logger = hub.Logger().With(slog.String("root", id))
	r.ctx = &Context{rt: r}

	return &Controller{rt: r}, nil
}

func (r *Runtime) start() error {
	if !r.initialized.Load() {
		return ErrNotInitialized
	}

	started := false
	r.startOnce.Do(func() {
		if !r.state.CompareAndSwap(int32(StateNew), int32(StateActiveIdle)) {
			return
		}
		started = true
		go r.run()
	})
	if !started {
		if State(r.state.Load()) == StateTerminated {
			return fmt.Errorf("%w: %s", ErrTerminated, r.id)
		}
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, r.id)
	}
	return nil
}

func (r *Runtime) shutdown() {
	r.stopOnce.Do(func() {
		r.mailbox.close()
		// Never started: nothing will run the loop, so finish here.
		if r.state.CompareAndSwap(int32(StateNew), int32(StateTerminated)) {
			r.startOnce.Do(func() {})
			r.rejectPending()
			close(r.done)
		}
	})
}

func (r *Runtime) run() {
	defer close(r.done)

	r.emit(EventStart, observability.LevelInfo, nil)

	if err := r.activate(); err != nil {
		r.logger.Error("root activation failed", slog.String("error", err.Error()))
		r.emit(EventActivateFailed, observability.LevelError, map[string]any{"error": err.Error()})
		r.mailbox.close()
	} else {
		for {
			call, ok := r.mailbox.next()
			if !ok {
				break
			}
			r.state.CompareAndSwap(int32(StateActiveIdle), int32(StateActiveRunning))
			r.process(call)
			r.state.CompareAndSwap(int32(StateActiveRunning), int32(StateActiveIdle))
		}
	}

	r.terminate()
	r.state.Store(int32(StateTerminated))
	r.rejectPending()

	r.emit(EventTerminate, observability.LevelInfo, map[string]any{
		"processed": r.processed.Load(),
		"failed":    r.failed.Load(),
	})
}

func (r *Runtime) activate() (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = protocol.PanicError(rec)
		}
	}()
	return r.handler.Activate(r.ctx)
}

func (r *Runtime) terminate() {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("root terminate hook panicked", slog.Any("panic", rec))
		}
	}()
	r.handler.Terminate(r.ctx)
}

func (r *Runtime) process(call *protocol.Call) {
	r.processed.Add(1)

	err := r.handle(call)
	if err == nil {
		return
	}

	r.failed.Add(1)
	r.emit(EventCallFailed, observability.LevelWarning, map[string]any{
		"call":  call.String(),
		"error": err.Error(),
	})

	if !call.IsReplyRequired() {
		r.logger.Warn("call failed",
			slog.String("to", call.To().String()),
			slog.String("kind", call.Kind().String()),
			slog.String("error", err.Error()),
		)
		return
	}
	r.ctx.Fail(call, err)
}

func (r *Runtime) handle(call *protocol.Call) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = protocol.PanicError(rec)
		}
	}()
	return r.handler.Handle(r.ctx, call)
}

// rejectPending answers every reply-required call left in the mailbox so
// that no sender waits on a root that will never process it.
func (r *Runtime) rejectPending() {
	for _, call := range r.mailbox.drain() {
		if !call.IsReplyRequired() {
			continue
		}
		r.ctx.Fail(call, fmt.Errorf("%w: %s", ErrTerminated, r.id))
	}
}

func (r *Runtime) emit(eventType observability.EventType, level observability.Level, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["root"] = r.id
	r.hub.Observer().OnEvent(context.Background(), observability.NewEvent(eventType, level, "root.Runtime", data))
}
