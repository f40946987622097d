package stack

import (
	"context"
	"fmt"

	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/observability"
)

// Frame event types.
const (
	EventFramePush     observability.EventType = "frame.push"
	EventFrameComplete observability.EventType = "frame.complete"
)

// Option configures a Driver.
type Option func(*Driver)

// WithObserver reports frame.push and frame.complete events to observer.
func WithObserver(observer observability.Observer) Option {
	return func(d *Driver) {
		d.observer = observer
	}
}

// Driver runs a stack of frames on behalf of one owner, suspending whenever
// the top frame waits for a response.
type Driver struct {
	env      Env
	frames   []StackFrame
	awaiting string
	state    State
	result   []any

	observer observability.Observer

	// per-Process bookkeeping of the top frame's sends
	sent      int
	violation bool
}

// NewDriver creates a driver with frame at the bottom of the stack.
func NewDriver(env Env, frame StackFrame, opts ...Option) *Driver {
	d := &Driver{
		env:      env,
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.Push(frame)
	return d
}

// Push places frame on top of the stack.
func (d *Driver) Push(frame StackFrame) {
	d.frames = append(d.frames, frame)
	d.emit(EventFramePush, observability.LevelVerbose, map[string]any{
		"frame": fmt.Sprintf("%T", frame),
		"depth": len(d.frames),
	})
}

// Run processes frames until the top frame is waiting on a response or the
// stack is empty. It reports whether the driver finished.
func (d *Driver) Run() bool {
	for len(d.frames) > 0 && d.awaiting == "" {
		top := d.frames[len(d.frames)-1]

		if top.State() != StateIncomplete {
			d.pop(top.State(), top.Result())
			continue
		}

		d.sent, d.violation = 0, false
		child := top.Process(d.frameEnv())

		switch {
		case d.violation:
			d.awaiting = ""
			d.fail(fmt.Errorf("%w: %T", ErrOutstandingCall, top))
		case child != nil && d.awaiting != "":
			d.awaiting = ""
			d.fail(fmt.Errorf("%w: %T sent a call and pushed a child", ErrOutstandingCall, top))
		case child != nil:
			d.Push(child)
		case top.State() != StateIncomplete:
			// Completing abandons any call the frame left outstanding.
			d.awaiting = ""
		case d.awaiting != "":
			return false
		default:
			d.fail(fmt.Errorf("%w: %T", ErrStalled, top))
		}
	}
	return d.Done()
}

// Deliver hands a response to the suspended top frame and resumes. Calls
// whose match ID is not awaited are ignored and false is returned.
func (d *Driver) Deliver(call *protocol.Call) bool {
	if d.awaiting == "" || call.IsRequest() || call.MatchID() != d.awaiting {
		return false
	}
	d.awaiting = ""
	d.frames[len(d.frames)-1].PostResponse(call)
	d.Run()
	return true
}

// Awaiting returns the match ID the driver is suspended on, or "".
func (d *Driver) Awaiting() string {
	return d.awaiting
}

// Cancel abandons every frame. A response arriving later is ignored.
func (d *Driver) Cancel() {
	if d.Done() {
		return
	}
	d.frames = nil
	d.awaiting = ""
	d.state = StateCancelled
	d.result = []any{protocol.WrapError(ErrCancelled)}
	d.emit(EventFrameComplete, observability.LevelVerbose, map[string]any{"state": d.state.String()})
}

// Done reports whether the bottom frame has finished.
func (d *Driver) Done() bool {
	return d.state != StateIncomplete
}

// State returns the outcome of the bottom frame once Done.
func (d *Driver) State() State {
	return d.state
}

// Result returns the bottom frame's result once Done.
func (d *Driver) Result() []any {
	return d.result
}

// Depth returns the number of frames on the stack.
func (d *Driver) Depth() int {
	return len(d.frames)
}

// Err returns the error of a driver that finished with Error or
// Cancelled.
func (d *Driver) Err() error {
	if d.state == StateError || d.state == StateCancelled {
		return ErrorOf(d.result)
	}
	return nil
}

// pop removes the finished top frame and hands its outcome to the frame
// below, or finishes the driver.
func (d *Driver) pop(state State, result []any) {
	d.frames[len(d.frames)-1] = nil
	d.frames = d.frames[:len(d.frames)-1]

	d.emit(EventFrameComplete, observability.LevelVerbose, map[string]any{
		"state": state.String(),
		"depth": len(d.frames) + 1,
	})

	if len(d.frames) == 0 {
		d.state = state
		d.result = result
		return
	}
	d.frames[len(d.frames)-1].PostResult(state, result)
}

func (d *Driver) fail(err error) {
	d.pop(StateError, []any{protocol.WrapError(err)})
}

func (d *Driver) frameEnv() Env {
	return frameEnv{d}
}

func (d *Driver) emit(eventType observability.EventType, level observability.Level, data map[string]any) {
	d.observer.OnEvent(context.Background(), observability.NewEvent(eventType, level, "stack.Driver", data))
}

// frameEnv tracks the single outstanding call the top frame may have.
type frameEnv struct {
	d *Driver
}

func (e frameEnv) Address() protocol.ControlAddress { return e.d.env.Address() }
func (e frameEnv) Time() int64                      { return e.d.env.Time() }

func (e frameEnv) Send(call *protocol.Call) bool {
	if !call.IsReplyRequired() {
		return e.d.env.Send(call)
	}
	if e.d.awaiting != "" {
		e.d.violation = true
		return false
	}
	if !e.d.env.Send(call) {
		return false
	}
	e.d.awaiting = call.MatchID()
	return true
}

func (e frameEnv) Locate(service protocol.ServiceType) (protocol.ComponentAddress, bool) {
	return e.d.env.Locate(service)
}

func (e frameEnv) LocateAll(service protocol.ServiceType) []protocol.ComponentAddress {
	return e.d.env.LocateAll(service)
}
