package stack

import (
	"errors"
	"fmt"

	"github.com/tailored-agentic-units/roots/core/protocol"
)

// Sentinel errors raised by the Driver on behalf of misbehaving frames.
var (
	ErrStalled         = errors.New("frame returned without completing, suspending or pushing a child")
	ErrOutstandingCall = errors.New("frame already has an outstanding call")
	ErrCancelled       = errors.New("evaluation cancelled")
)

func init() {
	protocol.RegisterErrorTag(ErrStalled, "FrameStalled")
	protocol.RegisterErrorTag(ErrOutstandingCall, "OutstandingCall")
	protocol.RegisterErrorTag(ErrCancelled, "Cancelled")
}

// State is a frame's completion state. Everything but Incomplete is
// terminal.
type State int

const (
	StateIncomplete State = iota
	StateOK
	StateError
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIncomplete:
		return "incomplete"
	case StateOK:
		return "ok"
	case StateError:
		return "error"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Env is what a frame may use while processing.
type Env interface {
	// Address is where responses to calls the frame sends must go.
	Address() protocol.ControlAddress
	Time() int64
	Send(call *protocol.Call) bool
	Locate(service protocol.ServiceType) (protocol.ComponentAddress, bool)
	LocateAll(service protocol.ServiceType) []protocol.ComponentAddress
}

// StackFrame is one suspendable step of a computation.
type StackFrame interface {
	State() State

	// Process advances the frame. It returns a child frame to run first,
	// or nil.
	Process(env Env) StackFrame

	// PostResponse delivers the reply or error to the call the frame sent.
	PostResponse(call *protocol.Call)

	// PostResult delivers the outcome of the frame's child.
	PostResult(state State, args []any)

	// Result is valid once State is not Incomplete. For Error it holds a
	// single *protocol.ErrorValue.
	Result() []any
}

// Base carries the state and result of a frame. Frames embed it and call
// Complete or Fail.
type Base struct {
	state  State
	result []any
}

func (b *Base) State() State {
	return b.state
}

func (b *Base) Result() []any {
	return b.result
}

// Complete finishes the frame with OK and args.
func (b *Base) Complete(args ...any) {
	b.state = StateOK
	b.result = args
}

// Fail finishes the frame with Error, wrapping err.
func (b *Base) Fail(err error) {
	b.state = StateError
	b.result = []any{protocol.WrapError(err)}
}

// Finish adopts a terminal state and result, typically a child's.
func (b *Base) Finish(state State, args []any) {
	b.state = state
	b.result = args
}

// ErrorOf returns the error carried by an Error result.
func ErrorOf(args []any) error {
	if len(args) == 0 {
		return protocol.NewErrorValue(protocol.TagError, "")
	}
	if ev, ok := args[0].(*protocol.ErrorValue); ok {
		return ev
	}
	if err, ok := args[0].(error); ok {
		return protocol.WrapError(err)
	}
	return protocol.NewErrorValue(protocol.TagError, fmt.Sprint(args...))
}

// FunctionFrame runs a function synchronously on its first Process.
type FunctionFrame struct {
	Base
	fn func(env Env) ([]any, error)
}

// NewFunctionFrame creates a frame that completes with fn's results.
func NewFunctionFrame(fn func(env Env) ([]any, error)) *FunctionFrame {
	return &FunctionFrame{fn: fn}
}

// Value creates a frame that completes with args.
func Value(args ...any) *FunctionFrame {
	return NewFunctionFrame(func(Env) ([]any, error) { return args, nil })
}

// Failure creates a frame that fails with err.
func Failure(err error) *FunctionFrame {
	return NewFunctionFrame(func(Env) ([]any, error) { return nil, err })
}

func (f *FunctionFrame) Process(env Env) StackFrame {
	args, err := f.fn(env)
	if err != nil {
		f.Fail(err)
		return nil
	}
	f.Complete(args...)
	return nil
}

func (f *FunctionFrame) PostResponse(*protocol.Call) {}
func (f *FunctionFrame) PostResult(State, []any)     {}

// CallFrame sends one request and completes with the response.
type CallFrame struct {
	Base
	to   protocol.ControlAddress
	args []any
	sent bool
}

// NewCallFrame creates a frame calling to with args.
func NewCallFrame(to protocol.ControlAddress, args ...any) *CallFrame {
	return &CallFrame{to: to, args: args}
}

// ServiceCall creates a frame calling control on the provider of service
// current at processing time.
func ServiceCall(service protocol.ServiceType, control string, args ...any) StackFrame {
	return &serviceCall{service: service, control: control, args: args}
}

func (f *CallFrame) Process(env Env) StackFrame {
	if f.sent {
		return nil
	}
	f.sent = true

	call := protocol.NewRequest(f.to, env.Address(), env.Time(), f.args...)
	if !env.Send(call) {
		f.Fail(fmt.Errorf("%w: cannot route to %s", protocol.ErrServiceUnavailable, f.to))
	}
	return nil
}

func (f *CallFrame) PostResponse(call *protocol.Call) {
	if call.IsError() {
		f.Finish(StateError, []any{call.ErrorValue()})
		return
	}
	f.Complete(call.Args()...)
}

func (f *CallFrame) PostResult(State, []any) {}

type serviceCall struct {
	Base
	service protocol.ServiceType
	control string
	args    []any
}

func (f *serviceCall) Process(env Env) StackFrame {
	addr, ok := env.Locate(f.service)
	if !ok {
		f.Fail(fmt.Errorf("%w: %s", protocol.ErrServiceUnavailable, f.service))
		return nil
	}
	to, err := addr.Control(f.control)
	if err != nil {
		f.Fail(err)
		return nil
	}
	return NewCallFrame(to, f.args...)
}

func (f *serviceCall) PostResponse(*protocol.Call) {}

func (f *serviceCall) PostResult(state State, args []any) {
	f.Finish(state, args)
}
