package script

import (
	"fmt"

	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/stack"
)

// ErrorVariable holds the trapped error's text inside a catch block.
const ErrorVariable = "error"

func builtins() map[string]Command {
	return map[string]Command{
		"echo":    echo,
		"set":     set,
		"eval":    evaluate,
		"try":     try,
		"include": include,
		"locate":  locate,
		"exit":    exit,

		"add-root":    serviceCommand(protocol.RootManagerService, protocol.ControlAddRoot, 2),
		"remove-root": serviceCommand(protocol.RootManagerService, protocol.ControlRemoveRoot, 1),
		"roots":       serviceCommand(protocol.RootManagerService, protocol.ControlRoots, 0),
		"save":        serviceCommand(protocol.ResourceService, protocol.ControlSave, 2),
	}
}

func invalidArgs(format string, args ...any) error {
	return fmt.Errorf("%w: %s", protocol.ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// echo joins its arguments with spaces.
func echo(_ *Scope, args []any) (stack.StackFrame, error) {
	return stack.Value(protocol.JoinArgs(args)), nil
}

// set name       → value of name
// set name value → assigns and returns value
func set(scope *Scope, args []any) (stack.StackFrame, error) {
	if len(args) == 0 {
		return nil, invalidArgs("usage: set name ?value?")
	}
	name, _ := protocol.ArgString(args, 0)

	switch len(args) {
	case 1:
		value, ok := scope.Vars.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: $%s", ErrUnknownVariable, name)
		}
		return stack.Value(value), nil
	case 2:
		scope.Vars.Set(name, args[1])
		return stack.Value(args[1]), nil
	default:
		value := protocol.JoinArgs(args[1:])
		scope.Vars.Set(name, value)
		return stack.Value(value), nil
	}
}

// eval {body} evaluates body in the current scope; several arguments are
// joined and parsed as one script.
func evaluate(scope *Scope, args []any) (stack.StackFrame, error) {
	if len(args) == 0 {
		return nil, invalidArgs("usage: eval script")
	}
	if len(args) > 1 {
		block, err := Parse(protocol.JoinArgs(args))
		if err != nil {
			return nil, err
		}
		return scope.Evaluate(block), nil
	}

	block, err := blockArg(args[0])
	if err != nil {
		return nil, err
	}
	return scope.Evaluate(block), nil
}

func blockArg(arg any) (*Block, error) {
	switch v := arg.(type) {
	case *Block:
		return v.Fork(), nil
	case string:
		return Parse(v)
	default:
		return nil, invalidArgs("%T is not a script", arg)
	}
}

// try {body}                 → body's result, or nothing if it fails
// try {body} catch {handler} → body's result, or handler's if body fails
func try(scope *Scope, args []any) (stack.StackFrame, error) {
	if len(args) != 1 && len(args) != 3 {
		return nil, invalidArgs("usage: try body ?catch handler?")
	}

	body, err := blockArg(args[0])
	if err != nil {
		return nil, err
	}

	t := &tryFrame{scope: scope, body: body}
	if len(args) == 3 {
		if kw, _ := protocol.ArgString(args, 1); kw != "catch" {
			return nil, invalidArgs("expected catch, got %q", kw)
		}
		if t.handler, err = blockArg(args[2]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

type tryFrame struct {
	stack.Base
	scope    *Scope
	body     *Block
	handler  *Block
	catching *Scope
	started  bool
}

func (t *tryFrame) Process(stack.Env) stack.StackFrame {
	if !t.started {
		t.started = true
		return t.scope.Evaluate(t.body)
	}
	return t.catching.Evaluate(t.handler)
}

func (t *tryFrame) PostResponse(*protocol.Call) {}

func (t *tryFrame) PostResult(state stack.State, args []any) {
	switch {
	case state == stack.StateOK, t.catching != nil, state == stack.StateCancelled:
		t.Finish(state, args)
	case t.handler == nil:
		t.Complete()
	default:
		// The handler gets its own namespace so $error ends with it.
		t.catching = &Scope{Vars: NewNamespace(t.scope.Vars), Commands: t.scope.Commands}
		t.catching.Vars.Set(ErrorVariable, stack.ErrorOf(args).Error())
	}
}

// include key evaluates the script stored under key by the resource
// service, in the current scope.
func include(scope *Scope, args []any) (stack.StackFrame, error) {
	if len(args) != 1 {
		return nil, invalidArgs("usage: include key")
	}
	key, _ := protocol.ArgString(args, 0)
	return &includeFrame{scope: scope, key: key}, nil
}

type includeFrame struct {
	stack.Base
	scope  *Scope
	key    string
	loaded *Block
	phase  int
}

const (
	includeLoad = iota
	includeEval
	includeDone
)

func (f *includeFrame) Process(stack.Env) stack.StackFrame {
	switch f.phase {
	case includeLoad:
		f.phase = includeEval
		return stack.ServiceCall(protocol.ResourceService, protocol.ControlLoad, f.key)
	default:
		f.phase = includeDone
		return f.scope.Evaluate(f.loaded)
	}
}

func (f *includeFrame) PostResponse(*protocol.Call) {}

func (f *includeFrame) PostResult(state stack.State, args []any) {
	if state != stack.StateOK || f.phase == includeDone {
		f.Finish(state, args)
		return
	}

	text, err := protocol.ArgString(args, 0)
	if err != nil {
		f.Fail(err)
		return
	}
	block, err := Parse(text)
	if err != nil {
		f.Fail(fmt.Errorf("include %s: %w", f.key, err))
		return
	}
	f.loaded = block
}

// locate type → address of the current provider of the service
func locate(_ *Scope, args []any) (stack.StackFrame, error) {
	if len(args) != 1 {
		return nil, invalidArgs("usage: locate service")
	}
	service, _ := protocol.ArgString(args, 0)

	return stack.NewFunctionFrame(func(env stack.Env) ([]any, error) {
		addr, ok := env.Locate(protocol.ServiceType(service))
		if !ok {
			return nil, fmt.Errorf("%w: %s", protocol.ErrServiceUnavailable, service)
		}
		return []any{addr.String()}, nil
	}), nil
}

// exit ?code? asks the system manager to shut the hub down. The request is
// quiet because the hub stops before a reply could be handled.
func exit(_ *Scope, args []any) (stack.StackFrame, error) {
	if len(args) > 1 {
		return nil, invalidArgs("usage: exit ?code?")
	}
	code := 0
	if len(args) == 1 {
		n, err := protocol.ArgInt(args, 0)
		if err != nil {
			return nil, err
		}
		code = n
	}

	return stack.NewFunctionFrame(func(env stack.Env) ([]any, error) {
		addr, ok := env.Locate(protocol.SystemManagerService)
		if !ok {
			return nil, fmt.Errorf("%w: %s", protocol.ErrServiceUnavailable, protocol.SystemManagerService)
		}
		to := protocol.MustControl(addr, protocol.ControlExit)
		env.Send(protocol.NewQuietRequest(to, env.Address(), env.Time(), code))
		return []any{code}, nil
	}), nil
}

// serviceCommand forwards exactly n arguments to a control of the current
// provider of service.
func serviceCommand(service protocol.ServiceType, control string, n int) Command {
	return func(_ *Scope, args []any) (stack.StackFrame, error) {
		if len(args) != n {
			return nil, invalidArgs("%s takes %d arguments, got %d", control, n, len(args))
		}
		return stack.ServiceCall(service, control, wireArgs(args)...), nil
	}
}
