package script

import (
	"fmt"

	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/stack"
)

// Evaluator is the frame that drives one Node. Each Process handles one
// command: a named command is turned into a child frame, a control address
// is called directly and anything else fails with ErrUnknownCommand. The
// first failure aborts the rest of the node.
type Evaluator struct {
	stack.Base
	node  Node
	scope *Scope
}

// NewEvaluator creates an evaluator for node. The node is rewound.
func NewEvaluator(node Node, scope *Scope) *Evaluator {
	node.Reset()
	return &Evaluator{node: node, scope: scope}
}

func (e *Evaluator) Process(env stack.Env) stack.StackFrame {
	for {
		args, ok, err := e.node.NextCommand(e.scope.Vars)
		if err != nil {
			e.Fail(err)
			return nil
		}
		if !ok {
			e.Complete(e.node.Result()...)
			return nil
		}
		if len(args) == 0 {
			continue
		}

		name, err := protocol.ArgString(args, 0)
		if err != nil {
			e.Fail(err)
			return nil
		}

		if cmd, found := e.scope.Commands.Lookup(name); found {
			frame, err := cmd(e.scope, args[1:])
			if err != nil {
				e.Fail(fmt.Errorf("%s: %w", name, err))
				return nil
			}
			return frame
		}

		to, err := protocol.ParseControlAddress(name)
		if err != nil {
			e.Fail(fmt.Errorf("%w: %s", ErrUnknownCommand, name))
			return nil
		}

		call := protocol.NewRequest(to, env.Address(), env.Time(), wireArgs(args[1:])...)
		if !env.Send(call) {
			e.Fail(fmt.Errorf("%w: cannot route to %s", protocol.ErrServiceUnavailable, to))
		}
		return nil
	}
}

func (e *Evaluator) PostResponse(call *protocol.Call) {
	if call.IsError() {
		e.Finish(stack.StateError, []any{call.ErrorValue()})
		return
	}
	e.node.PostResponse(call.Args())
}

func (e *Evaluator) PostResult(state stack.State, args []any) {
	if state != stack.StateOK {
		e.Finish(state, args)
		return
	}
	e.node.PostResponse(args)
}

// wireArgs replaces blocks with their source text so that calls only
// carry plain values.
func wireArgs(args []any) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		if b, ok := arg.(*Block); ok {
			out[i] = b.String()
			continue
		}
		out[i] = arg
	}
	return out
}
