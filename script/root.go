package script

import (
	"log/slog"

	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/observability"
	"github.com/tailored-agentic-units/roots/root"
	"github.com/tailored-agentic-units/roots/stack"
)

// Script root event types.
const (
	EventEvalStart    observability.EventType = "script.eval.start"
	EventEvalComplete observability.EventType = "script.eval.complete"
)

// evaluation is one eval call in progress.
type evaluation struct {
	call   *protocol.Call
	driver *stack.Driver
}

type evalControl struct {
	commands *CommandRegistry
	waiting  map[string]*evaluation
}

// New creates the root behind the script service. Every eval call is
// evaluated on its own Driver with a fresh namespace. A nil registry means
// DefaultCommands.
func New(commands *CommandRegistry) *root.Runtime {
	if commands == nil {
		commands = DefaultCommands()
	}
	ec := &evalControl{
		commands: commands,
		waiting:  make(map[string]*evaluation),
	}

	controls := root.NewControls().
		Add(protocol.ControlEval, ec).
		OnTerminate(ec.cancelAll)

	return root.New(controls, root.WithServices(protocol.ScriptService))
}

func (ec *evalControl) Call(ctx *root.Context, call *protocol.Call) error {
	if call.IsRequest() {
		return ec.start(ctx, call)
	}

	ev, ok := ec.waiting[call.MatchID()]
	if !ok {
		ctx.Logger().Debug("dropping response for finished evaluation",
			slog.String("match_id", call.MatchID()),
		)
		return nil
	}
	delete(ec.waiting, call.MatchID())

	ev.driver.Deliver(call)
	ec.settle(ctx, ev)
	return nil
}

func (ec *evalControl) start(ctx *root.Context, call *protocol.Call) error {
	text, err := protocol.ArgString(call.Args(), 0)
	if err != nil {
		return err
	}
	block, err := Parse(text)
	if err != nil {
		return err
	}

	env := &contextEnv{ctx: ctx, addr: ctx.ControlAddress(protocol.ControlEval)}
	scope := NewScope(ec.commands)
	ev := &evaluation{
		call:   call,
		driver: stack.NewDriver(env, scope.Evaluate(block), stack.WithObserver(ctx.Observer())),
	}

	ctx.Emit(EventEvalStart, observability.LevelVerbose, map[string]any{
		"match_id": call.MatchID(),
		"commands": block.Len(),
	})

	ev.driver.Run()
	ec.settle(ctx, ev)
	return nil
}

// settle parks a suspended evaluation under the match ID it awaits, or
// answers the eval call once the driver is done.
func (ec *evalControl) settle(ctx *root.Context, ev *evaluation) {
	if !ev.driver.Done() {
		ec.waiting[ev.driver.Awaiting()] = ev
		return
	}

	state := ev.driver.State()
	ctx.Emit(EventEvalComplete, observability.LevelVerbose, map[string]any{
		"match_id": ev.call.MatchID(),
		"state":    state.String(),
	})

	if state == stack.StateOK {
		if err := ctx.Reply(ev.call, ev.driver.Result()...); err != nil {
			ctx.Logger().Error("eval reply failed", slog.String("error", err.Error()))
		}
		return
	}

	err := ev.driver.Err()
	if !ev.call.IsReplyRequired() {
		ctx.Logger().Warn("script failed", slog.String("error", err.Error()))
		return
	}
	ctx.Fail(ev.call, err)
}

func (ec *evalControl) cancelAll(ctx *root.Context) {
	for id, ev := range ec.waiting {
		delete(ec.waiting, id)
		ev.driver.Cancel()
		ctx.Fail(ev.call, ev.driver.Err())
	}
}

// contextEnv lets frames run against a root context, receiving responses
// on the eval control.
type contextEnv struct {
	ctx  *root.Context
	addr protocol.ControlAddress
}

func (e *contextEnv) Address() protocol.ControlAddress { return e.addr }
func (e *contextEnv) Time() int64                      { return e.ctx.Time() }
func (e *contextEnv) Send(call *protocol.Call) bool    { return e.ctx.Send(call) }

func (e *contextEnv) Locate(service protocol.ServiceType) (protocol.ComponentAddress, bool) {
	return e.ctx.Locate(service)
}

func (e *contextEnv) LocateAll(service protocol.ServiceType) []protocol.ComponentAddress {
	return e.ctx.LocateAll(service)
}
