package hub

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/observability"
	"github.com/tailored-agentic-units/roots/root"
)

// core is the hub's own root. It provides root-manager and system-manager,
// installs the extensions on activation, absorbs misrouted calls and tears
// every other root down when it terminates.
type core struct {
	hub      *Hub
	controls *root.Controls
}

func newCore(h *Hub) *root.Runtime {
	c := &core{hub: h}
	c.controls = root.NewControls().
		Add(protocol.ControlAddRoot, root.NewAsyncControl(&addRoot{hub: h})).
		AddFunc(protocol.ControlRemoveRoot, c.removeRoot).
		AddFunc(protocol.ControlRoots, c.listRoots).
		AddFunc(protocol.ControlExit, c.exit)

	return root.New(c, root.WithServices(protocol.RootManagerService, protocol.SystemManagerService))
}

func (c *core) Activate(ctx *root.Context) error {
	defer close(c.hub.ready)

	if err := c.hub.installExtensions(); err != nil {
		c.hub.failure = err
		return err
	}
	return nil
}

func (c *core) Handle(ctx *root.Context, call *protocol.Call) error {
	if call.To().RootID() != ctx.ID() {
		return c.misrouted(ctx, call)
	}
	return c.controls.Handle(ctx, call)
}

func (c *core) Terminate(ctx *root.Context) {
	h := c.hub
	h.state.Store(int32(stateStopped))

	var stopping []*root.Controller
	h.roots.Range(func(key, value any) bool {
		if key == ctx.ID() {
			return true
		}
		if _, ok := h.roots.LoadAndDelete(key); ok {
			ctrl := value.(*root.Controller)
			ctrl.Shutdown()
			stopping = append(stopping, ctrl)
			h.metrics.RecordInstalledRoot(-1)
		}
		return true
	})

	wait, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	stuck := 0
	for _, ctrl := range stopping {
		if err := ctrl.AwaitTermination(wait); err != nil {
			stuck++
			ctx.Logger().Warn("root did not terminate in time",
				slog.String("root", ctrl.ID()),
				slog.Duration("timeout", h.shutdownTimeout),
			)
		}
	}

	h.roots.Delete(ctx.ID())
	h.metrics.RecordInstalledRoot(-1)

	ctx.Logger().Info("hub stopped",
		slog.Int("roots", len(stopping)),
		slog.Int("stuck", stuck),
		slog.Int("exit_code", h.ExitCode()),
	)
	h.emit(EventShutdown, observability.LevelInfo, map[string]any{
		"roots":     len(stopping),
		"stuck":     stuck,
		"exit_code": h.ExitCode(),
	})
}

// misrouted handles a call whose destination root is not installed.
// Reply-required requests are answered with ErrRootNotFound; quiet
// requests and responses are dropped.
func (c *core) misrouted(ctx *root.Context, call *protocol.Call) error {
	target := call.To().RootID()
	data := map[string]any{
		"to":       call.To().String(),
		"from":     call.From().String(),
		"kind":     call.Kind().String(),
		"match_id": call.MatchID(),
	}

	if call.IsReplyRequired() {
		c.hub.emit(EventCallRerouted, observability.LevelVerbose, data)
		return fmt.Errorf("%w: %s", ErrRootNotFound, target)
	}

	c.hub.metrics.RecordDropped()
	if call.IsRequest() {
		ctx.Logger().Warn("dropping quiet call to missing root",
			slog.String("to", call.To().String()),
			slog.String("from", call.From().String()),
		)
		c.hub.emit(EventCallDropped, observability.LevelWarning, data)
		return nil
	}

	ctx.Logger().Debug("dropping response to missing root",
		slog.String("to", call.To().String()),
		slog.String("kind", call.Kind().String()),
	)
	c.hub.emit(EventCallDropped, observability.LevelVerbose, data)
	return nil
}

func (c *core) removeRoot(ctx *root.Context, call *protocol.Call) ([]any, error) {
	id, err := protocol.ArgString(call.Args(), 0)
	if err != nil {
		return nil, err
	}
	if err := c.hub.Uninstall(id); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *core) listRoots(ctx *root.Context, call *protocol.Call) ([]any, error) {
	ids := c.hub.Roots()
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args, nil
}

func (c *core) exit(ctx *root.Context, call *protocol.Call) ([]any, error) {
	code := 0
	if call.Len() > 0 {
		n, err := protocol.ArgInt(call.Args(), 0)
		if err != nil {
			return nil, err
		}
		code = n
	}
	if code < math.MinInt32 || code > math.MaxInt32 {
		return nil, fmt.Errorf("%w: exit code %d out of range", protocol.ErrInvalidArgument, code)
	}

	c.hub.exitCode.Store(int32(code))
	ctx.Logger().Info("exit requested",
		slog.Int("code", code),
		slog.String("from", call.From().String()),
	)
	c.hub.Shutdown()
	return []any{code}, nil
}

// addRoot creates a root through the root-factory service and installs it
// once the factory replies.
type addRoot struct {
	hub *Hub
}

func (a *addRoot) OnInvoke(ctx *root.Context, call *protocol.Call) (*protocol.Call, error) {
	args := call.Args()
	id, err := protocol.ArgString(args, 0)
	if err != nil {
		return nil, err
	}
	rootType, err := protocol.ArgString(args, 1)
	if err != nil {
		return nil, err
	}

	if !protocol.IsValidID(id) {
		return nil, fmt.Errorf("%w: %q", protocol.ErrInvalidID, id)
	}
	if _, exists := a.hub.lookup(id); exists {
		return nil, fmt.Errorf("%w: %s", ErrRootExists, id)
	}

	factory, ok := ctx.Locate(protocol.RootFactoryService)
	if !ok {
		return nil, fmt.Errorf("%w: %s", protocol.ErrServiceUnavailable, protocol.RootFactoryService)
	}

	to := protocol.MustControl(factory, protocol.ControlCreate)
	return protocol.NewRequest(to, call.To(), ctx.Time(), rootType), nil
}

func (a *addRoot) OnResponse(ctx *root.Context, active, response *protocol.Call) (*protocol.Call, error) {
	created, ok := response.Arg(0).(root.Root)
	if !ok {
		return nil, fmt.Errorf("%w: factory returned %T", root.ErrInvalidResponse, response.Arg(0))
	}

	id, _ := protocol.ArgString(active.Args(), 0)
	ctrl, err := a.hub.Install(id, created)
	if err != nil {
		return nil, err
	}
	return active.ReplyAt(ctx.Time(), ctrl.Address().String())
}
