package hub_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/roots/config"
	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/factory"
	"github.com/tailored-agentic-units/roots/hub"
	"github.com/tailored-agentic-units/roots/observability"
	"github.com/tailored-agentic-units/roots/root"
	"github.com/tailored-agentic-units/roots/root/roottest"
)

func echoRoot() (root.Root, error) {
	return root.New(root.NewControls().
		AddFunc("echo", func(ctx *root.Context, call *protocol.Call) ([]any, error) {
			return call.Args(), nil
		})), nil
}

func testRegistry(t *testing.T) *factory.Registry {
	t.Helper()
	reg := factory.NewRegistry()
	require.NoError(t, reg.Register("echo", echoRoot))
	return reg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startHub builds and starts a hub with the echo root type and a probe
// installed as "probe".
func startHub(t *testing.T, b *hub.Builder) (*hub.Hub, *roottest.Probe) {
	t.Helper()

	if b == nil {
		b = hub.NewBuilder().WithRootFactory(testRegistry(t))
	}
	h, err := b.WithLogger(testLogger()).Build()
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() {
		h.Shutdown()
		_ = h.AwaitTimeout(2 * time.Second)
	})

	probe := roottest.NewProbe()
	_, err = h.Install("probe", probe)
	require.NoError(t, err)
	return h, probe
}

func control(t *testing.T, s string) protocol.ControlAddress {
	t.Helper()
	addr, err := protocol.ParseControlAddress(s)
	require.NoError(t, err)
	return addr
}

func managerControl(t *testing.T, h *hub.Hub, id string) protocol.ControlAddress {
	t.Helper()
	addr, ok := h.Locate(protocol.RootManagerService)
	require.True(t, ok)
	return protocol.MustControl(addr, id)
}

func TestBuilder_Build(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		h, err := hub.NewBuilder().Build()
		require.NoError(t, err)
		assert.Equal(t, "default", h.Name())
		assert.Empty(t, h.CoreID())
		assert.Equal(t, int64(0), h.Time())
	})

	t.Run("unknown observer", func(t *testing.T) {
		cfg := config.HubConfig{Observer: "carrier-pigeon"}
		_, err := hub.NewBuilder().WithConfig(cfg).Build()
		assert.Error(t, err)
	})

	t.Run("unknown event level", func(t *testing.T) {
		cfg := config.HubConfig{EventLevel: "chatty"}
		_, err := hub.NewBuilder().WithConfig(cfg).Build()
		assert.ErrorContains(t, err, "unknown event level")
	})

	t.Run("unknown extension", func(t *testing.T) {
		cfg := config.HubConfig{Extensions: []string{"missing"}}
		_, err := hub.NewBuilder().WithConfig(cfg).Build()
		assert.ErrorIs(t, err, factory.ErrNotFound)
	})
}

func TestHub_Start(t *testing.T) {
	h, _ := startHub(t, nil)

	assert.ErrorIs(t, h.Start(context.Background()), hub.ErrAlreadyStarted)
	assert.Regexp(t, `^_hub_[0-9a-f]{8}$`, h.CoreID())
	assert.Greater(t, h.Time(), int64(0))

	_, ok := h.Locate(protocol.SystemManagerService)
	assert.True(t, ok)
	_, ok = h.Locate(protocol.RootFactoryService)
	assert.True(t, ok)
	assert.Contains(t, h.Roots(), "_factory_0")
}

func TestHub_InstallDuplicate(t *testing.T) {
	h, _ := startHub(t, nil)

	first, err := echoRoot()
	require.NoError(t, err)
	ctrl, err := h.Install("foo", first)
	require.NoError(t, err)

	second, _ := echoRoot()
	_, err = h.Install("foo", second)
	assert.ErrorIs(t, err, hub.ErrRootExists)

	got, ok := h.Controller("foo")
	require.True(t, ok)
	assert.Same(t, ctrl, got)
	assert.True(t, got.IsAlive())
}

func TestHub_InstallInvalidID(t *testing.T) {
	h, _ := startHub(t, nil)

	r, _ := echoRoot()
	_, err := h.Install("not valid", r)
	assert.ErrorIs(t, err, protocol.ErrInvalidID)
}

func TestHub_DispatchUnknownRoot(t *testing.T) {
	h, probe := startHub(t, nil)

	t.Run("request gets RootNotFound", func(t *testing.T) {
		req := probe.Request(control(t, "/ghost.echo"), "boo")

		resp := probe.Receive(t)
		require.True(t, resp.IsError())
		assert.Equal(t, req.MatchID(), resp.MatchID())
		assert.Equal(t, "RootNotFound", resp.ErrorValue().Type)
	})

	t.Run("quiet request is dropped", func(t *testing.T) {
		before := h.Metrics().CallsDropped
		call := protocol.NewQuietRequest(control(t, "/ghost.echo"), probe.Address(), h.Time())
		assert.True(t, h.Dispatch(call))

		assert.Eventually(t, func() bool {
			return h.Metrics().CallsDropped == before+1
		}, time.Second, 5*time.Millisecond)
		probe.ExpectNone(t, 50*time.Millisecond)
	})

	t.Run("nil call", func(t *testing.T) {
		assert.False(t, h.Dispatch(nil))
	})
}

func TestHub_DispatchBeforeStart(t *testing.T) {
	h, err := hub.NewBuilder().WithLogger(testLogger()).Build()
	require.NoError(t, err)

	call := protocol.NewRequest(control(t, "/x.y"), control(t, "/a.b"), 0)
	assert.False(t, h.Dispatch(call))
	assert.Equal(t, int64(1), h.Metrics().CallsRejected)
}

func TestHub_AddRootThenUnknownControl(t *testing.T) {
	h, probe := startHub(t, nil)

	resp := probe.Call(t, managerControl(t, h, protocol.ControlAddRoot), "foo", "echo")
	require.True(t, resp.IsReply(), "add-root failed: %v", resp.ErrorValue())
	assert.Equal(t, []any{"/foo"}, resp.Args())

	resp = probe.Call(t, control(t, "/foo.echo"), "hello")
	require.True(t, resp.IsReply())
	assert.Equal(t, []any{"hello"}, resp.Args())

	req := probe.Request(control(t, "/foo.nope"))
	resp = probe.Receive(t)
	require.True(t, resp.IsError())
	assert.Equal(t, req.MatchID(), resp.MatchID())
	assert.Equal(t, protocol.TagUnknownControl, resp.ErrorValue().Type)
}

func TestHub_AddRootErrors(t *testing.T) {
	h, probe := startHub(t, nil)
	addRoot := managerControl(t, h, protocol.ControlAddRoot)

	tests := []struct {
		name string
		args []any
		tag  string
	}{
		{"missing type", []any{"foo"}, protocol.TagInvalidArgument},
		{"invalid id", []any{"9foo", "echo"}, protocol.TagInvalidArgument},
		{"existing id", []any{"probe", "echo"}, "RootExists"},
		{"unknown type", []any{"foo", "nope"}, "UnknownRootType"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := probe.Call(t, addRoot, tt.args...)
			require.True(t, resp.IsError())
			assert.Equal(t, tt.tag, resp.ErrorValue().Type)
		})
	}
}

func TestHub_ConcurrentAddRootNotCrossDelivered(t *testing.T) {
	h, first := startHub(t, nil)
	second := roottest.NewProbe()
	_, err := h.Install("probe2", second)
	require.NoError(t, err)

	addRoot := managerControl(t, h, protocol.ControlAddRoot)

	requests := make(map[string]*protocol.Call)
	probes := []*roottest.Probe{first, second}
	for i, p := range probes {
		id := fmt.Sprintf("child%d", i)
		requests[id] = p.Request(addRoot, id, "echo")
	}

	results := make(map[string]*protocol.Call)
	for i, p := range probes {
		id := fmt.Sprintf("child%d", i)
		resp := p.Receive(t)
		assert.Equal(t, requests[id].MatchID(), resp.MatchID())
		results[id] = resp
	}

	require.Len(t, results, 2)
	assert.Equal(t, []any{"/child0"}, results["child0"].Args())
	assert.Equal(t, []any{"/child1"}, results["child1"].Args())
	first.ExpectNone(t, 50*time.Millisecond)
	second.ExpectNone(t, 0)
}

func TestHub_RemoveRootAndRoots(t *testing.T) {
	h, probe := startHub(t, nil)

	r, _ := echoRoot()
	ctrl, err := h.Install("foo", r)
	require.NoError(t, err)

	resp := probe.Call(t, managerControl(t, h, protocol.ControlRoots))
	require.True(t, resp.IsReply())
	assert.Contains(t, resp.Args(), "foo")
	assert.Contains(t, resp.Args(), h.CoreID())

	resp = probe.Call(t, managerControl(t, h, protocol.ControlRemoveRoot), "foo")
	require.True(t, resp.IsReply())
	require.NoError(t, ctrl.AwaitTerminationTimeout(time.Second))
	assert.NotContains(t, h.Roots(), "foo")

	resp = probe.Call(t, managerControl(t, h, protocol.ControlRemoveRoot), "foo")
	require.True(t, resp.IsError())
	assert.Equal(t, "RootNotFound", resp.ErrorValue().Type)

	resp = probe.Call(t, managerControl(t, h, protocol.ControlRemoveRoot), h.CoreID())
	require.True(t, resp.IsError())
	assert.Equal(t, protocol.TagInvalidArgument, resp.ErrorValue().Type)
}

func TestHub_ShutdownStopsAllRoots(t *testing.T) {
	h, _ := startHub(t, nil)

	controllers := make([]*root.Controller, 0, 5)
	for i := range 5 {
		r, _ := echoRoot()
		ctrl, err := h.Install(fmt.Sprintf("r%d", i), r)
		require.NoError(t, err)
		controllers = append(controllers, ctrl)
	}

	h.Shutdown()
	require.NoError(t, h.AwaitTimeout(2*time.Second))

	for _, ctrl := range controllers {
		assert.False(t, ctrl.IsAlive(), "root %s still alive", ctrl.ID())
	}
	assert.Empty(t, h.Roots())
	assert.Equal(t, int64(0), h.Metrics().InstalledRoots)

	r, _ := echoRoot()
	_, err := h.Install("late", r)
	assert.ErrorIs(t, err, hub.ErrNotStarted)
}

func TestHub_ExitCode(t *testing.T) {
	h, probe := startHub(t, nil)

	exit := protocol.MustControl(mustLocate(t, h, protocol.SystemManagerService), protocol.ControlExit)
	probe.Notify(exit, "3")

	require.NoError(t, h.AwaitTimeout(2*time.Second))
	assert.Equal(t, 3, h.ExitCode())
}

func TestHub_ExitCodeOutOfRange(t *testing.T) {
	h, probe := startHub(t, nil)

	exit := protocol.MustControl(mustLocate(t, h, protocol.SystemManagerService), protocol.ControlExit)
	resp := probe.Call(t, exit, "4294967297")
	require.True(t, resp.IsError())
	assert.Equal(t, protocol.TagInvalidArgument, resp.ErrorValue().Type)

	assert.ErrorIs(t, h.AwaitTimeout(50*time.Millisecond), hub.ErrShutdownTimeout)
	assert.Equal(t, 0, h.ExitCode())
}

func TestHub_ContextCancelShutsDown(t *testing.T) {
	h, err := hub.NewBuilder().WithLogger(testLogger()).Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.Start(ctx))
	cancel()

	assert.NoError(t, h.AwaitTimeout(2*time.Second))
}

func TestHub_AwaitTimeout(t *testing.T) {
	h, _ := startHub(t, nil)
	assert.ErrorIs(t, h.AwaitTimeout(10*time.Millisecond), hub.ErrShutdownTimeout)
}

func TestHub_ShutdownBeforeStart(t *testing.T) {
	h, err := hub.NewBuilder().WithLogger(testLogger()).Build()
	require.NoError(t, err)

	h.Shutdown()
	assert.NoError(t, h.AwaitTimeout(time.Second))
	assert.ErrorIs(t, h.Start(context.Background()), hub.ErrAlreadyStarted)
}

func TestHub_ExtensionFailure(t *testing.T) {
	r, _ := echoRoot()
	b := hub.NewBuilder().AddExtension("bad name", r)
	h, err := b.WithLogger(testLogger()).Build()
	require.NoError(t, err)

	err = h.Start(context.Background())
	assert.ErrorIs(t, err, protocol.ErrInvalidID)
	assert.ErrorIs(t, h.AwaitTimeout(2*time.Second), protocol.ErrInvalidID)
}

func mustLocate(t *testing.T, h *hub.Hub, service protocol.ServiceType) protocol.ComponentAddress {
	t.Helper()
	addr, ok := h.Locate(service)
	require.True(t, ok, "service %s not registered", service)
	return addr
}

func TestHub_LocateServices(t *testing.T) {
	serviceRoot := func() root.Root {
		return root.New(root.NewControls(), root.WithServices(protocol.ScriptService))
	}

	b := hub.NewBuilder().
		WithRootFactory(testRegistry(t)).
		AddExtension("alpha", serviceRoot()).
		AddExtension("beta", serviceRoot())
	h, _ := startHub(t, b)

	all := h.LocateAll(protocol.ScriptService)
	require.Len(t, all, 2)
	assert.Equal(t, "/_alpha_1", all[0].String())
	assert.Equal(t, "/_beta_2", all[1].String())

	last, ok := h.Locate(protocol.ScriptService)
	require.True(t, ok)
	assert.Equal(t, all[1], last)

	require.NoError(t, h.Uninstall("_beta_2"))
	last, ok = h.Locate(protocol.ScriptService)
	require.True(t, ok)
	assert.Equal(t, all[0], last)

	_, ok = h.Locate(protocol.ResourceService)
	assert.False(t, ok)
}

// seeker records what it can locate while it activates.
type seeker struct {
	service protocol.ServiceType
	found   chan string
}

func (s *seeker) Activate(ctx *root.Context) error {
	addr, ok := ctx.Locate(s.service)
	if !ok {
		s.found <- ""
		return nil
	}
	s.found <- addr.String()
	return nil
}

func (s *seeker) Handle(ctx *root.Context, call *protocol.Call) error { return nil }
func (s *seeker) Terminate(ctx *root.Context)                         {}

func TestHub_ExtensionsSeeEachOtherOnActivate(t *testing.T) {
	early := &seeker{service: protocol.ResourceService, found: make(chan string, 1)}
	b := hub.NewBuilder().
		WithRootFactory(testRegistry(t)).
		AddExtension("seeker", root.New(early)).
		AddExtension("store", root.New(root.NewControls(), root.WithServices(protocol.ResourceService)))
	startHub(t, b)

	select {
	case addr := <-early.found:
		assert.Equal(t, "/_store_2", addr)
	case <-time.After(2 * time.Second):
		t.Fatal("seeker never activated")
	}
}

func TestHub_ReusedIDDoesNotInheritServices(t *testing.T) {
	b := hub.NewBuilder().
		WithRootFactory(testRegistry(t)).
		AddExtension("store", root.New(root.NewControls(), root.WithServices(protocol.ResourceService)))
	h, probe := startHub(t, b)

	assert.Equal(t, "/_store_1", mustLocate(t, h, protocol.ResourceService).String())
	original, ok := h.Controller("_store_1")
	require.True(t, ok)

	resp := probe.Call(t, managerControl(t, h, protocol.ControlRemoveRoot), "_store_1")
	require.True(t, resp.IsReply())
	require.NoError(t, original.AwaitTerminationTimeout(time.Second))

	resp = probe.Call(t, managerControl(t, h, protocol.ControlAddRoot), "_store_1", "echo")
	require.True(t, resp.IsReply())
	assert.Contains(t, h.Roots(), "_store_1")

	_, ok = h.Locate(protocol.ResourceService)
	assert.False(t, ok)
	assert.Empty(t, h.LocateAll(protocol.ResourceService))
}

func TestHub_FactoryTypes(t *testing.T) {
	h, probe := startHub(t, nil)

	types := protocol.MustControl(mustLocate(t, h, protocol.RootFactoryService), protocol.ControlTypes)
	resp := probe.Call(t, types)
	require.True(t, resp.IsReply())
	assert.Equal(t, []any{"echo"}, resp.Args())
}

func TestHub_Events(t *testing.T) {
	recorder := observability.NewRecorder()
	b := hub.NewBuilder().WithObserver(recorder)
	h, _ := startHub(t, b)

	h.Shutdown()
	require.NoError(t, h.AwaitTimeout(2*time.Second))

	assert.Equal(t, 1, recorder.Count(hub.EventStart))
	assert.Equal(t, 1, recorder.Count(hub.EventShutdown))
	assert.Equal(t, 2, recorder.Count(hub.EventRootInstalled))
}

func TestHub_EventLevel(t *testing.T) {
	recorder := observability.NewRecorder()
	b := hub.NewBuilder().
		WithConfig(config.HubConfig{EventLevel: "warn"}).
		WithObserver(recorder).
		WithRootFactory(testRegistry(t))
	h, probe := startHub(t, b)

	probe.Notify(control(t, "/ghost.echo"))
	require.Eventually(t, func() bool {
		return recorder.Count(hub.EventCallDropped) == 1
	}, 2*time.Second, 10*time.Millisecond)

	h.Shutdown()
	require.NoError(t, h.AwaitTimeout(2*time.Second))

	assert.Zero(t, recorder.Count(hub.EventRootInstalled))
	for _, e := range recorder.Events() {
		assert.GreaterOrEqual(t, e.Level, observability.LevelWarning, "event %s", e.Type)
	}
}

func TestHub_Collector(t *testing.T) {
	h, probe := startHub(t, nil)
	probe.Call(t, control(t, "/ghost.echo"))

	assert.Equal(t, 5, testutil.CollectAndCount(h.Collector()))
}
