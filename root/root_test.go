package root_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/root"
)

func echoRoot() *root.Runtime {
	controls := root.NewControls().
		AddFunc("echo", func(ctx *root.Context, call *protocol.Call) ([]any, error) {
			return call.Args(), nil
		}).
		AddFunc("boom", func(ctx *root.Context, call *protocol.Call) ([]any, error) {
			panic("kaboom")
		}).
		AddFunc("fail", func(ctx *root.Context, call *protocol.Call) ([]any, error) {
			return nil, protocol.ErrInvalidArgument
		})
	return root.New(controls)
}

func TestRuntime_Initialize(t *testing.T) {
	hub := newTestHub()

	t.Run("invalid id", func(t *testing.T) {
		_, err := echoRoot().Initialize("9lives", hub)
		assert.ErrorIs(t, err, protocol.ErrInvalidID)
	})

	t.Run("twice", func(t *testing.T) {
		r := echoRoot()
		_, err := r.Initialize("foo", hub)
		require.NoError(t, err)

		_, err = r.Initialize("bar", hub)
		assert.ErrorIs(t, err, root.ErrAlreadyInitialized)
	})

	t.Run("start twice", func(t *testing.T) {
		r := echoRoot()
		ctrl, err := r.Initialize("foo", hub)
		require.NoError(t, err)
		require.NoError(t, ctrl.Start())
		assert.ErrorIs(t, ctrl.Start(), root.ErrAlreadyStarted)

		ctrl.Shutdown()
		require.NoError(t, ctrl.AwaitTerminationTimeout(time.Second))
		assert.ErrorIs(t, ctrl.Start(), root.ErrAlreadyStarted)
	})
}

func TestRuntime_Lifecycle(t *testing.T) {
	hub := newTestHub()
	r := echoRoot()

	ctrl, err := r.Initialize("foo", hub)
	require.NoError(t, err)
	assert.Equal(t, root.StateNew, ctrl.State())
	assert.False(t, ctrl.IsAlive())

	require.NoError(t, ctrl.Start())
	assert.True(t, ctrl.IsAlive())

	ctrl.Shutdown()
	ctrl.Shutdown()
	require.NoError(t, ctrl.AwaitTerminationTimeout(time.Second))

	assert.Equal(t, root.StateTerminated, ctrl.State())
	assert.False(t, ctrl.IsAlive())
	assert.False(t, ctrl.Submit(request("/foo.echo")))
	assert.Equal(t, 1, hub.recorder.Count(root.EventStart))
	assert.Equal(t, 1, hub.recorder.Count(root.EventTerminate))
}

func TestControls_Reply(t *testing.T) {
	hub := newTestHub()
	hub.install(t, "foo", echoRoot())

	req := request("/foo.echo", "a", 1)
	require.True(t, hub.Dispatch(req))

	reply := hub.receive(t)
	assert.True(t, reply.IsReply())
	assert.Equal(t, req.MatchID(), reply.MatchID())
	assert.Equal(t, req.From(), reply.To())
	assert.Equal(t, req.To(), reply.From())
	assert.Equal(t, []any{"a", 1}, reply.Args())
}

func TestControls_Errors(t *testing.T) {
	tests := []struct {
		name string
		to   string
		tag  string
	}{
		{"unknown control", "/foo.nope", protocol.TagUnknownControl},
		{"unknown component", "/foo/child.echo", "NoSuchComponent"},
		{"panic", "/foo.boom", protocol.TagPanic},
		{"returned error", "/foo.fail", protocol.TagInvalidArgument},
	}

	hub := newTestHub()
	hub.install(t, "foo", echoRoot())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request(tt.to)
			hub.Dispatch(req)

			errCall := hub.receive(t)
			require.True(t, errCall.IsError())
			assert.Equal(t, req.MatchID(), errCall.MatchID())
			assert.Equal(t, probe, errCall.To())
			assert.Equal(t, tt.tag, errCall.ErrorValue().Type)
		})
	}
}

func TestControls_QuietFailureIsNotAnswered(t *testing.T) {
	hub := newTestHub()
	hub.install(t, "foo", echoRoot())

	addr, err := protocol.ParseControlAddress("/foo.nope")
	require.NoError(t, err)
	hub.Dispatch(protocol.NewQuietRequest(addr, probe, 0))

	// FIFO: the reply to the second call is the first thing out.
	req := request("/foo.echo", "after")
	hub.Dispatch(req)

	reply := hub.receive(t)
	assert.Equal(t, req.MatchID(), reply.MatchID())
	hub.expectNone(t)
}

func TestControls_StrayResponseDropped(t *testing.T) {
	hub := newTestHub()
	ctrl := hub.install(t, "foo", echoRoot())

	out := protocol.NewRequest(probe, protocol.MustControl(ctrl.Address(), "nope"), 0)
	reply, err := out.Reply("late")
	require.NoError(t, err)
	hub.Dispatch(reply)

	hub.expectNone(t)
	assert.True(t, ctrl.IsAlive())
}

func TestRuntime_ShutdownRejectsQueued(t *testing.T) {
	hub := newTestHub()
	ctrl, err := echoRoot().Initialize("foo", hub)
	require.NoError(t, err)

	req := request("/foo.echo")
	require.True(t, ctrl.Submit(req))

	ctrl.Shutdown()
	require.NoError(t, ctrl.AwaitTerminationTimeout(time.Second))

	errCall := hub.receive(t)
	require.True(t, errCall.IsError())
	assert.Equal(t, req.MatchID(), errCall.MatchID())
	assert.True(t, errors.Is(errCall.ErrorValue(), root.ErrTerminated))
}

func TestRuntime_ActivateFailure(t *testing.T) {
	hub := newTestHub()
	controls := root.NewControls().OnActivate(func(ctx *root.Context) error {
		return errors.New("no")
	})
	terminated := make(chan struct{})
	controls.OnTerminate(func(ctx *root.Context) { close(terminated) })

	ctrl, err := root.New(controls).Initialize("foo", hub)
	require.NoError(t, err)
	require.NoError(t, ctrl.Start())

	require.NoError(t, ctrl.AwaitTerminationTimeout(time.Second))
	<-terminated
	assert.Equal(t, 1, hub.recorder.Count(root.EventActivateFailed))
}

func TestController_Stats(t *testing.T) {
	hub := newTestHub()
	ctrl := hub.install(t, "foo", echoRoot())

	hub.Dispatch(request("/foo.echo"))
	hub.Dispatch(request("/foo.fail"))
	hub.receive(t)
	hub.receive(t)

	ctrl.Shutdown()
	require.NoError(t, ctrl.AwaitTerminationTimeout(time.Second))

	stats := ctrl.Stats()
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, 0, stats.Queued)
}

func TestRuntime_Services(t *testing.T) {
	r := root.New(root.NewControls(), root.WithServices(protocol.ScriptService))
	assert.Equal(t, []protocol.ServiceType{protocol.ScriptService}, r.Services())
}
