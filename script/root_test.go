package script_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/factory"
	"github.com/tailored-agentic-units/roots/hub"
	"github.com/tailored-agentic-units/roots/memory"
	"github.com/tailored-agentic-units/roots/resource"
	"github.com/tailored-agentic-units/roots/root"
	"github.com/tailored-agentic-units/roots/root/roottest"
	"github.com/tailored-agentic-units/roots/script"
)

func counterRoot() (root.Root, error) {
	n := 0
	return root.New(root.NewControls().
		AddFunc("next", func(ctx *root.Context, call *protocol.Call) ([]any, error) {
			n++
			return []any{n}, nil
		})), nil
}

func startScriptHub(t *testing.T, store memory.Store) (*hub.Hub, *roottest.Probe, protocol.ControlAddress) {
	t.Helper()

	reg := factory.NewRegistry()
	require.NoError(t, reg.Register("counter", counterRoot))

	h, err := hub.NewBuilder().
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithRootFactory(reg).
		AddExtension("resource", resource.New(store)).
		AddExtension("script", script.New(nil)).
		Build()
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() {
		h.Shutdown()
		_ = h.AwaitTimeout(2 * time.Second)
	})

	probe := roottest.NewProbe()
	_, err = h.Install("probe", probe)
	require.NoError(t, err)

	addr, ok := h.Locate(protocol.ScriptService)
	require.True(t, ok)
	return h, probe, protocol.MustControl(addr, protocol.ControlEval)
}

func TestScriptRoot_Eval(t *testing.T) {
	_, probe, eval := startScriptHub(t, memory.NewMemoryStore())

	resp := probe.Call(t, eval, "set who roots; echo hello $who")
	require.True(t, resp.IsReply(), "got %s", resp.ErrorValue())
	assert.Equal(t, []any{"hello roots"}, resp.Args())
}

func TestScriptRoot_Errors(t *testing.T) {
	_, probe, eval := startScriptHub(t, memory.NewMemoryStore())

	tests := []struct {
		name   string
		source string
		tag    string
	}{
		{"syntax", "echo {", "SyntaxError"},
		{"unknown command", "frobnicate", "UnknownCommand"},
		{"missing root", "/nowhere.get", "RootNotFound"},
		{"unknown control", "/_resource_1.frob", protocol.TagUnknownControl},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := probe.Call(t, eval, tt.source)
			require.True(t, resp.IsError())
			assert.Equal(t, tt.tag, resp.ErrorValue().Type)
		})
	}
}

func TestScriptRoot_AddRootAndCall(t *testing.T) {
	h, probe, eval := startScriptHub(t, memory.NewMemoryStore())

	resp := probe.Call(t, eval, "add-root counter1 counter\n/counter1.next\n/counter1.next")
	require.True(t, resp.IsReply(), "got %s", resp.ErrorValue())
	assert.Equal(t, []any{2}, resp.Args())
	assert.Contains(t, h.Roots(), "counter1")

	resp = probe.Call(t, eval, "remove-root counter1")
	require.True(t, resp.IsReply(), "got %s", resp.ErrorValue())
	assert.NotContains(t, h.Roots(), "counter1")
}

func TestScriptRoot_Include(t *testing.T) {
	store := memory.NewMemoryStore(
		memory.Entry{Key: "lib/greet.roots", Value: []byte("set greeting {hello from lib}")},
	)
	_, probe, eval := startScriptHub(t, store)

	resp := probe.Call(t, eval, "include lib/greet.roots; echo $greeting")
	require.True(t, resp.IsReply(), "got %s", resp.ErrorValue())
	assert.Equal(t, []any{"hello from lib"}, resp.Args())

	resp = probe.Call(t, eval, "try { include lib/missing.roots } catch { echo fallback }")
	require.True(t, resp.IsReply(), "got %s", resp.ErrorValue())
	assert.Equal(t, []any{"fallback"}, resp.Args())
}

func TestScriptRoot_SaveThenInclude(t *testing.T) {
	store := memory.NewMemoryStore()
	_, probe, eval := startScriptHub(t, store)

	resp := probe.Call(t, eval, "save lib/x.roots {echo saved}; include lib/x.roots")
	require.True(t, resp.IsReply(), "got %s", resp.ErrorValue())
	assert.Equal(t, []any{"saved"}, resp.Args())

	entries, err := store.Load(context.Background(), "lib/x.roots")
	require.NoError(t, err)
	assert.Equal(t, "echo saved", string(entries[0].Value))
}

func TestScriptRoot_ConcurrentEvaluations(t *testing.T) {
	_, probe, eval := startScriptHub(t, memory.NewMemoryStore())

	// Each script suspends on a call, so their drivers interleave.
	requests := make(map[string]string)
	for _, word := range []string{"a", "b", "c", "d"} {
		req := probe.Request(eval, "locate resource; /_resource_1.list; echo "+word)
		requests[req.MatchID()] = word
	}

	for range requests {
		resp := probe.Receive(t)
		want, ok := requests[resp.MatchID()]
		require.True(t, ok)
		require.True(t, resp.IsReply(), "got %s", resp.ErrorValue())
		assert.Equal(t, []any{want}, resp.Args())
	}
}

func TestScriptRoot_Exit(t *testing.T) {
	h, probe, eval := startScriptHub(t, memory.NewMemoryStore())

	probe.Notify(eval, "exit 4")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.Await(ctx))
	assert.Equal(t, 4, h.ExitCode())
}

func TestScriptRoot_ShutdownFailsPendingEval(t *testing.T) {
	h, probe, eval := startScriptHub(t, memory.NewMemoryStore())

	slow := roottest.NewProbe()
	_, err := h.Install("slow", slow)
	require.NoError(t, err)

	req := probe.Request(eval, "/slow.in never-answered")
	held := slow.Receive(t)
	assert.Equal(t, []any{"never-answered"}, held.Args())

	require.NoError(t, h.Uninstall("_script_2"))

	resp := probe.Receive(t)
	assert.Equal(t, req.MatchID(), resp.MatchID())
	require.True(t, resp.IsError())
	assert.Equal(t, "Cancelled", resp.ErrorValue().Type)
}
