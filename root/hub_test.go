package root_test

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/observability"
	"github.com/tailored-agentic-units/roots/root"
)

// testHub routes calls to installed controllers and collects everything
// addressed elsewhere in outbox.
type testHub struct {
	mu       sync.Mutex
	roots    map[string]*root.Controller
	services map[protocol.ServiceType][]protocol.ComponentAddress
	outbox   chan *protocol.Call
	recorder *observability.Recorder
	start    time.Time
}

func newTestHub() *testHub {
	return &testHub{
		roots:    make(map[string]*root.Controller),
		services: make(map[protocol.ServiceType][]protocol.ComponentAddress),
		outbox:   make(chan *protocol.Call, 64),
		recorder: observability.NewRecorder(),
		start:    time.Now(),
	}
}

func (h *testHub) install(t *testing.T, id string, r root.Root) *root.Controller {
	t.Helper()

	ctrl, err := r.Initialize(id, h)
	require.NoError(t, err)

	h.mu.Lock()
	h.roots[id] = ctrl
	if sp, ok := r.(root.ServiceProvider); ok {
		for _, s := range sp.Services() {
			h.services[s] = append(h.services[s], ctrl.Address())
		}
	}
	h.mu.Unlock()

	require.NoError(t, ctrl.Start())
	t.Cleanup(func() {
		ctrl.Shutdown()
		_ = ctrl.AwaitTerminationTimeout(time.Second)
	})
	return ctrl
}

func (h *testHub) Dispatch(call *protocol.Call) bool {
	h.mu.Lock()
	ctrl, ok := h.roots[call.To().RootID()]
	h.mu.Unlock()

	if ok && ctrl.Submit(call) {
		return true
	}
	h.outbox <- call
	return true
}

func (h *testHub) Time() int64 {
	return int64(time.Since(h.start))
}

func (h *testHub) Locate(service protocol.ServiceType) (protocol.ComponentAddress, bool) {
	all := h.LocateAll(service)
	if len(all) == 0 {
		return protocol.ComponentAddress{}, false
	}
	return all[len(all)-1], true
}

func (h *testHub) LocateAll(service protocol.ServiceType) []protocol.ComponentAddress {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]protocol.ComponentAddress(nil), h.services[service]...)
}

func (h *testHub) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (h *testHub) Observer() observability.Observer {
	return h.recorder
}

// receive waits for the next call delivered to an address outside the hub.
func (h *testHub) receive(t *testing.T) *protocol.Call {
	t.Helper()
	select {
	case call := <-h.outbox:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for call")
		return nil
	}
}

// expectNone asserts that nothing else arrives for a short while.
func (h *testHub) expectNone(t *testing.T) {
	t.Helper()
	select {
	case call := <-h.outbox:
		t.Fatalf("unexpected call: %s", call)
	case <-time.After(50 * time.Millisecond):
	}
}

var probe = protocol.MustControl(protocol.RootAddress("probe"), "in")

func request(to string, args ...any) *protocol.Call {
	addr, err := protocol.ParseControlAddress(to)
	if err != nil {
		panic(err)
	}
	return protocol.NewRequest(addr, probe, 0, args...)
}
