package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/observability"
	"github.com/tailored-agentic-units/roots/root"
)

const defaultShutdownTimeout = 5 * time.Second

type state int32

const (
	stateNew state = iota
	stateRunning
	stateStopped
)

// Hub routes Calls between installed roots and owns the root and service
// registries. It is started once and cannot be restarted after shutdown.
// All methods are safe for concurrent use.
type Hub struct {
	name            string
	shutdownTimeout time.Duration
	extensions      []extension

	logger    *slog.Logger
	observer  observability.Observer
	metrics   *Metrics
	collector *collector

	state    atomic.Int32
	clock    atomic.Pointer[clock]
	core     atomic.Pointer[root.Controller]
	coreID   atomic.Pointer[string]
	roots    sync.Map // root ID → *root.Controller
	services serviceRegistry
	exitCode atomic.Int32

	// failure is written by the core goroutine before ready is closed.
	failure error
	ready   chan struct{}
	done    chan struct{}
}

var _ root.Hub = (*Hub)(nil)

// Name returns the configured hub name.
func (h *Hub) Name() string {
	return h.name
}

// Start installs and starts the core root and returns once the core root
// has installed the extensions. Cancelling ctx shuts the hub down.
func (h *Hub) Start(ctx context.Context) error {
	if !h.state.CompareAndSwap(int32(stateNew), int32(stateRunning)) {
		return ErrAlreadyStarted
	}
	if h.shutdownTimeout <= 0 {
		h.shutdownTimeout = defaultShutdownTimeout
	}

	h.clock.Store(newClock())

	id := "_hub_" + uuid.New().String()[:8]
	h.coreID.Store(&id)

	ctrl, err := newCore(h).Initialize(id, h)
	if err != nil {
		return fmt.Errorf("hub %s: core: %w", h.name, err)
	}
	h.roots.Store(id, ctrl)
	h.metrics.RecordInstalledRoot(1)
	h.core.Store(ctrl)

	h.registerService(protocol.RootManagerService, ctrl)
	h.registerService(protocol.SystemManagerService, ctrl)

	go func() {
		<-ctrl.Done()
		close(h.done)
	}()
	go func() {
		select {
		case <-ctx.Done():
			h.Shutdown()
		case <-h.done:
		}
	}()

	// A Shutdown racing with Start may have missed the core controller.
	if state(h.state.Load()) == stateStopped {
		ctrl.Shutdown()
	}
	if err := ctrl.Start(); err != nil {
		return fmt.Errorf("hub %s: core: %w", h.name, err)
	}

	select {
	case <-h.ready:
	case <-h.done:
	}
	if h.failure != nil {
		return fmt.Errorf("hub %s: %w", h.name, h.failure)
	}

	h.logger.Info("hub started", slog.String("core", id), slog.Int("extensions", len(h.extensions)))
	h.emit(EventStart, observability.LevelInfo, map[string]any{"core": id})
	return nil
}

// Dispatch routes call to its destination root without blocking. Calls
// for roots that are not installed, or whose mailbox is closed, go to the
// core root instead. It reports whether any mailbox accepted the call.
func (h *Hub) Dispatch(call *protocol.Call) bool {
	if call == nil {
		return false
	}

	if ctrl, ok := h.lookup(call.To().RootID()); ok && ctrl.Submit(call) {
		h.metrics.RecordDispatched()
		return true
	}

	if core := h.core.Load(); core != nil && core.Submit(call) {
		h.metrics.RecordRerouted()
		return true
	}

	h.metrics.RecordRejected()
	return false
}

// Time returns nanoseconds since the hub started.
func (h *Hub) Time() int64 {
	c := h.clock.Load()
	if c == nil {
		return 0
	}
	return c.now()
}

// Install initializes r under id, registers it and starts it.
// A second install under the same id fails with ErrRootExists and leaves
// the first registration untouched.
func (h *Hub) Install(id string, r root.Root) (*root.Controller, error) {
	ctrl, err := h.install(id, r)
	if err != nil {
		return nil, err
	}
	if err := h.start(ctrl); err != nil {
		return nil, err
	}
	return ctrl, nil
}

// install initializes r and adds it to the root registry without starting
// it. Calls dispatched to it queue in its mailbox until start.
func (h *Hub) install(id string, r root.Root) (*root.Controller, error) {
	if state(h.state.Load()) != stateRunning {
		return nil, fmt.Errorf("install %s: %w", id, ErrNotStarted)
	}
	if !protocol.IsValidID(id) {
		return nil, fmt.Errorf("install: %w: %q", protocol.ErrInvalidID, id)
	}
	if _, exists := h.roots.Load(id); exists {
		return nil, fmt.Errorf("%w: %s", ErrRootExists, id)
	}

	ctrl, err := r.Initialize(id, h)
	if err != nil {
		return nil, fmt.Errorf("install %s: %w", id, err)
	}

	if _, loaded := h.roots.LoadOrStore(id, ctrl); loaded {
		ctrl.Shutdown()
		return nil, fmt.Errorf("%w: %s", ErrRootExists, id)
	}

	// Shutdown may have swept the registry before the store above.
	if state(h.state.Load()) == stateStopped {
		h.roots.CompareAndDelete(id, ctrl)
		ctrl.Shutdown()
		return nil, fmt.Errorf("install %s: %w", id, root.ErrTerminated)
	}

	h.metrics.RecordInstalledRoot(1)
	h.logger.Debug("root installed", slog.String("root", id))
	h.emit(EventRootInstalled, observability.LevelInfo, map[string]any{"root": id})
	return ctrl, nil
}

func (h *Hub) start(ctrl *root.Controller) error {
	if err := ctrl.Start(); err != nil {
		if h.roots.CompareAndDelete(ctrl.ID(), ctrl) {
			h.metrics.RecordInstalledRoot(-1)
		}
		return fmt.Errorf("start %s: %w", ctrl.ID(), err)
	}
	return nil
}

// Uninstall removes a root from the registry and signals it to shut down
// without waiting for it.
func (h *Hub) Uninstall(id string) error {
	if id == h.CoreID() {
		return fmt.Errorf("%w: cannot uninstall the core root", protocol.ErrInvalidArgument)
	}

	value, ok := h.roots.LoadAndDelete(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRootNotFound, id)
	}
	value.(*root.Controller).Shutdown()

	h.metrics.RecordInstalledRoot(-1)
	h.logger.Debug("root uninstalled", slog.String("root", id))
	h.emit(EventRootRemoved, observability.LevelInfo, map[string]any{"root": id})
	return nil
}

// Controller returns the controller of an installed root.
func (h *Hub) Controller(id string) (*root.Controller, bool) {
	return h.lookup(id)
}

// Roots returns the installed root IDs in sorted order.
func (h *Hub) Roots() []string {
	var ids []string
	h.roots.Range(func(key, _ any) bool {
		ids = append(ids, key.(string))
		return true
	})
	sort.Strings(ids)
	return ids
}

// CoreID returns the core root's ID, or "" before Start.
func (h *Hub) CoreID() string {
	if id := h.coreID.Load(); id != nil {
		return *id
	}
	return ""
}

// Locate returns the most recently registered provider of service that is
// still installed.
func (h *Hub) Locate(service protocol.ServiceType) (protocol.ComponentAddress, bool) {
	all := h.LocateAll(service)
	if len(all) == 0 {
		return protocol.ComponentAddress{}, false
	}
	return all[len(all)-1], true
}

// LocateAll returns the installed providers of service in registration
// order. A registration only counts while the root that made it is still
// installed, so a later root reusing the same ID does not inherit it.
func (h *Hub) LocateAll(service protocol.ServiceType) []protocol.ComponentAddress {
	registered := h.services.all(service)
	live := make([]protocol.ComponentAddress, 0, len(registered))
	for _, p := range registered {
		if ctrl, ok := h.lookup(p.ctrl.ID()); ok && ctrl == p.ctrl {
			live = append(live, p.ctrl.Address())
		}
	}
	return live
}

func (h *Hub) registerService(service protocol.ServiceType, ctrl *root.Controller) {
	addr := ctrl.Address()
	h.services.add(service, provider{ctrl: ctrl})
	h.logger.Debug("service registered",
		slog.String("service", string(service)),
		slog.String("address", addr.String()),
	)
	h.emit(EventServiceAdded, observability.LevelVerbose, map[string]any{
		"service": string(service),
		"address": addr.String(),
	})
}

// Shutdown signals the core root to stop. The core root shuts down every
// other root before it terminates; use Await to wait for that.
func (h *Hub) Shutdown() {
	if h.state.CompareAndSwap(int32(stateNew), int32(stateStopped)) {
		close(h.done)
		return
	}
	h.state.Store(int32(stateStopped))
	if core := h.core.Load(); core != nil {
		core.Shutdown()
	}
}

// Done is closed once the core root has terminated.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Await blocks until the hub has shut down or ctx is done. It returns the
// core root's activation error, if any.
func (h *Hub) Await(ctx context.Context) error {
	select {
	case <-h.done:
		return h.failure
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitTimeout is Await bounded by timeout. It returns ErrShutdownTimeout
// if the hub is still running when the timeout expires.
func (h *Hub) AwaitTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := h.Await(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %v", ErrShutdownTimeout, timeout)
	}
	return err
}

// ExitCode returns the code passed to system-manager exit.
func (h *Hub) ExitCode() int {
	return int(h.exitCode.Load())
}

// Metrics returns a snapshot of the hub counters.
func (h *Hub) Metrics() MetricsSnapshot {
	return h.metrics.Snapshot()
}

// Collector exposes the hub counters as Prometheus metrics.
func (h *Hub) Collector() prometheus.Collector {
	return h.collector
}

func (h *Hub) Logger() *slog.Logger {
	return h.logger
}

func (h *Hub) Observer() observability.Observer {
	return h.observer
}

func (h *Hub) lookup(id string) (*root.Controller, bool) {
	value, ok := h.roots.Load(id)
	if !ok {
		return nil, false
	}
	return value.(*root.Controller), true
}

// installExtensions installs every extension in order and registers its
// services, then starts them in the same order. Each extension can locate
// the services of all the others once it activates.
func (h *Hub) installExtensions() error {
	installed := make([]*root.Controller, 0, len(h.extensions))
	for i, ext := range h.extensions {
		id := fmt.Sprintf("_%s_%d", ext.name, i)
		ctrl, err := h.install(id, ext.root)
		if err != nil {
			return fmt.Errorf("extension %s: %w", ext.name, err)
		}
		if sp, ok := ext.root.(root.ServiceProvider); ok {
			for _, service := range sp.Services() {
				h.registerService(service, ctrl)
			}
		}
		installed = append(installed, ctrl)
	}

	for i, ctrl := range installed {
		if err := h.start(ctrl); err != nil {
			return fmt.Errorf("extension %s: %w", h.extensions[i].name, err)
		}
	}
	return nil
}

func (h *Hub) emit(eventType observability.EventType, level observability.Level, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["hub"] = h.name
	h.observer.OnEvent(context.Background(), observability.NewEvent(eventType, level, "hub.Hub", data))
}
