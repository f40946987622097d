package hub

import (
	"sync"

	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/root"
)

// provider is one registration of a service. It holds the controller
// rather than the address so a registration dies with the root that made
// it.
type provider struct {
	ctrl *root.Controller
}

// serviceRegistry maps service types to their providers in registration
// order. Each entry is an immutable slice replaced by compare-and-swap, so
// registration never takes a lock and readers never see a partial append.
type serviceRegistry struct {
	entries sync.Map // protocol.ServiceType → *[]provider
}

func (r *serviceRegistry) add(service protocol.ServiceType, p provider) {
	fresh := []provider{p}
	for {
		current, loaded := r.entries.LoadOrStore(service, &fresh)
		if !loaded {
			return
		}

		old := current.(*[]provider)
		next := make([]provider, len(*old), len(*old)+1)
		copy(next, *old)
		next = append(next, p)

		if r.entries.CompareAndSwap(service, old, &next) {
			return
		}
	}
}

func (r *serviceRegistry) all(service protocol.ServiceType) []provider {
	current, ok := r.entries.Load(service)
	if !ok {
		return nil
	}
	return *current.(*[]provider)
}
