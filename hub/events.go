package hub

import "github.com/tailored-agentic-units/roots/observability"

// Hub event types.
const (
	EventStart         observability.EventType = "hub.start"
	EventRootInstalled observability.EventType = "hub.root.installed"
	EventRootRemoved   observability.EventType = "hub.root.removed"
	EventServiceAdded  observability.EventType = "hub.service.added"
	EventCallRerouted  observability.EventType = "hub.call.rerouted"
	EventCallDropped   observability.EventType = "hub.call.dropped"
	EventShutdown      observability.EventType = "hub.shutdown"
)
