package root

import "github.com/tailored-agentic-units/roots/observability"

// Root event types.
const (
	EventStart          observability.EventType = "root.start"
	EventActivateFailed observability.EventType = "root.activate.failed"
	EventCallFailed     observability.EventType = "root.call.failed"
	EventCallDropped    observability.EventType = "root.call.dropped"
	EventTerminate      observability.EventType = "root.terminate"
)
