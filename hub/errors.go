package hub

import (
	"errors"

	"github.com/tailored-agentic-units/roots/core/protocol"
)

// Sentinel errors for hub operations.
var (
	ErrRootExists      = errors.New("root already installed")
	ErrRootNotFound    = errors.New("root not found")
	ErrAlreadyStarted  = errors.New("hub already started")
	ErrNotStarted      = errors.New("hub not started")
	ErrShutdownTimeout = errors.New("hub shutdown timed out")
)

func init() {
	protocol.RegisterErrorTag(ErrRootExists, "RootExists")
	protocol.RegisterErrorTag(ErrRootNotFound, "RootNotFound")
}
