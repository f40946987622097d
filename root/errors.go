package root

import (
	"errors"

	"github.com/tailored-agentic-units/roots/core/protocol"
)

// Sentinel errors for root lifecycle and control handling.
var (
	ErrAlreadyInitialized = errors.New("root already initialized")
	ErrNotInitialized     = errors.New("root not initialized")
	ErrAlreadyStarted     = errors.New("root already started")
	ErrTerminated         = errors.New("root terminated")
	ErrNoSuchComponent    = errors.New("no such component")
	ErrInvalidResponse    = errors.New("invalid response")
	ErrQuietOutbound      = errors.New("outbound call must require a reply")
)

func init() {
	protocol.RegisterErrorTag(ErrTerminated, "RootTerminated")
	protocol.RegisterErrorTag(ErrNoSuchComponent, "NoSuchComponent")
	protocol.RegisterErrorTag(ErrInvalidResponse, "InvalidResponse")
}
