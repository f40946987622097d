package factory

import (
	"errors"

	"github.com/tailored-agentic-units/roots/core/protocol"
)

// Sentinel errors for the factory registry.
var (
	ErrNotFound      = errors.New("root type not found")
	ErrAlreadyExists = errors.New("root type already registered")
	ErrEmptyName     = errors.New("root type name is empty")
)

func init() {
	protocol.RegisterErrorTag(ErrNotFound, "UnknownRootType")
}
