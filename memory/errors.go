package memory

import (
	"errors"

	"github.com/tailored-agentic-units/roots/core/protocol"
)

// Sentinel errors for store operations.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrInvalidKey  = errors.New("invalid key")
	ErrLoadFailed  = errors.New("load failed")
	ErrSaveFailed  = errors.New("save failed")
)

func init() {
	protocol.RegisterErrorTag(ErrKeyNotFound, "ResourceNotFound")
	protocol.RegisterErrorTag(ErrInvalidKey, protocol.TagInvalidArgument)
}
