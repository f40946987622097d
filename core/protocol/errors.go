package protocol

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
)

// Tags shared across packages. Packages register additional tags for their
// sentinel errors with RegisterErrorTag.
const (
	TagError              = "Error"
	TagServiceUnavailable = "ServiceUnavailable"
	TagUnknownControl     = "UnknownControl"
	TagInvalidArgument    = "InvalidArgument"
	TagPanic              = "Panic"
)

// Sentinel errors understood by every root.
var (
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrUnknownControl     = errors.New("unknown control")
	ErrInvalidArgument    = errors.New("invalid argument")
)

const maxTraceFrames = 5

// ErrorValue is the wrapped failure carried as the argument of an error
// Call. Type is a short tag for the failure category.
type ErrorValue struct {
	Type    string
	Message string
	Trace   []string
	err     error
}

func (e *ErrorValue) Error() string {
	if e.Message == "" {
		return e.Type
	}
	return e.Type + ": " + e.Message
}

// Unwrap returns the original error when the value was created in this
// process.
func (e *ErrorValue) Unwrap() error {
	return e.err
}

// NewErrorValue creates an ErrorValue with an explicit tag and no cause.
func NewErrorValue(tag, message string) *ErrorValue {
	return &ErrorValue{
		Type:    tag,
		Message: message,
		Trace:   callerTrace(3),
	}
}

// WrapError converts err into an ErrorValue. Existing ErrorValues in the
// chain are returned as is so that forwarding keeps the original tag.
func WrapError(err error) *ErrorValue {
	if err == nil {
		return &ErrorValue{Type: TagError}
	}
	var ev *ErrorValue
	if errors.As(err, &ev) {
		return ev
	}
	return &ErrorValue{
		Type:    tagFor(err),
		Message: err.Error(),
		Trace:   callerTrace(3),
		err:     err,
	}
}

// PanicError converts a recovered panic value into an error.
func PanicError(recovered any) error {
	if err, ok := recovered.(error); ok {
		return &ErrorValue{
			Type:    TagPanic,
			Message: err.Error(),
			Trace:   callerTrace(4),
			err:     err,
		}
	}
	return &ErrorValue{
		Type:    TagPanic,
		Message: fmt.Sprint(recovered),
		Trace:   callerTrace(4),
	}
}

type tagEntry struct {
	err error
	tag string
}

var (
	errorTags = []tagEntry{
		{ErrServiceUnavailable, TagServiceUnavailable},
		{ErrUnknownControl, TagUnknownControl},
		{ErrInvalidArgument, TagInvalidArgument},
		{ErrInvalidAddress, TagInvalidArgument},
		{ErrInvalidID, TagInvalidArgument},
	}
	tagsMutex sync.RWMutex
)

// RegisterErrorTag associates a sentinel error with the tag used when it
// crosses a Call boundary.
func RegisterErrorTag(sentinel error, tag string) {
	tagsMutex.Lock()
	defer tagsMutex.Unlock()

	errorTags = append(errorTags, tagEntry{err: sentinel, tag: tag})
}

func tagFor(err error) string {
	tagsMutex.RLock()
	defer tagsMutex.RUnlock()

	for i := len(errorTags) - 1; i >= 0; i-- {
		if errors.Is(err, errorTags[i].err) {
			return errorTags[i].tag
		}
	}
	return TagError
}

func callerTrace(skip int) []string {
	pcs := make([]uintptr, maxTraceFrames)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	trace := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		trace = append(trace, fmt.Sprintf("%s (%s:%d)", frame.Function, filepath.Base(frame.File), frame.Line))
		if !more {
			break
		}
	}
	return trace
}
