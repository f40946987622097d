package protocol

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// ErrNotRequest is returned when deriving a reply or error from a Call that
// is not a request.
var ErrNotRequest = errors.New("call is not a request")

// Kind classifies a Call.
type Kind int

const (
	KindRequest Kind = iota + 1
	KindQuietRequest
	KindReply
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindQuietRequest:
		return "quiet-request"
	case KindReply:
		return "reply"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Call is an immutable, correlated message between roots. Derived calls
// (replies and errors) are always new values carrying the same match ID.
type Call struct {
	to      ControlAddress
	from    ControlAddress
	time    int64
	matchID string
	kind    Kind
	args    []any
}

// NewRequest creates a request that requires a reply.
func NewRequest(to, from ControlAddress, time int64, args ...any) *Call {
	return newCall(to, from, time, generateMatchID(), KindRequest, args)
}

// NewQuietRequest creates a request whose sender does not expect a reply.
func NewQuietRequest(to, from ControlAddress, time int64, args ...any) *Call {
	return newCall(to, from, time, generateMatchID(), KindQuietRequest, args)
}

func newCall(to, from ControlAddress, time int64, matchID string, kind Kind, args []any) *Call {
	return &Call{
		to:      to,
		from:    from,
		time:    time,
		matchID: matchID,
		kind:    kind,
		args:    slices.Clone(args),
	}
}

// Reply derives the reply to this request. The reply keeps the match ID and
// swaps the addresses.
func (c *Call) Reply(args ...any) (*Call, error) {
	if !c.IsRequest() {
		return nil, fmt.Errorf("%w: %s", ErrNotRequest, c.kind)
	}
	return newCall(c.from, c.to, c.time, c.matchID, KindReply, args), nil
}

// ReplyAt is Reply with an updated timestamp.
func (c *Call) ReplyAt(time int64, args ...any) (*Call, error) {
	reply, err := c.Reply(args...)
	if err != nil {
		return nil, err
	}
	reply.time = time
	return reply, nil
}

// Error derives an error response to this request. The error is wrapped
// into an ErrorValue unless it already is one.
func (c *Call) Error(err error) (*Call, error) {
	if !c.IsRequest() {
		return nil, fmt.Errorf("%w: %s", ErrNotRequest, c.kind)
	}
	return newCall(c.from, c.to, c.time, c.matchID, KindError, []any{WrapError(err)}), nil
}

// ErrorAt is Error with an updated timestamp.
func (c *Call) ErrorAt(time int64, err error) (*Call, error) {
	call, e := c.Error(err)
	if e != nil {
		return nil, e
	}
	call.time = time
	return call, nil
}

// ErrorArgs derives an error response carrying args unchanged. It is used
// to forward an error received from another call one hop further.
func (c *Call) ErrorArgs(args ...any) (*Call, error) {
	if !c.IsRequest() {
		return nil, fmt.Errorf("%w: %s", ErrNotRequest, c.kind)
	}
	return newCall(c.from, c.to, c.time, c.matchID, KindError, args), nil
}

// ErrorArgsAt is ErrorArgs with an updated timestamp.
func (c *Call) ErrorArgsAt(time int64, args ...any) (*Call, error) {
	call, err := c.ErrorArgs(args...)
	if err != nil {
		return nil, err
	}
	call.time = time
	return call, nil
}

func (c *Call) To() ControlAddress   { return c.to }
func (c *Call) From() ControlAddress { return c.from }
func (c *Call) Time() int64          { return c.time }
func (c *Call) MatchID() string      { return c.matchID }
func (c *Call) Kind() Kind           { return c.kind }

// Args returns a copy of the call arguments.
func (c *Call) Args() []any {
	return slices.Clone(c.args)
}

// Len returns the number of arguments.
func (c *Call) Len() int {
	return len(c.args)
}

// Arg returns the argument at index i, or nil when out of range.
func (c *Call) Arg(i int) any {
	if i < 0 || i >= len(c.args) {
		return nil
	}
	return c.args[i]
}

// IsRequest reports whether the call is a request of either flavor.
func (c *Call) IsRequest() bool {
	return c.kind == KindRequest || c.kind == KindQuietRequest
}

// IsReplyRequired reports whether the sender expects a reply or error.
func (c *Call) IsReplyRequired() bool {
	return c.kind == KindRequest
}

func (c *Call) IsReply() bool { return c.kind == KindReply }
func (c *Call) IsError() bool { return c.kind == KindError }

// ErrorValue extracts the wrapped error carried by an error call. Calls with
// a non-ErrorValue payload are wrapped on the fly.
func (c *Call) ErrorValue() *ErrorValue {
	if !c.IsError() {
		return nil
	}
	if len(c.args) > 0 {
		if ev, ok := c.args[0].(*ErrorValue); ok {
			return ev
		}
		return &ErrorValue{Type: TagError, Message: fmt.Sprint(c.args...)}
	}
	return &ErrorValue{Type: TagError}
}

func (c *Call) String() string {
	return fmt.Sprintf(
		"Call{Kind: %s, To: %s, From: %s, MatchID: %s, Args: %d}",
		c.kind,
		c.to,
		c.from,
		c.matchID,
		len(c.args),
	)
}

func generateMatchID() string {
	return uuid.Must(uuid.NewV7()).String()
}
