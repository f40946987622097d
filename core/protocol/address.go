package protocol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors for address parsing.
var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidID      = errors.New("invalid id")
)

var idPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// IsValidID reports whether id can be used as a component or control ID.
func IsValidID(id string) bool {
	return idPattern.MatchString(id)
}

// ComponentAddress is an immutable hierarchical path of component IDs.
// The first ID names the root. The zero value is not a valid address.
//
// Addresses are comparable with ==.
type ComponentAddress struct {
	path string
}

// NewComponentAddress builds an address from its component IDs.
func NewComponentAddress(ids ...string) (ComponentAddress, error) {
	if len(ids) == 0 {
		return ComponentAddress{}, fmt.Errorf("%w: empty path", ErrInvalidAddress)
	}
	for _, id := range ids {
		if !IsValidID(id) {
			return ComponentAddress{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
	}
	return ComponentAddress{path: "/" + strings.Join(ids, "/")}, nil
}

// RootAddress returns the address of the root with the given ID.
// It panics if id is invalid; use NewComponentAddress for untrusted input.
func RootAddress(id string) ComponentAddress {
	addr, err := NewComponentAddress(id)
	if err != nil {
		panic(err)
	}
	return addr
}

// ParseComponentAddress parses the text form "/root/child".
func ParseComponentAddress(s string) (ComponentAddress, error) {
	if !strings.HasPrefix(s, "/") || len(s) < 2 {
		return ComponentAddress{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return NewComponentAddress(strings.Split(s[1:], "/")...)
}

// IsZero reports whether the address is the zero value.
func (a ComponentAddress) IsZero() bool {
	return a.path == ""
}

// IDs returns the component IDs from the root down.
func (a ComponentAddress) IDs() []string {
	if a.path == "" {
		return nil
	}
	return strings.Split(a.path[1:], "/")
}

// RootID returns the ID of the root this address belongs to.
func (a ComponentAddress) RootID() string {
	if a.path == "" {
		return ""
	}
	rest := a.path[1:]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}

// Depth returns the number of IDs in the path.
func (a ComponentAddress) Depth() int {
	if a.path == "" {
		return 0
	}
	return strings.Count(a.path, "/")
}

// Child returns the address of a child component.
func (a ComponentAddress) Child(id string) (ComponentAddress, error) {
	if !IsValidID(id) {
		return ComponentAddress{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return ComponentAddress{path: a.path + "/" + id}, nil
}

// Control returns the address of a control on this component.
func (a ComponentAddress) Control(id string) (ControlAddress, error) {
	if a.IsZero() {
		return ControlAddress{}, fmt.Errorf("%w: zero component", ErrInvalidAddress)
	}
	if !IsValidID(id) {
		return ControlAddress{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return ControlAddress{component: a, id: id}, nil
}

func (a ComponentAddress) String() string {
	return a.path
}

// ControlAddress names a control endpoint on a component.
type ControlAddress struct {
	component ComponentAddress
	id        string
}

// MustControl is Control for well-known, statically valid addresses.
func MustControl(component ComponentAddress, id string) ControlAddress {
	addr, err := component.Control(id)
	if err != nil {
		panic(err)
	}
	return addr
}

// ParseControlAddress parses the text form "/root/child.control".
func ParseControlAddress(s string) (ControlAddress, error) {
	dot := strings.LastIndexByte(s, '.')
	if dot < 0 {
		return ControlAddress{}, fmt.Errorf("%w: %q has no control id", ErrInvalidAddress, s)
	}
	component, err := ParseComponentAddress(s[:dot])
	if err != nil {
		return ControlAddress{}, err
	}
	return component.Control(s[dot+1:])
}

// IsZero reports whether the address is the zero value.
func (a ControlAddress) IsZero() bool {
	return a.component.IsZero()
}

// Component returns the component part of the address.
func (a ControlAddress) Component() ComponentAddress {
	return a.component
}

// ID returns the control ID.
func (a ControlAddress) ID() string {
	return a.id
}

// RootID returns the ID of the root the control belongs to.
func (a ControlAddress) RootID() string {
	return a.component.RootID()
}

func (a ControlAddress) String() string {
	if a.IsZero() {
		return ""
	}
	return a.component.String() + "." + a.id
}
