package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// ServiceType names a capability that one or more roots provide.
type ServiceType string

// Well-known services.
const (
	RootManagerService   ServiceType = "root-manager"
	SystemManagerService ServiceType = "system-manager"
	RootFactoryService   ServiceType = "root-factory"
	ScriptService        ServiceType = "script"
	ResourceService      ServiceType = "resource"
)

// Control IDs of the well-known services.
const (
	ControlAddRoot    = "add-root"
	ControlRemoveRoot = "remove-root"
	ControlRoots      = "roots"
	ControlExit       = "exit"
	ControlCreate     = "create"
	ControlTypes      = "types"
	ControlEval       = "eval"
	ControlLoad       = "load"
	ControlSave       = "save"
	ControlList       = "list"
	ControlDelete     = "delete"
)

// ArgString returns argument i as text.
func ArgString(args []any, i int) (string, error) {
	if i < 0 || i >= len(args) {
		return "", fmt.Errorf("%w: missing argument %d", ErrInvalidArgument, i)
	}
	switch v := args[i].(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(v), nil
	}
}

// ArgInt returns argument i as an int, accepting numeric strings.
func ArgInt(args []any, i int) (int, error) {
	if i < 0 || i >= len(args) {
		return 0, fmt.Errorf("%w: missing argument %d", ErrInvalidArgument, i)
	}
	switch v := args[i].(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidArgument, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %T is not an integer", ErrInvalidArgument, v)
	}
}

// JoinArgs renders args as space separated text.
func JoinArgs(args []any) string {
	parts := make([]string, len(args))
	for i := range args {
		parts[i], _ = ArgString(args, i)
	}
	return strings.Join(parts, " ")
}
