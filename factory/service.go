package factory

import (
	"log/slog"

	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/root"
)

// NewRoot creates the root providing the root-factory service over reg.
func NewRoot(reg *Registry) *root.Runtime {
	controls := root.NewControls().
		AddFunc(protocol.ControlCreate, func(ctx *root.Context, call *protocol.Call) ([]any, error) {
			name, err := protocol.ArgString(call.Args(), 0)
			if err != nil {
				return nil, err
			}

			rt, err := reg.Create(name)
			if err != nil {
				return nil, err
			}

			ctx.Logger().Debug("root created", slog.String("type", name))
			return []any{rt}, nil
		}).
		AddFunc(protocol.ControlTypes, func(ctx *root.Context, call *protocol.Call) ([]any, error) {
			types := reg.Types()
			args := make([]any, len(types))
			for i, name := range types {
				args[i] = name
			}
			return args, nil
		})

	return root.New(controls, root.WithServices(protocol.RootFactoryService))
}
