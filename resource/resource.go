// Package resource provides the root behind the resource service: named
// text resources, such as scripts for include, kept in a memory.Store.
//
// Controls:
//
//	load(key)        → text
//	save(key, text)  → key
//	list([prefix])   → keys...
//	delete(key)      → bool (whether the key existed)
//
// Writes go through to the store before the reply is sent.
package resource

import (
	"context"
	"log/slog"

	"github.com/tailored-agentic-units/roots/config"
	"github.com/tailored-agentic-units/roots/core/protocol"
	"github.com/tailored-agentic-units/roots/memory"
	"github.com/tailored-agentic-units/roots/root"
)

type service struct {
	cache *memory.Cache
}

// New creates a resource root over store.
func New(store memory.Store) *root.Runtime {
	s := &service{cache: memory.NewCache(store)}

	controls := root.NewControls().
		AddFunc(protocol.ControlLoad, s.load).
		AddFunc(protocol.ControlSave, s.save).
		AddFunc(protocol.ControlList, s.list).
		AddFunc(protocol.ControlDelete, s.remove).
		OnActivate(s.activate).
		OnTerminate(s.terminate)

	return root.New(controls, root.WithServices(protocol.ResourceService))
}

// NewFromConfig creates a resource root over the store cfg describes.
func NewFromConfig(cfg config.ResourceConfig) *root.Runtime {
	return New(memory.NewStore(cfg))
}

func (s *service) activate(ctx *root.Context) error {
	if err := s.cache.Bootstrap(context.Background()); err != nil {
		return err
	}
	ctx.Logger().Debug("resources indexed", slog.Int("keys", len(s.cache.Keys(""))))
	return nil
}

func (s *service) terminate(ctx *root.Context) {
	if err := s.cache.Flush(context.Background()); err != nil {
		ctx.Logger().Error("resource flush failed", slog.String("error", err.Error()))
	}
}

func (s *service) load(ctx *root.Context, call *protocol.Call) ([]any, error) {
	key, err := protocol.ArgString(call.Args(), 0)
	if err != nil {
		return nil, err
	}

	value, err := s.cache.Fetch(context.Background(), key)
	if err != nil {
		return nil, err
	}
	return []any{string(value)}, nil
}

func (s *service) save(ctx *root.Context, call *protocol.Call) ([]any, error) {
	args := call.Args()
	key, err := protocol.ArgString(args, 0)
	if err != nil {
		return nil, err
	}
	text, err := protocol.ArgString(args, 1)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(key, []byte(text)); err != nil {
		return nil, err
	}
	if err := s.cache.Flush(context.Background()); err != nil {
		return nil, err
	}
	return []any{key}, nil
}

func (s *service) list(ctx *root.Context, call *protocol.Call) ([]any, error) {
	prefix := ""
	if call.Len() > 0 {
		prefix, _ = protocol.ArgString(call.Args(), 0)
	}

	keys := s.cache.Keys(prefix)
	args := make([]any, len(keys))
	for i, key := range keys {
		args[i] = key
	}
	return args, nil
}

func (s *service) remove(ctx *root.Context, call *protocol.Call) ([]any, error) {
	key, err := protocol.ArgString(call.Args(), 0)
	if err != nil {
		return nil, err
	}

	existed := s.cache.Delete(key)
	if err := s.cache.Flush(context.Background()); err != nil {
		return nil, err
	}
	return []any{existed}, nil
}
