// Package hub wires roots together.
//
// A Hub owns the root registry, the service registry and a core root. Every
// Call between roots goes through Dispatch, which looks the destination up
// by root ID and submits to its mailbox without blocking. Calls for roots
// that are not installed are handed to the core root, which answers
// reply-required requests with a RootNotFound error and drops the rest.
//
// The core root offers two services:
//
//	root-manager   add-root(id, type), remove-root(id), roots()
//	system-manager exit([code])
//
// add-root asks the root-factory service for a new root and installs it
// when the factory replies, without blocking the core root in between.
//
// Typical setup:
//
//	h, err := hub.NewBuilder().
//		WithConfig(cfg).
//		WithRootFactory(registry).
//		Build()
//	if err != nil { ... }
//	if err := h.Start(ctx); err != nil { ... }
//	defer h.Shutdown()
//
//	err = h.AwaitTimeout(10 * time.Second)
package hub
