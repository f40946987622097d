// Package factory constructs roots by type name.
//
// A Registry maps type names to constructors. The hub uses it to resolve
// the extensions named in its configuration, and NewRoot exposes it to
// other roots as the root-factory service:
//
//	create(type) → reply carrying a new, uninitialized root.Root
//	types()      → reply carrying the registered type names
package factory
