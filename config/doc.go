// Package config provides configuration structures for the hub and its
// built-in roots.
//
// Configuration only exists during initialization: the hub builder reads a
// HubConfig and transforms it into runtime components. Defaults come from
// DefaultHubConfig and loaded files are merged over them:
//
//	cfg, err := config.Load("hub.toml")
//	h, err := hub.NewBuilder().WithConfig(cfg).Build()
//
// Files are decoded by extension: .json (encoding/json), .toml
// (BurntSushi/toml) and .yaml/.yml (yaml.v3). The same field names are used
// in all three formats.
//
// # Merge semantics
//
//   - Strings: merge if source is non-empty
//   - Durations: merge if source is greater than zero
//   - Slices: merge if source is non-empty (replaces, does not append)
//   - Pointers: merge if source is non-nil
//   - Nested configs: recursive merge
package config
