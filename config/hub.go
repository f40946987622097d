package config

import (
	"log/slog"
	"time"
)

// ResourceConfig configures the resource root's backing store.
type ResourceConfig struct {
	// Path is the FileStore root directory; empty keeps resources in memory.
	Path string `json:"path,omitempty" toml:"path" yaml:"path,omitempty"`
}

func (c *ResourceConfig) Merge(source *ResourceConfig) {
	if source.Path != "" {
		c.Path = source.Path
	}
}

// HubConfig defines configuration for a Hub instance.
type HubConfig struct {
	// Name identifies the hub in logs and metrics.
	Name string `json:"name,omitempty" toml:"name" yaml:"name,omitempty"`

	// Observer names a registered observability.Observer.
	Observer string `json:"observer,omitempty" toml:"observer" yaml:"observer,omitempty"`

	// EventLevel drops events below this level ("verbose", "info", "warn",
	// "error") before they reach the observer. Empty forwards everything.
	EventLevel string `json:"event_level,omitempty" toml:"event_level" yaml:"event_level,omitempty"`

	// ShutdownTimeout bounds how long the core root waits for the other
	// roots to terminate.
	ShutdownTimeout Duration `json:"shutdown_timeout,omitempty" toml:"shutdown_timeout" yaml:"shutdown_timeout,omitempty"`

	// Extensions lists root types installed by the core root at startup,
	// in order. Later extensions win service lookups for shared types.
	Extensions []string `json:"extensions,omitempty" toml:"extensions" yaml:"extensions,omitempty"`

	Resources ResourceConfig `json:"resources" toml:"resources" yaml:"resources"`

	Logger *slog.Logger `json:"-" toml:"-" yaml:"-"`
}

// DefaultHubConfig returns a HubConfig with sensible defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		Name:            "default",
		Observer:        "slog",
		ShutdownTimeout: Duration(5 * time.Second),
		Extensions:      []string{"script", "resource"},
		Logger:          slog.Default(),
	}
}

func (c *HubConfig) Merge(source *HubConfig) {
	if source.Name != "" {
		c.Name = source.Name
	}

	if source.Observer != "" {
		c.Observer = source.Observer
	}

	if source.EventLevel != "" {
		c.EventLevel = source.EventLevel
	}

	if source.ShutdownTimeout > 0 {
		c.ShutdownTimeout = source.ShutdownTimeout
	}

	if len(source.Extensions) > 0 {
		c.Extensions = append([]string(nil), source.Extensions...)
	}

	c.Resources.Merge(&source.Resources)

	if source.Logger != nil {
		c.Logger = source.Logger
	}
}
