package hub

import (
	"fmt"
	"log/slog"

	"github.com/tailored-agentic-units/roots/config"
	"github.com/tailored-agentic-units/roots/factory"
	"github.com/tailored-agentic-units/roots/observability"
	"github.com/tailored-agentic-units/roots/root"
)

const factoryExtension = "factory"

type extension struct {
	name string
	root root.Root
}

// Builder assembles a Hub. The zero value is not usable; call NewBuilder.
type Builder struct {
	cfg        config.HubConfig
	observer   observability.Observer
	logger     *slog.Logger
	registry   *factory.Registry
	extensions []extension
}

// NewBuilder starts from DefaultHubConfig without extensions. Extensions
// come from WithConfig or AddExtension.
func NewBuilder() *Builder {
	cfg := config.DefaultHubConfig()
	cfg.Extensions = nil
	return &Builder{cfg: cfg}
}

// WithConfig merges cfg over the builder's configuration.
func (b *Builder) WithConfig(cfg config.HubConfig) *Builder {
	b.cfg.Merge(&cfg)
	return b
}

// WithObserver overrides the observer named in the configuration.
func (b *Builder) WithObserver(observer observability.Observer) *Builder {
	b.observer = observer
	return b
}

// WithLogger overrides the configured logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithRootFactory sets the registry used to resolve configured extensions
// and to serve root-factory create calls.
func (b *Builder) WithRootFactory(registry *factory.Registry) *Builder {
	b.registry = registry
	return b
}

// AddExtension installs r at startup, after the configured extensions.
func (b *Builder) AddExtension(name string, r root.Root) *Builder {
	b.extensions = append(b.extensions, extension{name: name, root: r})
	return b
}

// Build validates the configuration and creates the hub.
func (b *Builder) Build() (*Hub, error) {
	logger := b.logger
	if logger == nil {
		logger = b.cfg.Logger
	}
	if logger == nil {
		logger = slog.Default()
	}

	observer := b.observer
	if observer == nil {
		obs, err := observability.GetObserver(b.cfg.Observer)
		if err != nil {
			return nil, fmt.Errorf("hub %s: %w", b.cfg.Name, err)
		}
		observer = obs
	}
	if b.cfg.EventLevel != "" {
		level, err := observability.ParseLevel(b.cfg.EventLevel)
		if err != nil {
			return nil, fmt.Errorf("hub %s: %w", b.cfg.Name, err)
		}
		observer = observability.MinLevel(observer, level)
	}

	registry := b.registry
	if registry == nil {
		registry = factory.NewRegistry()
	}

	extensions := []extension{{name: factoryExtension, root: factory.NewRoot(registry)}}
	for _, name := range b.cfg.Extensions {
		r, err := registry.Create(name)
		if err != nil {
			return nil, fmt.Errorf("hub %s: extension: %w", b.cfg.Name, err)
		}
		extensions = append(extensions, extension{name: name, root: r})
	}
	extensions = append(extensions, b.extensions...)

	h := &Hub{
		name:            b.cfg.Name,
		shutdownTimeout: b.cfg.ShutdownTimeout.Std(),
		extensions:      extensions,
		logger:          logger.With(slog.String("hub", b.cfg.Name)),
		observer:        observer,
		metrics:         NewMetrics(),
		ready:           make(chan struct{}),
		done:            make(chan struct{}),
	}
	h.collector = newCollector(h)
	return h, nil
}
