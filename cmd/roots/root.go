package main

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/roots/config"
	"github.com/tailored-agentic-units/roots/factory"
	"github.com/tailored-agentic-units/roots/hub"
	"github.com/tailored-agentic-units/roots/observability"
	"github.com/tailored-agentic-units/roots/resource"
	"github.com/tailored-agentic-units/roots/root"
	"github.com/tailored-agentic-units/roots/script"
)

// validLogFormats are the accepted --log-format values.
var validLogFormats = []string{"text", "json", "zerolog"}

// rootOptions holds the global flags.
type rootOptions struct {
	configFile  string
	verbose     bool
	logFormat   string
	metricsAddr string
	resources   string
	events      []string
}

// exitError carries a non-zero hub exit code out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "roots",
		Short:         "Run scripts on a hub of roots",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validLogFormats, opts.logFormat) {
				return fmt.Errorf("invalid log format %q: must be one of %v", opts.logFormat, validLogFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "hub config file (.json, .toml, .yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format (text|json|zerolog)")
	cmd.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.PersistentFlags().StringVar(&opts.resources, "resources", "", "resource directory (overrides config)")
	cmd.PersistentFlags().StringSliceVar(&opts.events, "events", nil, "only report events with these type prefixes (e.g. hub.,script.)")

	cmd.AddCommand(newEvalCommand(opts))
	cmd.AddCommand(newRunCommand(opts))

	return cmd
}

func (o *rootOptions) loadConfig() (config.HubConfig, error) {
	cfg := config.DefaultHubConfig()
	if o.configFile != "" {
		loaded, err := config.Load(o.configFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if o.resources != "" {
		cfg.Resources.Path = o.resources
	}
	return cfg, nil
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if o.logFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// observer picks where hub events go: zerolog JSON for that log format,
// otherwise the configured observer, with "slog" bound to the CLI logger.
// --events narrows them down to the given type prefixes.
func (o *rootOptions) observer(w io.Writer, logger *slog.Logger, cfg config.HubConfig) (observability.Observer, error) {
	var obs observability.Observer

	switch {
	case o.logFormat == "zerolog":
		obs = observability.NewZerologObserver(zerolog.New(w).With().Timestamp().Logger())
		if !o.verbose {
			obs = observability.MinLevel(obs, observability.LevelWarning)
		}
	case cfg.Observer == "slog":
		obs = observability.NewSlogObserver(logger)
	default:
		named, err := observability.GetObserver(cfg.Observer)
		if err != nil {
			return nil, err
		}
		obs = named
	}

	if len(o.events) > 0 {
		obs = observability.WithPrefix(obs, o.events...)
	}
	return obs, nil
}

// rootTypes registers the root types extensions and add-root can create.
func rootTypes(cfg config.HubConfig) (*factory.Registry, error) {
	reg := factory.NewRegistry()

	types := map[string]factory.Constructor{
		"script": func() (root.Root, error) {
			return script.New(nil), nil
		},
		"resource": func() (root.Root, error) {
			return resource.NewFromConfig(cfg.Resources), nil
		},
	}
	for name, ctor := range types {
		if err := reg.Register(name, ctor); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (o *rootOptions) buildHub(cmd *cobra.Command) (*hub.Hub, time.Duration, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, 0, err
	}

	reg, err := rootTypes(cfg)
	if err != nil {
		return nil, 0, err
	}

	logger := o.logger(cmd.ErrOrStderr())
	obs, err := o.observer(cmd.ErrOrStderr(), logger, cfg)
	if err != nil {
		return nil, 0, err
	}

	b := hub.NewBuilder().
		WithConfig(cfg).
		WithLogger(logger).
		WithObserver(obs).
		WithRootFactory(reg)

	h, err := b.Build()
	if err != nil {
		return nil, 0, err
	}
	return h, cfg.ShutdownTimeout.Std(), nil
}
