package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/membank/internal/cache"
	"github.com/felixgeelhaar/membank/internal/config"
	"github.com/felixgeelhaar/membank/internal/docs"
	"github.com/felixgeelhaar/membank/internal/events"
	"github.com/felixgeelhaar/membank/internal/observe"
	"github.com/felixgeelhaar/membank/internal/retrieval"
	"github.com/felixgeelhaar/membank/internal/secret"
	"github.com/felixgeelhaar/membank/internal/store"
	"github.com/spf13/cobra"
)

// options holds the persistent flags shared by every command.
type options struct {
	configPath string
	root       string
	backend    string
	verbose    bool
	json       bool
}

// app is the wired component graph for one command invocation.
type app struct {
	cfg    *config.Config
	obs    *observe.Observer
	bus    *events.EventBus
	store  *store.MemoryStore
	engine *retrieval.Engine
	hook   *cache.Hook
}

func loadConfig(o *options) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.root != "" {
		cfg.MemoryRoot = o.root
	}
	if o.backend != "" {
		cfg.Backend = strings.ToLower(o.backend)
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newObserver(cmd *cobra.Command, o *options) *observe.Observer {
	if o.json {
		return observe.NewJSON(cmd.ErrOrStderr(), o.verbose)
	}
	return observe.New(cmd.ErrOrStderr(), o.verbose)
}

func openBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return store.NewFileBackend(cfg.MemoryRoot)
	case config.BackendSQLite:
		return store.NewSQLiteBackend(cfg.DatabasePath())
	case config.BackendS3:
		sealer, err := secret.FromEnv()
		if err != nil {
			return nil, err
		}
		if err := cfg.OpenSecrets(sealer); err != nil {
			return nil, err
		}
		return store.NewObjectBackend(ctx, store.ObjectConfig{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Secure:    cfg.S3.Secure,
		})
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func openApp(cmd *cobra.Command, o *options) (*app, error) {
	cfg, err := loadConfig(o)
	if err != nil {
		return nil, err
	}

	obs := newObserver(cmd, o)

	res := cfg.Validate()
	for _, w := range res.Warnings {
		obs.Log().Debug().Str("warning", w).Msg("configuration")
	}
	if !res.Valid {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(res.Errors, "; "))
	}

	backend, err := openBackend(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", cfg.Backend, err)
	}

	bus := events.NewEventBus()
	bus.SubscribeAll(func(e events.Event) {
		obs.Log().Debug().Str("event", string(e.Type)).Str("category", e.Category).Str("key", e.Key).Msg("event")
	})

	s := store.New(backend, store.WithObserver(obs), store.WithEventBus(bus))
	engine := retrieval.New(s, obs)
	engine.SetEventBus(bus)
	hook := cache.New(s,
		cache.WithFreshness(cfg.Freshness()),
		cache.WithObserver(obs),
		cache.WithEventBus(bus),
	)

	return &app{cfg: cfg, obs: obs, bus: bus, store: s, engine: engine, hook: hook}, nil
}

// resolver builds the configured documentation client.
func (a *app) resolver() (docs.Resolver, error) {
	if a.cfg.Resolver.Command == "" {
		return nil, errors.New("resolver.command is not configured")
	}
	return docs.NewCLIResolver(a.cfg.Resolver.Command, a.cfg.Resolver.Args, a.cfg.ResolverTimeout())
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.obs.Log().Warn().Err(err).Msg("failed to close store")
	}
	_ = a.obs.Close()
}

// withApp opens the component graph, runs fn and closes it again.
func withApp(o *options, fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, o)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
	return err
}
