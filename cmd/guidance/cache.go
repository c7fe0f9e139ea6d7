package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jxzhangjhu/guidance/pkg/cache"
	rediscache "github.com/jxzhangjhu/guidance/pkg/cache/redis"
	sqlitecache "github.com/jxzhangjhu/guidance/pkg/cache/sqlite"
	"github.com/jxzhangjhu/guidance/pkg/config"
)

// openCache opens the store selected by cfg.Cache.Backend.
func openCache(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	namespace := cfg.Cache.Namespace
	if namespace == "" {
		namespace = cache.DefaultNamespace
	}

	switch cfg.Cache.Backend {
	case "", "sqlite":
		path := cfg.Cache.Path
		if path == "" {
			p, err := dataPath("cache.db")
			if err != nil {
				return nil, err
			}
			path = p
		}
		c, err := sqlitecache.New(path, namespace)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		return c, nil
	case "redis":
		r := cfg.Cache.Redis
		c, err := rediscache.New(ctx, rediscache.Config{
			Address:   r.Addr,
			Password:  r.Password,
			DB:        r.DB,
			Prefix:    r.Prefix,
			Namespace: namespace,
		})
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		return c, nil
	case "memory":
		return cache.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backend: %s\nEntries: %d\n", a.cfg.Cache.Backend, stats.Entries)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear all cache entries in the namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All cache entries cleared.")
			return nil
		},
	}

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}
