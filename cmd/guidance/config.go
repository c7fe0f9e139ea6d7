package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jxzhangjhu/guidance/pkg/config"
)

// loadConfig builds the effective configuration: the YAML file (if any),
// then flags and GUIDANCE_* environment variables, then credential
// resolution for whatever is still unset.
func (a *app) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if path := strings.TrimSpace(a.v.GetString("config")); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	strs := map[string]*string{
		"model":            &cfg.Model,
		"token":            &cfg.Token,
		"endpoint":         &cfg.Endpoint,
		"cache.backend":    &cfg.Cache.Backend,
		"cache.path":       &cfg.Cache.Path,
		"cache.namespace":  &cfg.Cache.Namespace,
		"cache.redis.addr": &cfg.Cache.Redis.Addr,
		"tracker.db_path":  &cfg.Tracker.DBPath,
		"logging.level":    &cfg.Logging.Level,
		"logging.format":   &cfg.Logging.Format,
	}
	for key, dst := range strs {
		if a.v.IsSet(key) {
			*dst = a.v.GetString(key)
		}
	}

	ints := map[string]*int{
		"max_retries":          &cfg.MaxRetries,
		"max_calls_per_minute": &cfg.MaxCallsPerMinute,
		"cache.redis.db":       &cfg.Cache.Redis.DB,
	}
	for key, dst := range ints {
		if a.v.IsSet(key) {
			*dst = a.v.GetInt(key)
		}
	}

	if a.v.IsSet("chat_completion") {
		cfg.ChatCompletion = a.v.GetBool("chat_completion")
	}
	if a.v.IsSet("caching") {
		cfg.Caching = a.v.GetBool("caching")
	}

	a.resolver.Resolve(cfg)
	return cfg, nil
}

// dataPath returns name inside the per-user data directory, creating it.
func dataPath(name string) (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate cache dir: %w", err)
	}
	dir = filepath.Join(dir, "guidance")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return filepath.Join(dir, name), nil
}
