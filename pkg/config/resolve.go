package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Environment variables consulted by Resolve.
const (
	EnvModel    = "OPENAI_MODEL"
	EnvToken    = "OPENAI_API_KEY"
	EnvEndpoint = "OPENAI_ENDPOINT"
)

// Dotfiles in the home directory consulted by Resolve.
const (
	ModelFile = ".openai_model"
	TokenFile = ".openai_api_key"
)

// Resolver fills unset credentials from the environment and the home
// directory. The zero value uses the process environment.
type Resolver struct {
	LookupEnv func(string) (string, bool)
	HomeDir   func() (string, error)
}

// Resolve fills Model, Token and Endpoint in place. Explicit values win over
// environment variables, which win over dotfiles; the model falls back to
// DefaultModel. A token that does not start with "sk-" and names an existing
// file is replaced by the file's contents. A "Bearer " prefix is stripped.
func (r Resolver) Resolve(cfg *Config) {
	if cfg.Model == "" {
		cfg.Model = r.env(EnvModel)
	}
	if cfg.Model == "" {
		cfg.Model = r.dotfile(ModelFile)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	if cfg.Token == "" {
		cfg.Token = r.env(EnvToken)
	}
	if cfg.Token != "" && !strings.HasPrefix(cfg.Token, "sk-") {
		if data, ok := r.readFile(cfg.Token); ok {
			cfg.Token = data
		}
	}
	if cfg.Token == "" {
		cfg.Token = r.dotfile(TokenFile)
	}
	cfg.Token = strings.ReplaceAll(cfg.Token, "Bearer ", "")

	if cfg.Endpoint == "" {
		cfg.Endpoint = r.env(EnvEndpoint)
	}
}

// Resolve fills credentials using the process environment.
func Resolve(cfg *Config) { Resolver{}.Resolve(cfg) }

func (r Resolver) env(key string) string {
	lookup := r.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, _ := lookup(key)
	return v
}

func (r Resolver) home() string {
	homeDir := r.HomeDir
	if homeDir == nil {
		homeDir = os.UserHomeDir
	}
	dir, err := homeDir()
	if err != nil {
		return ""
	}
	return dir
}

func (r Resolver) dotfile(name string) string {
	home := r.home()
	if home == "" {
		return ""
	}
	data, _ := r.readFile(filepath.Join(home, name))
	return data
}

// readFile reads path (expanding a leading "~/") with newlines removed.
func (r Resolver) readFile(path string) (string, bool) {
	if strings.HasPrefix(path, "~/") {
		home := r.home()
		if home == "" {
			return "", false
		}
		path = filepath.Join(home, path[2:])
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return strings.ReplaceAll(string(data), "\n", ""), true
}
