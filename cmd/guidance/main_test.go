package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jxzhangjhu/guidance/pkg/config"
)

// isolate keeps the developer's credentials and dotfiles out of the test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CACHE_HOME", filepath.Join(home, ".cache"))
	for _, k := range []string{config.EnvModel, config.EnvToken, config.EnvEndpoint} {
		t.Setenv(k, "")
	}
	return home
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLoadConfigPrecedence(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "guidance.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: file-model\nmax_retries: 2\ncache:\n  backend: memory\n"), 0o644))

	t.Setenv("GUIDANCE_MAX_RETRIES", "7")
	t.Setenv("GUIDANCE_CACHE_NAMESPACE", "shared")

	a := newApp()
	root := a.rootCmd()
	require.NoError(t, root.PersistentFlags().Set("config", path))
	complete, _, err := root.Find([]string{"complete"})
	require.NoError(t, err)
	require.NoError(t, complete.Flags().Set("model", "flag-model"))

	cfg, err := a.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "flag-model", cfg.Model)
	assert.Equal(t, 7, cfg.MaxRetries)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "shared", cfg.Cache.Namespace)
	assert.Equal(t, 60, cfg.MaxCallsPerMinute)
}

func TestLoadConfigDefaultsModel(t *testing.T) {
	isolate(t)
	a := newApp()
	cfg, err := a.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultModel, cfg.Model)
}

func TestCompleteAgainstEndpoint(t *testing.T) {
	isolate(t)
	t.Setenv("GUIDANCE_CACHE_BACKEND", "sqlite")
	t.Setenv("GUIDANCE_CACHE_PATH", filepath.Join(t.TempDir(), "cache.db"))
	t.Setenv("GUIDANCE_TRACKER_DB_PATH", filepath.Join(t.TempDir(), "usage.db"))

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "Tell me a joke", body["prompt"])
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"cmpl-1","choices":[{"index":0,"text":"Knock knock."}],"usage":{"prompt_tokens":4,"completion_tokens":3,"total_tokens":7}}`))
	}))
	defer srv.Close()

	args := []string{"complete", "Tell me a joke", "--endpoint", srv.URL, "--token", "sk-test"}
	out, err := run(t, "", args...)
	require.NoError(t, err)
	assert.Equal(t, "Knock knock.\n", out)

	// Second run is served from the sqlite cache.
	out, err = run(t, "", args...)
	require.NoError(t, err)
	assert.Equal(t, "Knock knock.\n", out)
	assert.Equal(t, int32(1), calls.Load())

	out, err = run(t, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "gpt-3.5-turbo-instruct")
	assert.Contains(t, out, "Tokens billed in the last 24h0m0s: 7")

	out, err = run(t, "", "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Entries: 1")

	_, err = run(t, "", "cache", "clear")
	require.NoError(t, err)
	out, err = run(t, "", "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Entries: 0")
}

func TestCompleteReadsStdin(t *testing.T) {
	isolate(t)
	t.Setenv("GUIDANCE_CACHE_BACKEND", "memory")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"text":"` + body["prompt"].(string) + `!"}]}`))
	}))
	defer srv.Close()

	out, err := run(t, "from stdin\n", "complete", "-", "--endpoint", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "from stdin!\n", out)
}

func TestCompleteReportsProviderError(t *testing.T) {
	isolate(t)
	t.Setenv("GUIDANCE_CACHE_BACKEND", "memory")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := run(t, "", "complete", "hi", "--endpoint", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestTokensRoundTrip(t *testing.T) {
	isolate(t)
	out, err := run(t, "", "tokens", "encode", "hello world")
	require.NoError(t, err)
	assert.Equal(t, "15339 1917\n", out)

	out, err = run(t, "", "tokens", "decode", "15339", "1917")
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", out)
}

func TestUnknownCacheBackend(t *testing.T) {
	isolate(t)
	t.Setenv("GUIDANCE_CACHE_BACKEND", "floppy")
	_, err := run(t, "", "cache", "stats")
	assert.ErrorContains(t, err, "unknown cache backend")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	logger.Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	_, err = newLogger(config.LoggingConfig{Level: "loud"}, &buf)
	assert.Error(t, err)
	_, err = newLogger(config.LoggingConfig{Format: "xml"}, &buf)
	assert.Error(t, err)
}
