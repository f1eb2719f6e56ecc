package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/spf13/pflag"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// isolate points HOME at a temp dir so no user config file is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SATEXPLORER_CONFIG", "")
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	c, err := Load("", nil, testLogger())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	assert.Equal(t, c.HTTP.Addr, ":8080")
	assert.Equal(t, c.Source.BaseURL, "https://backend.digantara.dev")
	assert.Equal(t, c.Source.Path, "/v1/satellites")
	assert.Equal(t, c.Cache.StaleTime, 5*time.Minute)
	assert.Equal(t, c.Cache.Retries, 3)
	assert.Equal(t, c.Cache.Prefetch, true)
	assert.Equal(t, c.Stream.MaxConcurrentPerIP, 10)
	assert.Equal(t, c.Storage.Path, filepath.Join(home, ".local", "share", "satexplorer", "satexplorer.db"))
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("SATEXPLORER_HTTP_ADDR", ":9999")
	t.Setenv("SATEXPLORER_CACHE_STALE_TIME", "90s")
	t.Setenv("SATEXPLORER_CACHE_RETRIES", "0")
	t.Setenv("SATEXPLORER_SOURCE_BASE_URL", "http://localhost:4000")

	c, err := Load("", nil, testLogger())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	assert.Equal(t, c.HTTP.Addr, ":9999")
	assert.Equal(t, c.Cache.StaleTime, 90*time.Second)
	assert.Equal(t, c.Cache.Retries, 0)
	assert.Equal(t, c.Source.BaseURL, "http://localhost:4000")
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "satexplorer.yaml")
	body := `
http:
  addr: ":7070"
source:
  params:
    limit: "500"
stream:
  keepalive_interval: 10s
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path, nil, testLogger())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	assert.Equal(t, c.HTTP.Addr, ":7070")
	assert.Equal(t, c.Source.Params["limit"], "500")
	assert.Equal(t, c.Stream.KeepaliveInterval, 10*time.Second)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil, testLogger()); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoadZeroStaleTimeAndEphemeralStorage(t *testing.T) {
	isolate(t)
	t.Setenv("SATEXPLORER_CACHE_STALE_TIME", "0s")
	t.Setenv("SATEXPLORER_STORAGE_EPHEMERAL", "true")

	c, err := Load("", nil, testLogger())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	assert.Equal(t, c.Cache.StaleTime, time.Duration(0))
	assert.Equal(t, c.Storage.Ephemeral, true)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	isolate(t)
	t.Setenv("SATEXPLORER_HTTP_ADDR", ":9999")

	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.String("addr", ":8080", "")
	fs.Bool("prefetch", true, "")
	if err := fs.Parse([]string{"--addr", ":6060", "--prefetch=false"}); err != nil {
		t.Fatal(err)
	}

	c, err := Load("", fs, testLogger())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	assert.Equal(t, c.HTTP.Addr, ":6060")
	assert.Equal(t, c.Cache.Prefetch, false)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	isolate(t)
	t.Setenv("SATEXPLORER_CACHE_RETRIES", "-2")
	t.Setenv("SATEXPLORER_STREAM_MAX_CONCURRENT_PER_IP", "0")
	t.Setenv("SATEXPLORER_STREAM_KEEPALIVE_INTERVAL", "1ms")

	c, err := Load("", nil, testLogger())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	assert.Equal(t, c.Cache.Retries, 3)
	assert.Equal(t, c.Stream.MaxConcurrentPerIP, 10)
	assert.Equal(t, c.Stream.KeepaliveInterval, 30*time.Second)
}

func TestLoadAuthRequiresToken(t *testing.T) {
	isolate(t)
	t.Setenv("SATEXPLORER_AUTH_ENABLED", "true")

	if _, err := Load("", nil, testLogger()); err == nil {
		t.Error("expected error when auth is enabled without a token")
	}

	t.Setenv("SATEXPLORER_AUTH_TOKEN", "secret")
	c, err := Load("", nil, testLogger())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	assert.Equal(t, c.Auth.Token, "secret")
}
