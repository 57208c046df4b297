package config

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	want := DEFAULT_APP_CONFIG
	if cfg.Env != want.Env || cfg.LogLevel != want.LogLevel || cfg.Port != want.Port {
		t.Errorf("unexpected env/log/port: %q %q %d", cfg.Env, cfg.LogLevel, cfg.Port)
	}
	if cfg.Upstream != "8.8.8.8:53" || cfg.UpstreamTimeout != 5*time.Second {
		t.Errorf("unexpected upstream: %q %v", cfg.Upstream, cfg.UpstreamTimeout)
	}
	if cfg.ZoneDir != want.ZoneDir || cfg.ZoneTTL != want.ZoneTTL {
		t.Errorf("unexpected zone settings: %q %v", cfg.ZoneDir, cfg.ZoneTTL)
	}
	if cfg.CacheSize != 1000 || cfg.DisableCache {
		t.Errorf("unexpected cache settings: %d %v", cfg.CacheSize, cfg.DisableCache)
	}
	if cfg.QueryLogPath != "" || cfg.QueryLogQueue != want.QueryLogQueue {
		t.Errorf("unexpected query log settings: %q %d", cfg.QueryLogPath, cfg.QueryLogQueue)
	}
	if len(cfg.BlocklistPaths) != 0 || cfg.BlocklistDB != want.BlocklistDB {
		t.Errorf("unexpected blocklist settings: %v %q", cfg.BlocklistPaths, cfg.BlocklistDB)
	}
	if cfg.BlocklistFPRate != 0.01 || cfg.BlocklistCacheSize != want.BlocklistCacheSize {
		t.Errorf("unexpected blocklist tuning: %v %d", cfg.BlocklistFPRate, cfg.BlocklistCacheSize)
	}
	if cfg.MaxUDPSize != 512 {
		t.Errorf("expected MaxUDPSize=512, got %d", cfg.MaxUDPSize)
	}
	if cfg.ListenAddr() != ":53" {
		t.Errorf("expected ListenAddr=:53, got %q", cfg.ListenAddr())
	}
	if !cfg.CacheEnabled() {
		t.Errorf("expected cache enabled by default")
	}
}

func TestLoad_ValidOverrides(t *testing.T) {
	t.Setenv("DNS_ENV", "dev")
	t.Setenv("DNS_LOG_LEVEL", "debug")
	t.Setenv("DNS_PORT", "5353")
	t.Setenv("DNS_UPSTREAM", "1.1.1.1:53")
	t.Setenv("DNS_UPSTREAM_TIMEOUT", "1500ms")
	t.Setenv("DNS_ZONE_DIR", "/tmp/zones")
	t.Setenv("DNS_ZONE_TTL", "1h")
	t.Setenv("DNS_CACHE_SIZE", "0")
	t.Setenv("DNS_QUERY_LOG_PATH", "/tmp/queries.db")
	t.Setenv("DNS_QUERY_LOG_QUEUE", "64")
	t.Setenv("DNS_BLOCKLIST_PATHS", "/tmp/ads.txt, /tmp/hosts")
	t.Setenv("DNS_BLOCKLIST_DB", "/tmp/bl.db")
	t.Setenv("DNS_BLOCKLIST_FP_RATE", "0.001")
	t.Setenv("DNS_MAX_UDP_SIZE", "1232")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Env != "dev" || cfg.LogLevel != "debug" {
		t.Errorf("unexpected env/log level: %q/%q", cfg.Env, cfg.LogLevel)
	}
	if cfg.Port != 5353 || cfg.ListenAddr() != ":5353" {
		t.Errorf("expected port 5353, got %d (%s)", cfg.Port, cfg.ListenAddr())
	}
	if cfg.Upstream != "1.1.1.1:53" {
		t.Errorf("expected Upstream=1.1.1.1:53, got %q", cfg.Upstream)
	}
	if cfg.UpstreamTimeout != 1500*time.Millisecond {
		t.Errorf("expected UpstreamTimeout=1.5s, got %v", cfg.UpstreamTimeout)
	}
	if cfg.ZoneDir != "/tmp/zones" || cfg.ZoneTTL != time.Hour {
		t.Errorf("unexpected zone settings: %q %v", cfg.ZoneDir, cfg.ZoneTTL)
	}
	if cfg.CacheEnabled() {
		t.Errorf("cache size 0 should disable the cache")
	}
	if cfg.QueryLogPath != "/tmp/queries.db" || cfg.QueryLogQueue != 64 {
		t.Errorf("unexpected query log settings: %q %d", cfg.QueryLogPath, cfg.QueryLogQueue)
	}
	wantPaths := []string{"/tmp/ads.txt", "/tmp/hosts"}
	if !reflect.DeepEqual(cfg.BlocklistPaths, wantPaths) {
		t.Errorf("expected BlocklistPaths=%v, got %v", wantPaths, cfg.BlocklistPaths)
	}
	if cfg.BlocklistDB != "/tmp/bl.db" || cfg.BlocklistFPRate != 0.001 {
		t.Errorf("unexpected blocklist settings: %q %v", cfg.BlocklistDB, cfg.BlocklistFPRate)
	}
	if cfg.MaxUDPSize != 1232 {
		t.Errorf("expected MaxUDPSize=1232, got %d", cfg.MaxUDPSize)
	}
}

func TestLoad_SingleBlocklistPath(t *testing.T) {
	t.Setenv("DNS_BLOCKLIST_PATHS", "/tmp/ads.txt")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if !reflect.DeepEqual(cfg.BlocklistPaths, []string{"/tmp/ads.txt"}) {
		t.Errorf("expected one path, got %v", cfg.BlocklistPaths)
	}
}

func TestLoad_DisableCache(t *testing.T) {
	t.Setenv("DNS_DISABLE_CACHE", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.CacheEnabled() {
		t.Errorf("expected cache disabled")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"DNS_ENV":               "staging",
		"DNS_LOG_LEVEL":         "verbose",
		"DNS_PORT":              "70000",
		"DNS_UPSTREAM":          "dns.google:53",
		"DNS_UPSTREAM_TIMEOUT":  "10ms",
		"DNS_ZONE_TTL":          "0s",
		"DNS_CACHE_SIZE":        "-1",
		"DNS_QUERY_LOG_QUEUE":   "0",
		"DNS_BLOCKLIST_FP_RATE": "1.5",
		"DNS_MAX_UDP_SIZE":      "256",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}

func TestLoad_BlocklistNeedsDB(t *testing.T) {
	t.Setenv("DNS_BLOCKLIST_PATHS", "/tmp/ads.txt")
	t.Setenv("DNS_BLOCKLIST_DB", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error when blocklist paths are set without a db")
	}
}

func TestLoad_UnparsableValue(t *testing.T) {
	t.Setenv("DNS_PORT", "not-a-port")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "unmarshalling") {
		t.Fatalf("expected unmarshal error, got %v", err)
	}
}

func TestLoad_WhenKoanfDefaultLoadFails(t *testing.T) {
	orig := defaultLoader
	defaultLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { defaultLoader = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatalf("expected error when loading defaults, got %v", err)
	}
}

func TestLoad_WhenKoanfEnvLoadFails(t *testing.T) {
	orig := envLoader
	envLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { envLoader = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatalf("expected error when loading env, got %v", err)
	}
}

func TestLoad_RegisterValidationFails(t *testing.T) {
	orig := registerValidation
	registerValidation = func(v *validator.Validate) error { return errors.New("mocked validation error") }
	defer func() { registerValidation = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked validation error") {
		t.Fatalf("expected registration error, got %v", err)
	}
}

func TestValidIPPort(t *testing.T) {
	type target struct {
		Addr string `validate:"ip_port"`
	}
	v := validator.New()
	if err := v.RegisterValidation("ip_port", validIPPort); err != nil {
		t.Fatalf("register: %v", err)
	}

	tests := map[string]bool{
		"8.8.8.8:53":           true,
		"[2001:4860::8888]:53": true,
		"127.0.0.1:0":          false,
		"8.8.8.8":              false,
		"host.example:53":      false,
		"8.8.8.8:65536":        false,
		":53":                  false,
	}
	for addr, want := range tests {
		err := v.Struct(target{Addr: addr})
		if got := err == nil; got != want {
			t.Errorf("ip_port(%q) valid=%v, want %v (err=%v)", addr, got, want, err)
		}
	}
}

func TestSplitList(t *testing.T) {
	if got := splitList("one"); got != "one" {
		t.Errorf("single value should stay a string, got %#v", got)
	}
	got := splitList("a, b c")
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("unexpected list: %#v", got)
	}
}
