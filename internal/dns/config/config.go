// Package config loads the proxy's settings from DNS_* environment variables
// on top of built-in defaults and validates the result.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "DNS_"

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Port is the UDP port the proxy listens on.
	Port int `koanf:"port" validate:"required,gte=1,lte=65535"`

	// Upstream is the resolver queries are forwarded to, in ip:port format.
	Upstream string `koanf:"upstream" validate:"required,ip_port"`

	// UpstreamTimeout bounds one forward, retransmission included.
	UpstreamTimeout time.Duration `koanf:"upstream_timeout" validate:"gte=100ms,lte=30s"`

	// ZoneDir holds the YAML, JSON and TOML zone files answered locally.
	ZoneDir string `koanf:"zone_dir" validate:"required"`

	// ZoneTTL applies to zone files without their own ttl.
	ZoneTTL time.Duration `koanf:"zone_ttl" validate:"gte=1s"`

	CacheSize    int  `koanf:"cache_size" validate:"gte=0"`
	DisableCache bool `koanf:"disable_cache"`

	// QueryLogPath is the bbolt file forwarded queries are recorded in.
	// Empty disables the query log.
	QueryLogPath  string `koanf:"query_log_path"`
	QueryLogQueue int    `koanf:"query_log_queue" validate:"gte=1"`

	// BlocklistPaths lists plain or hosts-format blocklist files.
	BlocklistPaths     []string `koanf:"blocklist_paths" validate:"omitempty,dive,required"`
	BlocklistDB        string   `koanf:"blocklist_db" validate:"required_with=BlocklistPaths"`
	BlocklistFPRate    float64  `koanf:"blocklist_fp_rate" validate:"gt=0,lt=1"`
	BlocklistCacheSize int      `koanf:"blocklist_cache_size" validate:"gte=0"`

	// MaxUDPSize caps replies to clients that advertise a larger EDNS buffer.
	// Requests without an OPT record always get at most 512 bytes.
	MaxUDPSize int `koanf:"max_udp_size" validate:"gte=512,lte=4096"`
}

// DEFAULT_APP_CONFIG holds the values used for any setting not present in
// the environment.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:                "prod",
	LogLevel:           "info",
	Port:               53,
	Upstream:           "8.8.8.8:53",
	UpstreamTimeout:    5 * time.Second,
	ZoneDir:            "/etc/rr-proxy/zones/",
	ZoneTTL:            5 * time.Minute,
	CacheSize:          1000,
	DisableCache:       false,
	QueryLogPath:       "",
	QueryLogQueue:      1024,
	BlocklistDB:        "/var/lib/rr-proxy/blocklist.db",
	BlocklistFPRate:    0.01,
	BlocklistCacheSize: 10000,
	MaxUDPSize:         512,
}

// ListenAddr is the address the UDP listener binds to.
func (c *AppConfig) ListenAddr() string {
	return net.JoinHostPort("", strconv.Itoa(c.Port))
}

// CacheEnabled reports whether forwarded answers are cached.
func (c *AppConfig) CacheEnabled() bool {
	return !c.DisableCache && c.CacheSize > 0
}

// validIPPort validates whether the provided field value is a valid IP address and port combination.
func validIPPort(fl validator.FieldLevel) bool {
	ip, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil || ip == "" || port == "" {
		return false
	}
	if net.ParseIP(ip) == nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

// splitList turns "a,b c" into a list; a single value stays a string.
func splitList(value string) any {
	if !strings.ContainsAny(value, " ,") {
		return value
	}
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ' ' || r == ','
	})
}

// envLoader loads DNS_* variables with the prefix stripped and keys
// lowercased. Swapped out in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			value = strings.TrimSpace(value)
			if value == "" {
				return key, value
			}
			return key, splitList(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("ip_port", validIPPort)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return &cfg, nil
}
