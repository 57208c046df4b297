package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haukened/rr-proxy/internal/dns/common/clock"
	"github.com/haukened/rr-proxy/internal/dns/common/log"
	"github.com/haukened/rr-proxy/internal/dns/config"
	"github.com/haukened/rr-proxy/internal/dns/gateways/transport"
	"github.com/haukened/rr-proxy/internal/dns/gateways/upstream"
	"github.com/haukened/rr-proxy/internal/dns/gateways/wire"
	"github.com/haukened/rr-proxy/internal/dns/repos/blocklist"
	"github.com/haukened/rr-proxy/internal/dns/repos/blocklist/bloom"
	"github.com/haukened/rr-proxy/internal/dns/repos/blocklist/bolt"
	"github.com/haukened/rr-proxy/internal/dns/repos/blocklist/lru"
	"github.com/haukened/rr-proxy/internal/dns/repos/blocklist/parsers"
	"github.com/haukened/rr-proxy/internal/dns/repos/dnscache"
	"github.com/haukened/rr-proxy/internal/dns/repos/querylog"
	"github.com/haukened/rr-proxy/internal/dns/repos/zone"
	"github.com/haukened/rr-proxy/internal/dns/repos/zonetable"
	"github.com/haukened/rr-proxy/internal/dns/services/proxy"
)

const (
	version = "0.1.0-dev"
	appName = "rr-proxyd"

	defaultShutdownTimeout = 10 * time.Second

	// drainGrace is the budget for flushing the query log and closing files
	// once the last in-flight forward has returned.
	drainGrace = 5 * time.Second
)

// Application holds all the components of the proxy.
type Application struct {
	config     *config.AppConfig
	transport  transport.ServerTransport
	dispatcher *proxy.Dispatcher
	upstream   *upstream.Client

	// closers run in order on shutdown, after the transport has drained.
	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info(map[string]any{
		"app":       appName,
		"version":   version,
		"env":       cfg.Env,
		"log_level": cfg.LogLevel,
		"port":      cfg.Port,
		"upstream":  cfg.Upstream,
		"zone_dir":  cfg.ZoneDir,
	}, "Starting DNS proxy")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := buildApplication(ctx, cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Server failed")
	}
	log.Info(nil, "DNS proxy stopped gracefully")
}

// buildApplication constructs all components and wires them together. On
// failure everything opened so far is closed again.
func buildApplication(ctx context.Context, cfg *config.AppConfig) (_ *Application, err error) {
	clk := clock.RealClock{}
	logger := log.GetLogger()
	app := &Application{config: cfg}
	defer func() {
		if err != nil {
			_ = app.close()
		}
	}()

	codec := wire.NewUDPCodec(logger)

	table, err := buildZoneTable(cfg)
	if err != nil {
		return nil, err
	}

	var cache proxy.Cache
	if cfg.CacheEnabled() {
		c, err := dnscache.New(cfg.CacheSize, clk)
		if err != nil {
			return nil, fmt.Errorf("failed to create response cache: %w", err)
		}
		cache = c
		log.Info(map[string]any{"type": "LRU", "size": cfg.CacheSize}, "DNS response cache configured")
	} else {
		log.Info(map[string]any{"disabled": true}, "DNS response caching disabled")
	}

	bl, err := app.buildBlocklist(cfg, clk, logger)
	if err != nil {
		return nil, err
	}

	var sink proxy.LogSink
	if cfg.QueryLogPath != "" {
		store, err := querylog.Open(cfg.QueryLogPath, logger)
		if err != nil {
			return nil, err
		}
		app.onClose("query log", store.Close)
		async := querylog.NewAsync(store, cfg.QueryLogQueue, logger)
		app.onClose("query log queue", func() error { async.Close(); return nil })
		sink = async
	}

	client, err := upstream.NewClient(ctx, upstream.Options{
		Server:  cfg.Upstream,
		Timeout: cfg.UpstreamTimeout,
		Codec:   codec,
		Logger:  logger,
		Clock:   clk,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}
	app.upstream = client
	log.Info(map[string]any{"server": client.Server(), "timeout": cfg.UpstreamTimeout}, "Upstream DNS client configured")

	app.dispatcher, err = proxy.New(proxy.Options{
		Codec:      codec,
		Upstream:   client,
		Zone:       table,
		Blocklist:  bl,
		Cache:      cache,
		Sink:       sink,
		Logger:     logger,
		Clock:      clk,
		Timeout:    cfg.UpstreamTimeout,
		MaxUDPSize: cfg.MaxUDPSize,
	})
	if err != nil {
		return nil, err
	}

	app.transport, err = transport.NewTransport(transport.TransportUDP, transport.Options{
		Addr:   cfg.ListenAddr(),
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

func buildZoneTable(cfg *config.AppConfig) (*zonetable.Table, error) {
	entries, err := zone.LoadDirectory(cfg.ZoneDir, cfg.ZoneTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to load zone directory: %w", err)
	}
	table, err := zonetable.New(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to build zone table: %w", err)
	}
	log.Info(map[string]any{
		"zone_dir": cfg.ZoneDir,
		"names":    len(table.Names()),
		"records":  table.Len(),
	}, "Zone table initialized")
	return table, nil
}

// buildBlocklist loads every configured list into the bbolt-backed
// repository. With no lists configured nothing is blocked.
func (app *Application) buildBlocklist(cfg *config.AppConfig, clk clock.Clock, logger log.Logger) (proxy.Blocklist, error) {
	if len(cfg.BlocklistPaths) == 0 {
		return blocklist.NoopRepository{}, nil
	}

	store, err := bolt.New(cfg.BlocklistDB)
	if err != nil {
		return nil, err
	}
	app.onClose("blocklist store", store.Close)

	cache, err := lru.New(cfg.BlocklistCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create blocklist cache: %w", err)
	}
	repo := blocklist.NewRepository(store, cache, bloom.NewFactory(), cfg.BlocklistFPRate, logger)

	now := clk.Now()
	rules, err := parsers.LoadFiles(cfg.BlocklistPaths, logger, now)
	if err != nil {
		return nil, err
	}
	if err := repo.UpdateAll(rules, uint64(now.Unix()), now.Unix()); err != nil {
		return nil, fmt.Errorf("failed to index blocklist: %w", err)
	}
	return repo, nil
}

func (app *Application) onClose(name string, fn func() error) {
	app.closers = append(app.closers, closer{name: name, fn: fn})
}

// close releases the upstream socket, then runs closers newest first so the
// query log queue drains before its store closes.
func (app *Application) close() error {
	var errs []error
	if app.upstream != nil {
		if err := app.upstream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("upstream client: %w", err))
		}
	}
	for i := len(app.closers) - 1; i >= 0; i-- {
		c := app.closers[i]
		if err := c.fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

// shutdownTimeout outlasts the longest in-flight forward, since the
// transport waits for those before anything else is released.
func (app *Application) shutdownTimeout() time.Duration {
	return max(defaultShutdownTimeout, app.config.UpstreamTimeout+drainGrace)
}

// Address returns the listener address.
func (app *Application) Address() string {
	return app.transport.Address()
}

// Run starts the proxy and blocks until ctx is cancelled, then shuts down:
// the listener drains in-flight queries before the upstream socket and the
// stores are closed.
func (app *Application) Run(ctx context.Context) error {
	// in-flight queries keep their context until the transport has drained
	serveCtx, cancelServe := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelServe()

	if err := app.transport.Start(serveCtx, app.dispatcher); err != nil {
		_ = app.close()
		return fmt.Errorf("failed to start UDP transport: %w", err)
	}
	log.Info(map[string]any{
		"address":   app.transport.Address(),
		"transport": "UDP",
	}, "DNS proxy started")

	<-ctx.Done()
	log.Info(nil, "Shutdown initiated")

	done := make(chan error, 1)
	go func() {
		if err := app.transport.Stop(); err != nil {
			log.Warn(map[string]any{"error": err}, "Error during transport shutdown")
		}
		cancelServe()
		done <- app.close()
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Warn(map[string]any{"error": err}, "Error releasing resources")
		}
		stats := app.dispatcher.Stats()
		log.Info(map[string]any{
			"received":   stats.Received,
			"dropped":    stats.Dropped,
			"local":      stats.Local,
			"blocked":    stats.Blocked,
			"cache_hits": stats.CacheHits,
			"forwarded":  stats.Forwarded,
			"servfail":   stats.ServFail,
		}, "Graceful shutdown completed")
		return nil
	case <-time.After(app.shutdownTimeout()):
		log.Warn(map[string]any{"timeout": app.shutdownTimeout()}, "Shutdown timeout exceeded")
		return errors.New("shutdown timeout")
	}
}
