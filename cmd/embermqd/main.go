// Command embermqd runs the broker: it loads config, wires every
// collaborator package together, and serves MQTT connections until
// terminated.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/embermq/broker/broker"
	"github.com/embermq/broker/config"
	"github.com/embermq/broker/idgen"
	"github.com/embermq/broker/metrics"
	"github.com/embermq/broker/network"
	"github.com/embermq/broker/pkg/logger"
	"github.com/embermq/broker/retained"
	"github.com/embermq/broker/session"
	"github.com/embermq/broker/store"
	"github.com/embermq/broker/topic"
)

func main() {
	configPath := flag.String("config", "embermqd.yaml", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("embermqd: %w", err)
	}

	log := logger.NewSlogLogger(parseLevel(cfg.LogLevel), os.Stdout).Logger()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	backend, err := buildRetainedBackend(cfg)
	if err != nil {
		return fmt.Errorf("embermqd: %w", err)
	}
	defer backend.Close()

	sessions := session.NewManager(session.NewMemoryStore(), session.Config{
		MaxInflightPerSession: cfg.MaxInflightPerSession,
	})
	tree := topic.NewTree()

	b := broker.New(sessions, tree, backend, idgen.New(), log, m, broker.Config{
		AllowAnonymous:      cfg.AllowAnonymous,
		MaxKeepAliveSeconds: uint16(cfg.MaxKeepAliveSeconds),
	})
	defer b.Close()

	pool, err := network.NewPool(network.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("embermqd: connection pool: %w", err)
	}

	listeners, err := buildListeners(cfg, pool, b)
	if err != nil {
		return fmt.Errorf("embermqd: %w", err)
	}

	recovery, err := network.NewRecovery(network.DefaultRecoveryConfig())
	if err != nil {
		return fmt.Errorf("embermqd: %w", err)
	}
	for _, l := range listeners {
		if err := recovery.Retry(context.Background(), l.Start); err != nil {
			return fmt.Errorf("embermqd: starting listener: %w", err)
		}
		defer l.Close()
	}

	var metricsServer *http.Server
	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.MetricsAddress, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "err", err)
			}
		}()
	}

	log.Info("embermqd started", "plain", cfg.ListenPlain.Address, "tls", cfg.ListenTLS.Address)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("embermqd shutting down")
	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(ctx)
	}
	return nil
}

func buildRetainedBackend(cfg *config.Config) (retained.Backend, error) {
	switch cfg.RetainedBackend {
	case "pebble":
		return retained.NewPebbleBackend(cfg.Pebble.Path)
	case "redis":
		return retained.NewRedisBackend(store.RedisStoreConfig{Addr: cfg.Redis.Address})
	default:
		return retained.NewMemoryBackend(), nil
	}
}

func buildListeners(cfg *config.Config, pool *network.Pool, b *broker.Broker) ([]*network.Listener, error) {
	var listeners []*network.Listener

	if cfg.ListenPlain.Address != "" {
		l, err := network.NewListener(network.DefaultListenerConfig(cfg.ListenPlain.Address), pool)
		if err != nil {
			return nil, fmt.Errorf("plain listener: %w", err)
		}
		l.OnConnection(b.HandleConnection)
		listeners = append(listeners, l)
	}

	if cfg.ListenTLS.Address != "" {
		tc := network.DefaultTLSConfig()
		tc.CertFile = cfg.ListenTLS.CertFile
		tc.KeyFile = cfg.ListenTLS.KeyFile
		tlsCfg, err := tc.Build()
		if err != nil {
			return nil, fmt.Errorf("tls listener: %w", err)
		}
		lc := network.DefaultListenerConfig(cfg.ListenTLS.Address)
		lc.TLSConfig = tlsCfg
		l, err := network.NewListener(lc, pool)
		if err != nil {
			return nil, fmt.Errorf("tls listener: %w", err)
		}
		l.OnConnection(b.HandleConnection)
		listeners = append(listeners, l)
	}

	if len(listeners) == 0 {
		return nil, errors.New("no listener configured")
	}
	return listeners, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
