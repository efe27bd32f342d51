// Command warden runs the identity core: token validation fronting an
// upstream authority, signing key lifecycle management and JWKS
// publication.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/wardenauth/warden/internal/application/hooks"
	"github.com/wardenauth/warden/internal/application/service"
	"github.com/wardenauth/warden/internal/config"
	"github.com/wardenauth/warden/internal/domain/repository"
	"github.com/wardenauth/warden/internal/infrastructure/authority"
	"github.com/wardenauth/warden/internal/infrastructure/cache"
	"github.com/wardenauth/warden/internal/infrastructure/crypto"
	"github.com/wardenauth/warden/internal/infrastructure/monitoring"
	"github.com/wardenauth/warden/internal/infrastructure/persistence/fs"
	"github.com/wardenauth/warden/internal/infrastructure/persistence/gormstore"
	redisstore "github.com/wardenauth/warden/internal/infrastructure/persistence/redis"
	"github.com/wardenauth/warden/internal/interfaces/http/handlers"
	"github.com/wardenauth/warden/internal/interfaces/http/router"
	"github.com/wardenauth/warden/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "warden:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := monitoring.NewLogger(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	tracer, err := monitoring.NewTracer(cfg.Tracing, log)
	if err != nil {
		return err
	}
	defer tracer.Shutdown(context.Background())

	store, cleanup, err := openKeyStore(ctx, cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	keys := crypto.NewKeyManager(cfg.Keys, cfg.Profile, store, log, metrics)
	if err := keys.Initialize(ctx); err != nil {
		return err
	}
	defer keys.Close()
	keys.StartRotationSchedule(ctx)

	var sink hooks.EventSink
	if cfg.Kafka.Enabled {
		kafkaSink := hooks.NewKafkaSink(cfg.Kafka, log)
		defer kafkaSink.Close()
		sink = kafkaSink
	}
	hookManager := hooks.NewManager(log, metrics, sink)

	var tokenCache service.TokenCache
	if cfg.Cache.Enabled {
		tokenCache = cache.NewTokenCache(cfg.Cache.Capacity, cfg.Cache.TTL, metrics)
	}

	authorityClient := authority.NewClient(cfg.Authority, log, metrics)
	auth := service.NewAuthService(authorityClient, tokenCache, hookManager, log)

	srv := router.New(cfg, log, auth, router.Handlers{
		Auth:   handlers.NewAuthHandler(auth),
		JWKS:   handlers.NewJWKSHandler(keys),
		Keys:   handlers.NewKeysHandler(keys),
		Health: handlers.NewHealthHandler(keys),
	}, tracer, metrics)

	// Log config file changes; a restart picks them up.
	if err := config.Watch(configPath, func(_ *config.Config) {
		log.Info(ctx, "configuration file changed, restart to apply")
	}); err != nil {
		log.Warn(ctx, "config watch unavailable", logger.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info(ctx, "warden started",
		logger.String("profile", cfg.Profile),
		logger.String("addr", cfg.Server.Addr()),
		logger.String("key_store", cfg.Keys.Store))

	return g.Wait()
}

func openKeyStore(ctx context.Context, cfg *config.Config) (repository.KeyStore, func(), error) {
	switch cfg.Keys.Store {
	case "fs":
		store, err := fs.NewKeyStore(cfg.Keys.Dir)
		return store, nil, err
	case "gorm":
		store, err := gormstore.Open(cfg.Database)
		return store, nil, err
	case "redis":
		store, err := redisstore.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown key store %q", cfg.Keys.Store)
	}
}
