package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/example/shelter-matching/internal/config"
	"github.com/example/shelter-matching/internal/dispatch"
	httpapi "github.com/example/shelter-matching/internal/http"
	"github.com/example/shelter-matching/internal/ingest"
	"github.com/example/shelter-matching/internal/intake"
	"github.com/example/shelter-matching/internal/logging"
	"github.com/example/shelter-matching/internal/matcher"
	"github.com/example/shelter-matching/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger("shelter-api", cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		shelters storage.ShelterStore
		profiles storage.ProfileStore
		checks   []func(context.Context) error
	)
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer ps.Close()
		if cfg.RunMigrations {
			applied, err := ps.Migrate(ctx)
			if err != nil {
				logger.Error("migration failed", "error", err)
				os.Exit(1)
			}
			logger.Info("migrations applied", "files", applied)
		}
		shelters, profiles = ps, ps
		checks = append(checks, ps.Ping)
	} else {
		logger.Warn("PG_DSN not set, using in-memory store")
		mem := storage.NewMemoryStore()
		shelters, profiles = mem, mem
	}

	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rc.Close()
		shelters = storage.NewRedisCache(shelters, rc, cfg.ShelterCacheTTL, logger)
		checks = append(checks, func(ctx context.Context) error { return rc.Ping(ctx).Err() })
	}

	mc := cfg.MatcherConfig()
	mc.Logger = logger
	m, err := matcher.New(mc)
	if err != nil {
		logger.Error("invalid matcher configuration", "error", err)
		os.Exit(1)
	}

	svc := &intake.Service{Shelters: shelters, Profiles: profiles, Matcher: m, Logger: logger, NotifyTop: 3}
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		svc.Events = kp
	}

	wsreg := dispatch.NewWSRegistry()
	notifiers := dispatch.Fanout{wsreg}
	if cfg.NotifyWebhookURL != "" {
		notifiers = append(notifiers, dispatch.NewWebhookNotifier(cfg.NotifyWebhookURL))
	}
	svc.Notifier = notifiers

	api := httpapi.NewServer(svc, wsreg, logger)
	api.Ready = func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown incomplete", "error", err)
		}
	}()

	logger.Info("shelter-matching listening", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-stopped
	// in-flight requests are done; let their events and notices go out before
	// the kafka writer closes
	svc.Drain()
}
