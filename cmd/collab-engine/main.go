// cmd/collab-engine/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/naalis/influfinder/internal/common/config"
	"github.com/naalis/influfinder/internal/common/database"
	"github.com/naalis/influfinder/internal/common/logger"
	"github.com/naalis/influfinder/internal/engine"
	"github.com/naalis/influfinder/internal/notify"
	"github.com/naalis/influfinder/internal/scoring"
	"github.com/naalis/influfinder/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := logger.NewZapAdapter(zapLogger)

	zapLogger.Info("starting collaboration lifecycle engine",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := connectPostgres(ctx, cfg.Database.Postgres, log)
	if err != nil {
		zapLogger.Fatal("postgres unavailable", zap.Error(err))
	}
	defer pg.Close()

	rds, err := connectRedis(ctx, cfg.Database.Redis, log)
	if err != nil {
		// The tier cache is optional; the store falls back to Postgres.
		log.Warn("redis unavailable, tier cache disabled", map[string]interface{}{"error": err})
		rds = nil
	} else {
		defer rds.Close()
	}

	notifier, err := notify.NewAWSNotifier(ctx, cfg.Notifications, pg.DB, log)
	if err != nil {
		zapLogger.Fatal("notifier init failed", zap.Error(err))
	}
	defer notifier.Close()

	oracle := scoring.NewHTTPOracle(cfg.Oracle, log)

	apps := store.NewApplicationStore(pg.DB)
	collabs := store.NewCollaborationStore(pg.DB)
	subs := store.NewSubmissionStore(pg.DB)
	offers := store.NewOfferStore(pg.DB)

	var cache *redis.Client
	if rds != nil {
		cache = rds.Client
	}
	tiers := store.NewTierStore(pg.DB, cache, log)

	tierEngine := engine.NewTierEngine(collabs, tiers, notifier, log)
	lifecycle := engine.NewCollaborationEngine(collabs, tierEngine, notifier, log)
	core := &engine.Core{
		Applications:   engine.NewApplicationEngine(apps, offers, notifier, log),
		Collaborations: lifecycle,
		Content:        engine.NewContentEngine(subs, collabs, offers, oracle, lifecycle, notifier, log),
		Tiers:          tierEngine,
	}

	go runScoringSweep(ctx, core.Content, log)

	obsServer := startObservabilityServer(cfg.Observability, log)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info("shutting down", map[string]interface{}{"signal": s.String()})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("observability server shutdown failed", map[string]interface{}{"error": err})
	}
}

const (
	scoreSweepInterval = 30 * time.Second
	scoreSweepBatch    = 50
)

// runScoringSweep periodically scores submissions awaiting AI analysis.
// With the HTTP API out of process, this loop is what moves submissions
// from submitted to under_review.
func runScoringSweep(ctx context.Context, content *engine.ContentEngine, log logger.Logger) {
	ticker := time.NewTicker(scoreSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			scored, err := content.ScoreSweep(ctx, scoreSweepBatch)
			if err != nil {
				log.Warn("scoring sweep failed", map[string]interface{}{"error": err})
				continue
			}
			if scored > 0 {
				log.Info("scoring sweep completed", map[string]interface{}{"scored": scored})
			}
		}
	}
}

// connectPostgres retries the initial connection so the engine survives a
// database that comes up a few seconds after it does.
func connectPostgres(ctx context.Context, cfg config.PostgresConfig, log logger.Logger) (*database.PostgresClient, error) {
	var pg *database.PostgresClient
	err := retryWithBackoff(ctx, 5, 2*time.Second, func() error {
		var err error
		pg, err = database.NewPostgres(cfg)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		return nil
	}, log, "postgres")
	return pg, err
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log logger.Logger) (*database.RedisClient, error) {
	var rds *database.RedisClient
	err := retryWithBackoff(ctx, 3, time.Second, func() error {
		var err error
		rds, err = database.NewRedis(cfg)
		if err != nil {
			return err
		}
		if err := rds.Ping(ctx); err != nil {
			rds.Close()
			return err
		}
		return nil
	}, log, "redis")
	return rds, err
}

func retryWithBackoff(ctx context.Context, attempts int, base time.Duration, fn func() error, log logger.Logger, name string) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		log.Warn("connection attempt failed", map[string]interface{}{
			"target":  name,
			"attempt": i + 1,
			"error":   err,
		})
		select {
		case <-time.After(base * time.Duration(1<<i)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// startObservabilityServer exposes Prometheus metrics and pprof on the
// configured port.
func startObservabilityServer(cfg config.ObservabilityConfig, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: mux,
	}
	go func() {
		log.Info("observability server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("observability server failed", map[string]interface{}{"error": err})
		}
	}()
	return srv
}
