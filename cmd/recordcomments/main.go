package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/marcelofinamorvieira/record-comments/internal/comment/bridge"
	commenthttp "github.com/marcelofinamorvieira/record-comments/internal/comment/handler/http"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/service"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/storage"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/storage/inmemory"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/storage/postgres"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/storage/rediscache"
	"github.com/marcelofinamorvieira/record-comments/internal/config"
	"github.com/marcelofinamorvieira/record-comments/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, cleanup, err := openRepository(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer cleanup()

	b := bridge.New(repo, cfg.ModelEditURL, log)
	svc := service.New(b, log)
	h := commenthttp.New(svc, []byte(cfg.JWTSecret), log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}

// openRepository picks Postgres when DATABASE_URL is set and the in-memory
// host otherwise, and puts the Redis cache in front when REDIS_URL is set.
func openRepository(ctx context.Context, cfg config.Config, log zerolog.Logger) (storage.Repository, func(), error) {
	var repo storage.Repository
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = db.Close() })

		pg := postgres.New(db)
		if err := pg.Migrate(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
		repo = pg
		log.Info().Msg("using postgres storage")
	} else {
		mem := inmemory.New()
		if cfg.SeedFile != "" {
			f, err := os.Open(cfg.SeedFile)
			if err != nil {
				return nil, nil, fmt.Errorf("open seed: %w", err)
			}
			err = mem.LoadSeed(f)
			_ = f.Close()
			if err != nil {
				return nil, nil, err
			}
		}
		repo = mem
		log.Warn().Msg("DATABASE_URL not set, using in-memory storage")
	}

	if cfg.RedisURL != "" {
		rdb, err := rediscache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		repo = rediscache.New(repo, rdb, cfg.CacheTTL, log)
		log.Info().Dur("ttl", cfg.CacheTTL).Msg("using redis cache")
	}

	return repo, cleanup, nil
}
