// Package app boots the backend: storage, secret store, reconciliation
// service, HTTP routes and graceful shutdown.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/syncforge/syncforge/internal/cache"
	"github.com/syncforge/syncforge/internal/config"
	"github.com/syncforge/syncforge/internal/db"
	"github.com/syncforge/syncforge/internal/http/api"
	"github.com/syncforge/syncforge/internal/mapping"
	"github.com/syncforge/syncforge/internal/secretstore"
)

// shutdownTimeout bounds how long in-flight requests may finish after the
// stop signal.
const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.Config) error {
	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the HTTP server and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.Config) error {
	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	log.WithField("dialect", db.DialectName(conn)).Info("database ready")

	secrets, errSecrets := secretstore.New(ctx, cfg.SecretStore, conn)
	if errSecrets != nil {
		return errSecrets
	}

	var tableFetcher mapping.TableFieldFetcher = &servicenowTableFetcher{}
	if cfg.Cache.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
		tableFetcher = cache.NewCachingTableFieldFetcher(tableFetcher, cache.NewRedisFieldCache(redisClient, ttl))
		log.Infof("table schema cache enabled via redis at %s", cfg.Cache.RedisAddr)
	}

	svc := mapping.NewService(conn, secrets, &githubRepoFetcher{baseURL: cfg.GitHub.BaseURL}, tableFetcher)

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	api.RegisterRoutes(engine, api.Deps{
		DB:            conn,
		JWT:           cfg.JWT,
		Secrets:       secrets,
		Mappings:      svc,
		GitHubBaseURL: cfg.GitHub.BaseURL,
	})

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Server.Addr)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return <-errCh
	case errServe := <-errCh:
		return errServe
	}
}
