// Command api serves the Op Way auth and users REST backend.
//
// @title                      Op Way API
// @version                    1.0
// @description                Authentication and user management backend for the Op Way storefront.
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/opway/opway/internal/api"
	"github.com/opway/opway/internal/core/service"
	mongostore "github.com/opway/opway/internal/infrastructure/db/mongo"
	redisstore "github.com/opway/opway/internal/infrastructure/db/redis"
	infrahttp "github.com/opway/opway/internal/infrastructure/http"
	"github.com/opway/opway/internal/infrastructure/queue"
	"github.com/opway/opway/internal/pkg/config"
	"github.com/opway/opway/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: !cfg.IsProduction()})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoClient, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("connect mongodb")
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()

	rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	defer func() { _ = rdb.Close() }()

	users := mongostore.NewUserRepository(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensure user indexes")
	}
	revocations := redisstore.NewRevocationStore(rdb)

	auditCtx, stopAudit := context.WithCancel(context.Background())
	audit := queue.NewDispatcher(cfg.AuditWorkers, mongostore.NewAuditRepository(db), logger.Component("audit"))
	audit.Start(auditCtx)

	authService := service.NewAuthService(users, revocations, audit, service.AuthConfig{
		JWTSecret:           cfg.JWTSecret,
		TokenTTL:            cfg.TokenTTL,
		BootstrapAdminEmail: cfg.BootstrapAdminEmail,
	}, logger.Component("auth"))
	userService := service.NewUserService(users, audit, logger.Component("users"))

	e := api.NewRouter(api.Dependencies{
		AuthService: authService,
		UserService: userService,
		Revoker:     revocations,
		JWTSecret:   cfg.JWTSecret,
		Logger:      logger.Component("http"),
	})
	infrahttp.RegisterProbes(e, db, rdb)

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("api listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	// Handlers are done; let the audit workers drain what was queued.
	stopAudit()
	audit.Wait()
}
