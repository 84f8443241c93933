package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"fieldlink/internal/accounts"
	"fieldlink/internal/appauth"
	"fieldlink/internal/audit"
	"fieldlink/internal/config"
	"fieldlink/internal/credentials"
	"fieldlink/internal/integration"
	"fieldlink/internal/oauth"
	"fieldlink/pkg/logger"
	"fieldlink/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := appauth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	facade, records, err := buildIntegration(cfg, db, rdb, log)
	if err != nil {
		log.Error("integration init failed", "err", err)
		os.Exit(1)
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		Auth:          authManager,
		Facade:        facade,
		Records:       records,
		WebhookSecret: cfg.Vendor.WebhookSecret,
		DB:            db,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// buildIntegration wires the vendor integration stack: encrypted credential
// storage, single-flight refresh, retrying transport, redis-backed state
// consumption and dedup.
func buildIntegration(cfg config.Config, db *sql.DB, rdb *redis.Client, log *slog.Logger) (*integration.Facade, accounts.RecordStore, error) {
	key, err := cfg.CredentialKeyBytes()
	if err != nil {
		return nil, nil, err
	}
	cipher, err := credentials.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	credStore, err := credentials.NewPostgresStore(db, cfg.Vendor.Provider, cipher)
	if err != nil {
		return nil, nil, err
	}

	doer := oauth.NewRetryingDoer(&http.Client{Timeout: cfg.Vendor.HTTPTimeout})
	oauthClient, err := oauth.NewClient(cfg.Vendor, doer)
	if err != nil {
		return nil, nil, err
	}
	states, err := oauth.NewStateCodec(cfg.State)
	if err != nil {
		return nil, nil, err
	}
	api, err := integration.NewVendorAPI(cfg.Vendor.APIBaseURL, doer)
	if err != nil {
		return nil, nil, err
	}

	acctStore, err := accounts.NewPostgresStore(db)
	if err != nil {
		return nil, nil, err
	}
	records, err := accounts.NewPostgresRecordStore(db)
	if err != nil {
		return nil, nil, err
	}

	auditRepo, err := audit.NewPostgresRepo(db)
	if err != nil {
		return nil, nil, err
	}

	facade, err := integration.NewFacade(integration.Deps{
		Vendor:      cfg.Vendor,
		OAuth:       oauthClient,
		States:      states,
		API:         api,
		Credentials: credStore,
		Refresher:   credentials.NewRefresher(credStore, oauthClient.Refresh),
		Accounts:    acctStore,
		Seen:        accounts.NewRedisSeenIndex(rdb, 0),
		Records:     records,
		ConsumeState: func(ctx context.Context, key string, ttl time.Duration) (bool, error) {
			return utils.ConsumeOnce(ctx, rdb, key, ttl)
		},
		StateTTL: cfg.State.MaxAge,
		Audit:    audit.NewService(auditRepo),
		Logger:   log,
	})
	if err != nil {
		return nil, nil, err
	}
	return facade, records, nil
}
