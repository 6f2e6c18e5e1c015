package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	_ "github.com/vncsmyrnk/usersync/docs"
	"github.com/vncsmyrnk/usersync/internal/adapters/broker/rabbitmq"
	"github.com/vncsmyrnk/usersync/internal/adapters/denylist"
	"github.com/vncsmyrnk/usersync/internal/adapters/handler/http"
	"github.com/vncsmyrnk/usersync/internal/adapters/password"
	"github.com/vncsmyrnk/usersync/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/usersync/internal/adapters/token"
	"github.com/vncsmyrnk/usersync/internal/config"
	"github.com/vncsmyrnk/usersync/internal/core/ports"
	"github.com/vncsmyrnk/usersync/internal/core/services"
	"github.com/vncsmyrnk/usersync/internal/logger"
)

// @title                       User Sync Auth Service API
// @version                     1.0
// @description                 Users, login and token lifecycle. Publishes user lifecycle events.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	if err := run(); err != nil {
		slog.Error("auth service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadAuth()
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{Service: "auth", Level: cfg.LogLevel, JSON: cfg.Production()})
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	applied, err := postgres.Migrate(ctx, db, postgres.ServiceAuth)
	if err != nil {
		return err
	}
	for _, name := range applied {
		log.Info("migration applied", "name", name)
	}

	health := map[string]http.HealthCheck{"database": db.PingContext}

	var revoked ports.TokenDenylist
	if cfg.RedisURL != "" {
		rdb, err := denylist.NewRedisDenylistWithURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		revoked = rdb
		health["redis"] = rdb.Ping
	}

	broker := rabbitmq.NewBroker(rabbitmq.Config{
		URL:                cfg.RabbitMQ.URL,
		Exchange:           cfg.RabbitMQ.Exchange,
		Prefetch:           cfg.RabbitMQ.Prefetch,
		MaxDeliveries:      cfg.RabbitMQ.MaxDeliveries,
		QueueType:          cfg.RabbitMQ.QueueType,
		DeadLetterExchange: cfg.RabbitMQ.DeadLetterExchange,
		ConnectTimeout:     cfg.RabbitMQ.ConnectTimeout.Std(),
	}, logger.WithComponent(log, "broker"))
	if err := broker.ConnectWithRetry(ctx, cfg.RabbitMQ.ConnectRetry.Std()); err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	health["broker"] = func(context.Context) error {
		if !broker.Connected() {
			return errors.New("not connected")
		}
		return nil
	}

	users := postgres.NewUserRepository(db)
	hasher := password.NewBcryptHasher(cfg.BcryptCost)
	codec := token.NewCodec(token.WithIssuer(cfg.JWTIssuer))

	authService := services.NewAuthService(services.NewCredentialStore(users, hasher), codec, revoked, services.TokenSettings{
		AccessSecret:  []byte(cfg.AccessSecret),
		RefreshSecret: []byte(cfg.RefreshSecret),
		AccessTTL:     cfg.AccessTTL.Std(),
		RefreshTTL:    cfg.RefreshTTL.Std(),
	})
	userService := services.NewUserService(users, hasher, broker, logger.WithComponent(log, "users"))

	limiter := http.NewRateLimiter(rate.Limit(cfg.AuthRateLimit), cfg.AuthRateBurst)
	router := http.NewAuthRouter(http.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         log,
		Health:         health,
		DocsInstance:   "auth",
		RateLimiter:    limiter,
	}, http.NewAuthHandler(authService, log), http.NewUserHandler(userService, log), authService)

	server := &stdhttp.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		limiter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		select {
		case err := <-broker.Errors():
			return fmt.Errorf("rabbitmq connection lost: %w", err)
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("gracefully shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown", "error", err)
		}
		if err := broker.Disconnect(shutdownCtx); err != nil {
			log.Error("rabbitmq disconnect", "error", err)
		}
		return nil
	})

	return g.Wait()
}
