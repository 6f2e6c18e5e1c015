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

	_ "github.com/vncsmyrnk/usersync/docs"
	"github.com/vncsmyrnk/usersync/internal/adapters/broker/rabbitmq"
	"github.com/vncsmyrnk/usersync/internal/adapters/denylist"
	"github.com/vncsmyrnk/usersync/internal/adapters/handler/http"
	"github.com/vncsmyrnk/usersync/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/usersync/internal/adapters/token"
	"github.com/vncsmyrnk/usersync/internal/config"
	"github.com/vncsmyrnk/usersync/internal/core/domain"
	"github.com/vncsmyrnk/usersync/internal/core/ports"
	"github.com/vncsmyrnk/usersync/internal/core/services"
	"github.com/vncsmyrnk/usersync/internal/logger"
)

const handlerTimeout = 30 * time.Second

// @title                       User Sync Product Service API
// @version                     1.0
// @description                 Products owned by users. Consumes user.deleted to remove a deleted user's products.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	if err := run(); err != nil {
		slog.Error("product service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadProduct()
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{Service: "product", Level: cfg.LogLevel, JSON: cfg.Production()})
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

	applied, err := postgres.Migrate(ctx, db, postgres.ServiceProduct)
	if err != nil {
		return err
	}
	for _, name := range applied {
		log.Info("migration applied", "name", name)
	}

	health := map[string]http.HealthCheck{"database": db.PingContext}

	// Logout on the auth service only reaches this service through a shared
	// denylist.
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
		Queue:              cfg.RabbitMQ.Queue,
		Prefetch:           cfg.RabbitMQ.Prefetch,
		MaxDeliveries:      cfg.RabbitMQ.MaxDeliveries,
		QueueType:          cfg.RabbitMQ.QueueType,
		DeadLetterExchange: cfg.RabbitMQ.DeadLetterExchange,
		ConnectTimeout:     cfg.RabbitMQ.ConnectTimeout.Std(),
		HandlerTimeout:     handlerTimeout,
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

	products := postgres.NewProductRepository(db)
	reactor := services.NewConsistencyReactor(products, logger.WithComponent(log, "reactor"))
	if err := broker.Subscribe(ctx, string(domain.EventUserDeleted), reactor.Handle); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	verifier := services.NewTokenVerifier(token.NewCodec(token.WithIssuer(cfg.JWTIssuer)), revoked, []byte(cfg.AccessSecret))
	router := http.NewProductRouter(http.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         log,
		Health:         health,
		DocsInstance:   "product",
	}, http.NewProductHandler(services.NewProductService(products), log), verifier)

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
