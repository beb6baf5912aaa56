package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/internal/handlers"
	"storefront/internal/idempotency"
	"storefront/internal/logging"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/rabbitmq"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logging.New("storefront", cfg.LogLevel, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server gracefully stopped")
}

// run serves HTTP until ctx is cancelled, then shuts everything down.
func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	srv, err := newServer(ctx, cfg, log, os.Stdout)
	if err != nil {
		return err
	}
	defer srv.close()

	listenErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.AppPort)
		listenErr <- srv.app.Listen(cfg.AppPort)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	if err := srv.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	return nil
}

// server is the HTTP app plus every resource it holds open.
type server struct {
	app     *fiber.App
	closers []func() error
	log     *slog.Logger
}

func (s *server) close() {
	// Close in reverse order of acquisition.
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.Warn("failed to release resource", "error", err)
		}
	}
}

// newServer wires the database, brokers and services into the Fiber app. accessLog
// receives the per-request log lines; nil disables them.
func newServer(ctx context.Context, cfg config.Config, log *slog.Logger, accessLog io.Writer) (_ *server, err error) {
	srv := &server{log: log}
	defer func() {
		if err != nil {
			srv.close()
		}
	}()

	db, err := repositories.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database handle: %w", err)
	}
	srv.closers = append(srv.closers, sqlDB.Close)
	if err := repositories.Migrate(db); err != nil {
		return nil, err
	}

	tx := repositories.NewGORMTransactor(db)
	userRepo := repositories.NewGORMUserRepository(db)
	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)

	authService := services.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTTTL, logging.Component(log, "auth"))
	if err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return nil, fmt.Errorf("failed to bootstrap admin user: %w", err)
	}

	health := map[string]string{"database": cfg.DBDriver, "events": cfg.EventsBackend, "idempotency": "disabled"}
	var opts []services.OrderServiceOption

	publisher, err := srv.startEvents(ctx, cfg, logging.Component(log, "events"))
	if err != nil {
		return nil, err
	}
	if publisher != nil {
		opts = append(opts, services.WithPublisher(publisher))
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		srv.closers = append(srv.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		opts = append(opts, services.WithIdempotencyStore(idempotency.NewRedisStore(rdb, cfg.IdempotencyTTL)))
		health["idempotency"] = "redis"
	}

	srv.app = handlers.NewApp(handlers.Deps{
		Auth:      authService,
		Products:  services.NewProductService(productRepo, tx),
		Orders:    services.NewOrderService(orderRepo, productRepo, tx, logging.Component(log, "orders"), opts...),
		Users:     services.NewUserService(userRepo, logging.Component(log, "users")),
		Log:       logging.Component(log, "http"),
		AccessLog: accessLog,
		Health:    health,
	})
	return srv, nil
}

// startEvents connects the configured broker. With EVENTS_CONSUME set it also starts a
// consumer that logs every order event.
func (s *server) startEvents(ctx context.Context, cfg config.Config, log *slog.Logger) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case config.EventsRabbitMQ:
		client, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Exchange: cfg.RabbitMQExchange}, log)
		if err != nil {
			return nil, err
		}
		publisher := events.NewRabbitPublisher(client)
		s.closers = append(s.closers, publisher.Close)
		if cfg.EventsConsume {
			if err := events.ConsumeRabbit(ctx, client, events.LogHandler(log)); err != nil {
				return nil, err
			}
			log.Info("consuming order events", "backend", cfg.EventsBackend)
		}
		return publisher, nil

	case config.EventsKafka:
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		s.closers = append(s.closers, publisher.Close)
		if cfg.EventsConsume {
			consumer := events.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "storefront-events", log)
			s.closers = append(s.closers, consumer.Close)
			go func() {
				if err := consumer.Consume(ctx, events.LogHandler(log)); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("kafka consumer stopped", "error", err)
				}
			}()
			log.Info("consuming order events", "backend", cfg.EventsBackend)
		}
		return publisher, nil

	default:
		return nil, nil
	}
}
