// Wires the store, transport adapters, workers and the HTTP server.
package appServer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ds124wfegd/notification-engine/config"
	"github.com/ds124wfegd/notification-engine/internal/broker"
	repository "github.com/ds124wfegd/notification-engine/internal/database/postgres"
	"github.com/ds124wfegd/notification-engine/internal/pkg/kafka"
	"github.com/ds124wfegd/notification-engine/internal/service"
	"github.com/ds124wfegd/notification-engine/internal/transport"
	"github.com/ds124wfegd/notification-engine/internal/worker"
	"github.com/ds124wfegd/notification-engine/pkg/postgres"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)

	db, err := postgres.NewPostgresDB(&cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	fanout, err := newBroker(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize transport: %v", err)
	}
	defer fanout.Close()

	notificationRepo := repository.NewNotificationRepository(db)
	notificationService := service.NewNotificationService(notificationRepo, fanout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweepInterval := cfg.Engine.ExpirySweepInterval
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	expiryWorker := worker.NewExpiryWorker(notificationRepo, fanout, sweepInterval)
	go expiryWorker.Start(ctx)

	if cfg.Kafka.Enabled {
		ingest := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, notificationService)
		defer ingest.Close()
		go ingest.Start(ctx)
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(notificationService)); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")
	cancel()

	if err := srv.Shutdown(context.Background()); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}

func newBroker(cfg *config.Config) (broker.Broker, error) {
	switch cfg.Transport.Driver {
	case "", "redis":
		client := redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxRetries:   cfg.Redis.MaxRetries,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolTimeout:  cfg.Redis.PoolTimeout,
		})
		return broker.NewRedisBroker(client), nil
	case "rabbit":
		return broker.NewRabbitBroker(broker.RabbitConfig{
			URL:      cfg.Rabbit.URL,
			Host:     cfg.Rabbit.Host,
			Port:     cfg.Rabbit.Port,
			Username: cfg.Rabbit.Username,
			Password: cfg.Rabbit.Password,
		})
	default:
		return nil, fmt.Errorf("unknown transport driver %q", cfg.Transport.Driver)
	}
}
