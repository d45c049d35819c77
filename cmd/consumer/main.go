package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/streadway/amqp"

	"github.com/hockeypickup/comms/internal/config"
	"github.com/hockeypickup/comms/internal/consumer"
	"github.com/hockeypickup/comms/internal/repository"
	"github.com/hockeypickup/comms/internal/routes"
	"github.com/hockeypickup/comms/internal/services"
	"github.com/hockeypickup/comms/pkg/logger"
	"github.com/hockeypickup/comms/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logr := logger.New(cfg.LogLevel, cfg.LogFormat)
	logr.Info("starting comms service",
		slog.String("app", cfg.AppName),
		slog.String("environment", cfg.Environment))

	var cache *repository.RedisRepository
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		cache = repository.NewRedisRepository(rdb, cfg.SuppressionTTL)
		defer rdb.Close()
	}

	metricsCollector := metrics.New()

	provider := services.NewSendGridProvider(cfg.SendGridAPIKey, cfg.SendGridFromAddress, cfg.SendGridEndpoint, cfg.ProviderTimeout, logr)
	emailService := services.NewEmailService(provider, logr)
	chatNotifier := services.NewSlackNotifier(cfg.SlackWebhookURL, cfg.ProviderTimeout, logr)
	commsHandler := services.NewCommsHandler(emailService, cache, metricsCollector, logr, cfg.AlertEmail)
	processor := services.NewCommsProcessor(commsHandler, chatNotifier, metricsCollector, logr, cfg.IsProduction(), cfg.AlertEmail)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logr.Error("failed to connect rabbitmq", slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Close()

	base := consumer.NewBaseConsumer(
		conn,
		cfg.CommsQueue,
		cfg.DeadLetterQueue,
		cfg.PrefetchCount,
		cfg.WorkerCount,
		logr,
	)
	commsConsumer := consumer.NewCommsConsumer(base, processor, commsHandler, logr, cfg.MaxDeliveries)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	httpSrv := startHTTPServer(cfg.HTTPPort, metricsCollector, logr, started)

	if err := commsConsumer.Start(ctx); err != nil {
		logr.Error("comms consumer exited", slog.Any("error", err))
	}

	shutdownHTTP(httpSrv, logr)
	logr.Info("comms service stopped")
}

func startHTTPServer(port string, metricsCollector *metrics.Metrics, logr *slog.Logger, started time.Time) *http.Server {
	if port == "" {
		port = "8083"
	}
	handler := routes.NewRouter(metricsCollector, started)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Error("http server error", slog.Any("error", err))
		}
	}()
	return srv
}

func shutdownHTTP(srv *http.Server, logr *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("failed to shutdown http server", slog.Any("error", err))
	}
}
