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

	"github.com/redis/go-redis/v9"
	"github.com/sapliy/reminder-engine/internal/config"
	"github.com/sapliy/reminder-engine/internal/lifecycle"
	"github.com/sapliy/reminder-engine/internal/notification"
	"github.com/sapliy/reminder-engine/internal/preferences"
	"github.com/sapliy/reminder-engine/internal/reminder"
	"github.com/sapliy/reminder-engine/pkg/database"
	"github.com/sapliy/reminder-engine/pkg/messaging"
	"github.com/sapliy/reminder-engine/pkg/observability"
	"github.com/sapliy/reminder-engine/pkg/secrets"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "reminder-engine"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reminder engine with its HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := observability.NewLoggerWithLevel(serviceName, cfg.Log.Level)

	if cfg.Secrets.AWSSecretID != "" {
		loader, err := secrets.NewAWSLoader(ctx, cfg.Secrets.AWSRegion)
		if err != nil {
			return err
		}
		bundle, err := loader.Load(ctx, cfg.Secrets.AWSSecretID)
		if err != nil {
			return err
		}
		bundle.Overlay(&cfg.Preferences.JWTSecret, &cfg.Email.ResendAPIKey, &cfg.Postgres.DSN, &cfg.Redis.Password)
		logger.Info("Loaded secrets from AWS Secrets Manager", "secret_id", cfg.Secrets.AWSSecretID)
	}

	shutdownTracer, err := observability.InitTracer(ctx, observability.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Endpoint:       cfg.Otel.Endpoint,
		Environment:    cfg.Otel.Environment,
		SampleRatio:    cfg.Otel.SampleRatio,
	})
	if err != nil {
		logger.Warn("Failed to init tracer", "error", err)
	} else {
		defer shutdownTracer(context.Background())
	}

	var (
		pendingStore notification.PendingStore = notification.NewMemoryPendingStore()
		adHocIDs     reminder.AdHocIDs         = reminder.NewSequenceIDs()
		rdb          *redis.Client
	)
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		pendingStore = notification.NewRedisPendingStore(rdb, "")
		adHocIDs = reminder.NewRedisAdHocIDs(rdb, "")
		logger.Info("Using Redis for pending notifications", "addr", cfg.Redis.Addr)
	}

	var (
		facilityOpts = []notification.LocalOption{
			notification.WithPermission(
				notification.PermissionStatus(cfg.Platform.Permission),
				notification.PermissionStatus(cfg.Platform.OnRequest),
			),
		}
		deliveries DeliveryLog
	)
	if cfg.Postgres.DSN != "" {
		db, err := database.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.Migrate(db); err != nil {
			return err
		}
		repo := notification.NewRepository(db)
		facilityOpts = append(facilityOpts, notification.WithDeliveryRecorder(repo))
		deliveries = repo
		logger.Info("Delivery log enabled")
	}

	drivers := notification.NewDriverRegistry()
	drivers.Register(notification.NewLogDriver(logger))
	if cfg.Email.ResendAPIKey != "" && cfg.Email.To != "" {
		mailer := notification.NewEmailService(cfg.Email.ResendAPIKey, cfg.Email.From)
		drivers.Register(notification.NewEmailDriver(mailer, cfg.Email.To))
		logger.Info("Email delivery enabled", "to", cfg.Email.To)
	}

	listeners := notification.NewListeners(logger)
	defer listeners.Close()

	facility := notification.NewLocalFacility(pendingStore, drivers, listeners, logger, facilityOpts...)
	if err := facility.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore pending notifications: %w", err)
	}

	gate := notification.NewPermissionGate(notification.StaticPlatform(cfg.Platform.Native), facility, logger)
	dispatcher := notification.NewDispatcher(facility, gate, adHocIDs, logger)

	prefsClient := preferences.NewClient(
		preferences.WithBaseURL(cfg.Preferences.BaseURL),
		preferences.WithCredentials(cfg.Preferences.JWTSecret, cfg.Preferences.UserID),
	)
	store := preferences.NewStore(prefsClient)

	var controllerOpts []lifecycle.Option
	healthChecks := make(map[string]func() bool)
	if cfg.RabbitMQ.URL != "" {
		rabbit, err := messaging.NewRabbitMQClient(messaging.DefaultConfig(cfg.RabbitMQ.URL), logger)
		if err != nil {
			return err
		}
		defer rabbit.Close()
		healthChecks["rabbitmq"] = rabbit.IsHealthy

		if _, err := rabbit.DeclareQueue(cfg.RabbitMQ.EventsQueue); err != nil {
			return fmt.Errorf("failed to declare events queue: %w", err)
		}
		if _, err := rabbit.DeclareQueueWithDLQ(cfg.RabbitMQ.AdHocQueue); err != nil {
			return fmt.Errorf("failed to declare ad-hoc queue: %w", err)
		}

		publisher := notification.NewEventPublisher(rabbit, cfg.RabbitMQ.EventsQueue)
		controllerOpts = append(controllerOpts, lifecycle.WithEventSink(publisher))
		forwardEvents(listeners, publisher, logger)

		worker := notification.NewWorker(dispatcher, rdb, logger)
		go func() {
			if err := rabbit.ConsumeWithContext(ctx, cfg.RabbitMQ.AdHocQueue, worker.ProcessTask); err != nil {
				logger.Error("Ad-hoc consumer stopped", "error", err)
			}
		}()
		logger.Info("RabbitMQ enabled", "events_queue", cfg.RabbitMQ.EventsQueue, "adhoc_queue", cfg.RabbitMQ.AdHocQueue)
	}

	controller := lifecycle.NewController(gate, store, dispatcher, logger, controllerOpts...)

	go func() {
		if err := facility.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Notification facility stopped", "error", err)
		}
	}()
	go controller.Mount(ctx)

	if len(cfg.Kafka.Brokers) > 0 {
		kc := messaging.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, logger)
		defer kc.Close()
		updates := preferences.NewUpdateConsumer(kc, store, cfg.Preferences.UserID, controller.PreferencesChanged, logger)
		go updates.Run(ctx)
		logger.Info("Listening for preference updates", "topic", cfg.Kafka.Topic)
	}

	server := NewServer(controller, store, dispatcher, facility, deliveries, listeners, logger)
	for name, check := range healthChecks {
		server.AddHealthCheck(name, check)
	}
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           otelhttp.NewHandler(server.Routes(), serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Reminder engine starting", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	}
	logger.Info("Shutting down reminder engine...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	logger.Info("Reminder engine stopped")
	return nil
}

// forwardEvents mirrors facility events onto the broker.
func forwardEvents(listeners *notification.Listeners, publisher *notification.EventPublisher, logger *observability.Logger) {
	listeners.OnReceived(func(ctx context.Context, data notification.ReceivedData) {
		if err := publisher.Publish(ctx, notification.EventReceived, data); err != nil {
			logger.Warn("Failed to publish received event", "id", data.Notification.ID, "error", err)
		}
	})
	listeners.OnAction(func(ctx context.Context, data notification.ActionData) {
		if err := publisher.Publish(ctx, notification.EventActionPerformed, data); err != nil {
			logger.Warn("Failed to publish action event", "id", data.NotificationID, "error", err)
		}
	})
}
