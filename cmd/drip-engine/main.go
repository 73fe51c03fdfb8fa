package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/driphq/drip/pkg/cmd"
	"github.com/driphq/drip/pkg/delivery"
	"github.com/driphq/drip/pkg/engine"
	"github.com/driphq/drip/pkg/eventbus"
	"github.com/driphq/drip/pkg/log"
	"github.com/driphq/drip/pkg/otelhelper"
	"github.com/driphq/drip/pkg/profile"
	"github.com/driphq/drip/pkg/sources/queue"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	command := &cli.Command{
		Name:                  "drip-engine",
		EnableShellCompletion: true,
		Usage:                 "Run the marketing automation engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL (postgres:// or file://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the queue trigger source and profile store",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "queue",
				Usage:   "Redis list name to consume inbound events from",
				Value:   queue.DefaultQueue,
				Sources: cli.EnvVars("EVENT_QUEUE"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("drip-engine")
	logger.InfoContext(ctx, "Initializing automation engine")

	persist, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persist.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), "drip-engine", logger)
	if err != nil {
		return err
	}

	defer func() {
		err := eventBus.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	err = eventbus.RegisterLoggingHandlers(eventBus, logger)
	if err != nil {
		return err
	}

	err = eventBus.Subscribe(ctx)
	if err != nil {
		return err
	}

	var tracer trace.Tracer

	if command.Bool("tracing") {
		tracer, err = otelhelper.NewTracer(ctx, "drip-engine")
		if err != nil {
			return err
		}
	}

	profiles, err := newProfileStore(ctx, command.String("redis-url"), logger)
	if err != nil {
		return err
	}

	eng := engine.New(engine.Config{}, nil, profiles, persist, eventBus, tracer, logger)
	eng.BindRegistry(cmd.NewRegistry(eng, profiles, cmd.Collaborators{
		Mailer:      delivery.NewLogMailer(logger),
		Notifier:    delivery.NewLogNotifier(logger),
		EventLogger: delivery.NewLogEventLogger(logger),
	}, logger))

	err = eng.Start(ctx)
	if err != nil {
		return err
	}

	defer eng.Stop()

	if redisURL := command.String("redis-url"); redisURL != "" {
		source, err := queue.NewSource(redisURL, command.String("queue"), eng, logger)
		if err != nil {
			return err
		}

		err = source.Start(ctx)
		if err != nil {
			return err
		}

		defer func() {
			err := source.Stop(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to stop queue source", "error", err)
			}
		}()
	}

	waitCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-waitCtx.Done()
	logger.InfoContext(ctx, "Shutdown signal received")

	return nil
}

func newProfileStore(ctx context.Context, redisURL string, logger *slog.Logger) (profile.Store, error) {
	if redisURL == "" {
		logger.InfoContext(ctx, "No Redis URL configured, using in-memory profile store")

		return profile.NewMemoryStore(), nil
	}

	return profile.NewRedisStore(ctx, redisURL, logger)
}
