package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/driphq/drip/pkg/cmd"
	"github.com/driphq/drip/pkg/delivery"
	"github.com/driphq/drip/pkg/engine"
	"github.com/driphq/drip/pkg/log"
	"github.com/driphq/drip/pkg/profile"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "drip-api",
		EnableShellCompletion: true,
		Usage:                 "Create and manage automation rules",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL (postgres:// or file://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the profile store",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
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

	logger := log.WithModule("drip-api")
	logger.InfoContext(ctx, "Initializing Drip API")

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

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), "drip-api", logger)
	if err != nil {
		return err
	}

	defer func() {
		err := eventBus.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	profiles, err := newProfileStore(ctx, command.String("redis-url"), logger)
	if err != nil {
		return err
	}

	eng := engine.New(engine.Config{}, nil, profiles, persist, eventBus, nil, logger)
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

	api := NewAPI(logger, eng, persist)

	return api.Start(ctx, command.Int("port"))
}

func newProfileStore(ctx context.Context, redisURL string, logger *slog.Logger) (profile.Store, error) {
	if redisURL == "" {
		logger.InfoContext(ctx, "No Redis URL configured, using in-memory profile store")

		return profile.NewMemoryStore(), nil
	}

	return profile.NewRedisStore(ctx, redisURL, logger)
}
