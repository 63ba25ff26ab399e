package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/triagedesk/internal/api"
	"github.com/triagedesk/internal/callstore"
	"github.com/triagedesk/internal/config"
	"github.com/triagedesk/internal/feed"
	"github.com/triagedesk/internal/ingest"
	"github.com/triagedesk/internal/retry"
)

// APICommand returns the CLI command for starting the API server
func APICommand() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Start the TriageDesk API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
		},
		Action: runAPI,
	}
}

func runAPI(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()

	var store *callstore.Store
	err = retry.Do(ctx, retry.DefaultConfig(), "database connect", func() error {
		var connErr error
		store, connErr = callstore.New(ctx, cfg.Database.URL)
		return connErr
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	if err := ingest.Migrate(ctx, store.Pool()); err != nil {
		return fmt.Errorf("failed to run job queue migrations: %w", err)
	}

	queue, err := ingest.NewQueue(store.Pool(), store, cfg.Ingest.MaxWorkers)
	if err != nil {
		return fmt.Errorf("failed to build job queue: %w", err)
	}
	if err := queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := queue.Stop(stopCtx); err != nil {
			log.Error().Err(err).Msg("job queue shutdown failed")
		}
	}()

	f, err := feed.Open(ctx, store, feed.Config{
		Limit:                cfg.Feed.Limit,
		FallbackPollInterval: time.Duration(cfg.Feed.FallbackPollMs) * time.Millisecond,
		SafetyPollInterval:   time.Duration(cfg.Feed.SafetyPollMs) * time.Millisecond,
		HighlightTTL:         time.Duration(cfg.Feed.HighlightTTLMs) * time.Millisecond,
		OnError: func(err error) {
			log.Warn().Err(err).Msg("feed fetch failed")
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open live feed: %w", err)
	}
	defer f.Close()

	server := api.NewServer(api.Config{
		Port:              cfg.Server.Port,
		WebhookSecret:     cfg.Webhook.Secret,
		WebhookRatePerSec: cfg.Webhook.RatePerSec,
		WebhookBurst:      cfg.Webhook.Burst,
	}, f, store, queue)

	fmt.Printf("Starting TriageDesk API server on port %d...\n", cfg.Server.Port)
	return server.Start()
}
