package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"beacon/internal/broker"
	"beacon/internal/constants"
	"beacon/internal/ingest"
	"beacon/pkg/bootstrap"
	"beacon/pkg/metrics"
)

func publishCmd() *cobra.Command {
	var (
		data       string
		file       string
		generateID bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish one event to the events channel",
		Long:  "Validates a JSON event ({\"event_id\": ..., \"payload\": {...}}) and publishes it. Reads --data, --file or stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readEventBody(cmd, data, file)
			if err != nil {
				return err
			}

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			metrics.RegisterPublisherMetrics()
			ctx := cmd.Context()

			var redisClient *redis.Client
			if cfg.Broker.Type != constants.BrokerKafka {
				redisClient, err = bootstrap.NewDatabaseConnector(cfg, log).InitRedis(ctx)
				if err != nil {
					return fmt.Errorf("failed to connect to redis: %w", err)
				}
				if redisClient != nil {
					defer redisClient.Close()
				}
			}

			b, err := broker.New(cfg.Broker, redisClient, log)
			if err != nil {
				return err
			}
			defer b.Close()

			msg, err := ingest.NewPublisher(b, broker.Channel(cfg.Broker), log).PublishRaw(ctx, body, generateID)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), msg.EventID)
			return nil
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "Event JSON")
	cmd.Flags().StringVar(&file, "file", "", "Path to a file holding the event JSON")
	cmd.Flags().BoolVar(&generateID, "generate-id", false, "Generate an event_id when it is missing")

	return cmd
}

func readEventBody(cmd *cobra.Command, data, file string) ([]byte, error) {
	switch {
	case data != "" && file != "":
		return nil, errors.New("--data and --file are mutually exclusive")
	case data != "":
		return []byte(data), nil
	case file != "":
		return os.ReadFile(file)
	default:
		return io.ReadAll(cmd.InOrStdin())
	}
}
