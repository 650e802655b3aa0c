package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/atelier-dev/atelier/internal/config"
	"github.com/atelier-dev/atelier/internal/printer"
	"github.com/atelier-dev/atelier/pkg/workspace"
)

var (
	watchConfigPath   string
	watchOutputFormat string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor real-time task activity",
	Long: `Monitor task lifecycle events across all workspaces of an instance.

Streams queued, started, completed and failed events as the scheduler
produces them, until interrupted.

Output Formats:
  default - Human-readable colored output
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch with the default config
  atelier watch

  # Export events as JSON
  atelier watch --output=json > events.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchConfigPath, "config", "c", "atelier.yml", "Path to configuration file")
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchOutputFormat != "default" && watchOutputFormat != "json" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(watchConfigPath)
	if err != nil {
		return printer.Error(
			"invalid configuration",
			fmt.Sprintf("Could not load %s: %v", watchConfigPath, err),
			[]string{"Check the file exists and its version field is \"1.0\""},
		)
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	store, err := workspace.NewClient(redisOpts, cfg.InstanceName)
	if err != nil {
		return fmt.Errorf("failed to create workspace client: %w", err)
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		return printer.Error(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s: %v", cfg.Redis.URL, err),
			[]string{"Check Redis is running, or set REDIS_URL to the right address"},
		)
	}

	sub, err := store.SubscribeTaskEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to task events: %w", err)
	}
	defer sub.Close()

	printer.Info("Watching task events for instance '%s' (Ctrl+C to stop)\n", cfg.InstanceName)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			return fmt.Errorf("subscription error: %w", err)

		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if watchOutputFormat == "json" {
				line, err := json.Marshal(event)
				if err != nil {
					continue
				}
				fmt.Fprintln(os.Stdout, string(line))
				continue
			}
			printer.TaskEvent(event)
		}
	}
}
