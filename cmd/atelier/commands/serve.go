package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/atelier-dev/atelier/internal/agent"
	"github.com/atelier-dev/atelier/internal/config"
	"github.com/atelier-dev/atelier/internal/hub"
	"github.com/atelier-dev/atelier/internal/printer"
	"github.com/atelier-dev/atelier/internal/scheduler"
	"github.com/atelier-dev/atelier/internal/server"
	"github.com/atelier-dev/atelier/pkg/workspace"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workspace server",
	Long: `Run the Atelier server: the HTTP API, the WebSocket broadcast hub and
the per-workspace task scheduler, all in one process.

Requires a reachable Redis instance and the GEMINI_API_KEY environment
variable. Shuts down cleanly on SIGINT/SIGTERM: the scheduler finishes or
abandons in-flight work first, then the HTTP listener drains.

Examples:
  # Serve with the default config file
  atelier serve

  # Serve with an explicit config
  atelier serve --config deploy/atelier.yml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "atelier.yml", "Path to configuration file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return printer.Error(
			"invalid configuration",
			fmt.Sprintf("Could not load %s: %v", serveConfigPath, err),
			[]string{"Check the file exists and its version field is \"1.0\""},
		)
	}

	apiKey := config.GeminiAPIKey()
	if apiKey == "" {
		return printer.Error(
			"missing API key",
			"The GEMINI_API_KEY environment variable is not set.",
			[]string{"Export it before starting:\n  export GEMINI_API_KEY=<your-key>"},
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

	model := cfg.Agent.Model
	if model == "" {
		model = agent.DefaultModel
	}

	responder, err := agent.NewGeminiResponder(ctx, apiKey, model)
	if err != nil {
		return fmt.Errorf("failed to create agent responder: %w", err)
	}

	h := hub.New()

	sched := scheduler.New(store, responder, func(workspaceID string, event workspace.Event) {
		h.Publish(workspaceID, event)
	}, scheduler.Options{
		ResponderTimeout: time.Duration(cfg.Agent.TimeoutSeconds) * time.Second,
	})

	srv := server.New(store, sched, h, cfg.Server.Listen)

	printer.Success("Atelier instance '%s' serving on %s\n", cfg.InstanceName, cfg.Server.Listen)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-gctx.Done()

		// Scheduler first so no new lifecycle events race the listener drain.
		sched.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	printer.Info("Shutdown complete\n")
	return nil
}
