// Command hub runs the AI tool hub: an HTTP/WebSocket service that
// drives a local LLM through a bounded reasoning loop over built-in and
// federated tools.
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

	"github.com/spf13/cobra"

	"github.com/kunaaa123/ai-mcp-hub/internal/agent"
	"github.com/kunaaa123/ai-mcp-hub/internal/api"
	"github.com/kunaaa123/ai-mcp-hub/internal/auth"
	"github.com/kunaaa123/ai-mcp-hub/internal/config"
	"github.com/kunaaa123/ai-mcp-hub/internal/events"
	"github.com/kunaaa123/ai-mcp-hub/internal/llm"
	"github.com/kunaaa123/ai-mcp-hub/internal/logging"
	"github.com/kunaaa123/ai-mcp-hub/internal/mcp"
	"github.com/kunaaa123/ai-mcp-hub/internal/metrics"
	"github.com/kunaaa123/ai-mcp-hub/internal/session"
	"github.com/kunaaa123/ai-mcp-hub/internal/tools"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "hub",
		Short: "LLM agent runtime with built-in and federated tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "hub.yaml", "path to the configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.Configure(logging.ParseLevel(cfg.Logging.Level), os.Stdout)

	client, err := llm.NewOllamaClient(llm.OllamaConfig{
		BaseURL:       cfg.LLM.BaseURL,
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		ContextLength: cfg.LLM.ContextLength,
		Timeout:       cfg.LLM.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	registry, err := tools.BuildRegistry(cfg)
	if err != nil {
		return err
	}

	manager, err := mcp.NewManager(cfg.MCP.ConfigPath, cfg.MCP.RequestTimeout)
	if err != nil {
		return err
	}

	sessions := session.NewStore()
	bus := events.NewBus()
	store := metrics.NewStore()

	executor := tools.NewExecutor(registry, manager, cfg.Server.ProductionSafeMode)
	executor.SetRecorder(store)

	ag := agent.New(agent.Options{
		LLM:           client,
		Registry:      registry,
		Executor:      executor,
		Federation:    manager,
		Sessions:      sessions,
		Bus:           bus,
		Metrics:       store,
		PromptEnv:     agent.NewPromptEnv(cfg),
		SafeMode:      cfg.Server.ProductionSafeMode,
		MaxIterations: cfg.Agent.MaxIterations,
		HistoryWindow: cfg.Agent.HistoryWindow,
	})
	orch := agent.NewOrchestrator(ag, agent.NewPlanner(client), agent.NewReviewer(client), bus)

	server := api.NewServer(cfg, client, registry, manager, sessions, bus, store, ag, orch, auth.DefaultTokens())

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logging.Info("server listening", "port", cfg.Server.Port, "env", cfg.Server.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// External servers connect after the HTTP server is up; their
	// failures never block startup.
	go func() {
		if errs := manager.ConnectAll(ctx); errs != nil {
			logging.Warn("some tool servers failed to connect", "count", len(errs))
		}
	}()
	if cfg.MCP.WatchConfig {
		if err := manager.Watch(ctx); err != nil {
			logging.Warn("config watch unavailable", "error", err)
		}
	}

	select {
	case <-ctx.Done():
		logging.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn("http shutdown error", "error", err)
	}
	manager.Shutdown()

	logging.Info("shutdown complete")
	return nil
}
