// Command memogen is the process entry point: it loads configuration,
// opens the database pool, wires every package's concrete implementation
// together, and runs the queued deep-research worker pool until signalled
// to stop. There is no HTTP surface here — submitting and polling Tasks is
// an external collaborator's job; this process only drains the queue.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/quantmemo/memocore/pkg/agent"
	"github.com/quantmemo/memocore/pkg/config"
	"github.com/quantmemo/memocore/pkg/database"
	"github.com/quantmemo/memocore/pkg/llm"
	"github.com/quantmemo/memocore/pkg/masking"
	"github.com/quantmemo/memocore/pkg/queue"
	"github.com/quantmemo/memocore/pkg/reportstore"
	"github.com/quantmemo/memocore/pkg/research"
	"github.com/quantmemo/memocore/pkg/taskstore"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	podID := flag.String("pod-id", getEnv("POD_ID", "memogen-0"), "identifier this process reports in worker health")
	flag.Parse()

	setupLogging()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	stats := cfg.Stats()
	slog.Info("configuration loaded", "providers", stats.Providers, "workflows", stats.Workflows)

	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()
	slog.Info("connected to database and applied migrations")

	tasks := taskstore.NewPostgresStore(dbClient.Pool)
	reports := reportstore.NewPostgresStore(dbClient.Pool)

	// The Quota Gate (pkg/quota) runs in the external caller that creates
	// Tasks, ahead of this process's queue — this binary only drains
	// already-reserved Tasks, so it never constructs a Gate itself.

	providers := llm.NewRegistry(cfg.ProviderRegistry)
	primaryProvider := providers.GetWithFallback(ctx, cfg.PrimaryProvider, cfg.SecondaryProvider)

	panel := agent.Panel()
	agentCfg := llm.CallConfig{Model: cfg.ModelMap.Report, TokenBudgetBytes: cfg.TokenBudgetBytes}
	synthesisCfg := llm.CallConfig{Model: cfg.ModelMap.DeepResearchSynthesis, TokenBudgetBytes: cfg.TokenBudgetBytes}

	orchestrator := research.New(
		panel,
		primaryProvider,
		agentCfg,
		synthesisCfg,
		tasks,
		reports,
		time.Duration(cfg.DeepResearchDeadlineS)*time.Second,
	)

	executor := queue.NewOrchestratorExecutor(orchestrator)
	queueCfg := queue.Config{
		WorkerCount:        cfg.Queue.WorkerCount,
		MaxConcurrentTasks: cfg.Queue.MaxConcurrentTasks,
		PollInterval:       time.Duration(cfg.Queue.PollIntervalMs) * time.Millisecond,
		PollIntervalJitter: time.Duration(cfg.Queue.PollJitterMs) * time.Millisecond,
		TaskTimeout:        time.Duration(cfg.Queue.TaskTimeoutS) * time.Second,
	}
	pool := queue.NewWorkerPool(*podID, tasks, queueCfg, executor, orchestrator)

	slog.Info("starting worker pool", "pod_id", *podID, "workers", queueCfg.WorkerCount)
	pool.Start(ctx)

	<-ctx.Done()
	slog.Info("shutdown signal received, draining in-flight tasks")
	pool.Stop()
	slog.Info("worker pool stopped cleanly")
}

// setupLogging wires log/slog through pkg/masking's Handler so every log
// line this process emits is redacted before it reaches the terminal,
// regardless of which package called slog.
func setupLogging() {
	base := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	handler := masking.NewHandler(base, masking.New())
	slog.SetDefault(slog.New(handler))
}
