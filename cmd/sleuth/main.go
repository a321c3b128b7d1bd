// Sleuth is an autonomous investigative research engine. It takes one research
// question, decomposes it into tasks, runs hypothesis-driven searches over
// the configured sources, and emits a synthesized report plus the full
// audit trail into a per-run output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/osinthq/sleuth/pkg/api"
	"github.com/osinthq/sleuth/pkg/audit"
	"github.com/osinthq/sleuth/pkg/config"
	"github.com/osinthq/sleuth/pkg/engine"
	"github.com/osinthq/sleuth/pkg/integration"
	"github.com/osinthq/sleuth/pkg/llm"
	"github.com/osinthq/sleuth/pkg/models"
	"github.com/osinthq/sleuth/pkg/prompt"
	"github.com/osinthq/sleuth/pkg/store"
	"github.com/osinthq/sleuth/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	question := flag.String("question", "", "Research question (required)")
	configPath := flag.String("config", getEnv("SLEUTH_CONFIG", ""), "Path to sleuth.yaml (optional; built-in defaults apply)")
	outputDir := flag.String("output", "", "Output root directory (overrides run.output_dir)")
	mode := flag.String("mode", "", "Budget profile: expert or budget (overrides run.mode)")
	httpPort := flag.Int("http-port", 0, "Serve the status API on this port (0 disables)")
	flag.Parse()

	if *question == "" {
		fmt.Fprintln(os.Stderr, "usage: sleuth -question \"...\" [-config sleuth.yaml] [-output DIR]")
		os.Exit(2)
	}

	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	cfg, err := config.Initialize(*configPath)
	if err != nil {
		slog.Error("Configuration invalid", "error", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Run.OutputDir = *outputDir
	}
	if *mode != "" {
		cfg.Run.Mode = config.RunMode(*mode)
		if cfg.Run.Mode != config.ModeExpert && cfg.Run.Mode != config.ModeBudget {
			slog.Error("Configuration invalid", "error", fmt.Sprintf("unknown mode %q", *mode))
			os.Exit(1)
		}
	}

	start := time.Now().UTC()
	runDir := filepath.Join(cfg.Run.OutputDir, models.RunID(start, *question))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		slog.Error("Cannot create output directory", "dir", runDir, "error", err)
		os.Exit(1)
	}
	run := models.NewRun(*question, runDir, start)

	auditLog := audit.New(filepath.Join(runDir, "execution_log.jsonl"), run.ID)
	defer auditLog.Close()

	registry := integration.NewRegistry(sourceOptions(cfg), auditLog)
	if cfg.Run.CaptureRaw {
		registry.SetRawCapture(filepath.Join(runDir, "raw"))
	}
	gateway, costs, err := buildGateway(cfg, auditLog)
	if err != nil {
		slog.Error("Configuration invalid", "error", err)
		os.Exit(1)
	}

	eng := engine.New(engine.Deps{
		Config:   cfg,
		Run:      run,
		LLM:      gateway,
		Costs:    costs,
		Registry: registry,
		Store:    store.New(),
		Audit:    auditLog,
		Budget:   engine.NewBudget(start, cfg.RunTimeout(), cfg.TaskTimeout()),
	})

	// SIGINT/SIGTERM cancel scheduling; the engine finishes the in-flight
	// work it can and still synthesizes from whatever was collected.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *httpPort > 0 {
		srv := api.NewServer(eng, *httpPort)
		go func() {
			if err := srv.Start(); err != nil {
				slog.Error("Status API stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		slog.Info("Status API listening", "port", *httpPort)
	}

	color.New(color.Bold).Printf("%s: %s\n", version.Full(), *question)
	color.New(color.Faint).Printf("run %s (%s mode, up to %d tasks, %d min)\n",
		run.ID, cfg.Run.Mode, cfg.Run.MaxTasks, cfg.Run.MaxTimeMinutes)

	if err := eng.Run(ctx); err != nil {
		slog.Error("Run failed writing artifacts", "error", err)
		os.Exit(1)
	}

	status := eng.Snapshot()
	color.Green("done: %d results, %d entities, %d/%d tasks completed",
		status.ResultsCollected, status.EntitiesFound, status.TasksCompleted, status.TasksCreated)
	fmt.Printf("report: %s\n", filepath.Join(runDir, "report.md"))
}

func sourceOptions(cfg *config.Config) map[string]integration.SourceOptions {
	opts := make(map[string]integration.SourceOptions, len(cfg.Integrations))
	for id, ic := range cfg.Integrations {
		opts[id] = integration.SourceOptions{
			APIKey:  ic.APIKey,
			Timeout: time.Duration(ic.TimeoutSeconds) * time.Second,
			Enabled: ic.Enabled,
		}
	}
	return opts
}

func buildGateway(cfg *config.Config, auditLog *audit.Logger) (*llm.Gateway, *llm.CostTracker, error) {
	renderer, err := prompt.NewRenderer(cfg.Prompts.Dir)
	if err != nil {
		return nil, nil, err
	}

	chain := []llm.Model{llm.NewAnthropicModel(cfg.LLM.APIKey, cfg.LLM.Model)}
	for _, name := range cfg.LLM.FallbackModels {
		chain = append(chain, llm.NewAnthropicModel(cfg.LLM.APIKey, name))
	}

	costs := llm.NewCostTracker()
	return llm.NewGateway(renderer, chain, cfg.LLMTimeout(), costs, auditLog), costs, nil
}
