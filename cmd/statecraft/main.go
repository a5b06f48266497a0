// Package main is the entry point for the statecraft CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/openclaw/statecraft/internal/config"
	"github.com/openclaw/statecraft/internal/finalout"
	"github.com/openclaw/statecraft/internal/llm"
	"github.com/openclaw/statecraft/internal/logging"
	"github.com/openclaw/statecraft/internal/orchestrator"
	"github.com/openclaw/statecraft/internal/recovery"
	"github.com/openclaw/statecraft/internal/sandbox"
	"github.com/openclaw/statecraft/internal/store"
	"github.com/openclaw/statecraft/internal/subagent"
	"github.com/openclaw/statecraft/internal/verify"
)

// Build-time variables (set via ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

func init() {
	_ = godotenv.Load()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("statecraft"),
		kong.Description("LLM-driven state mutation runner"),
		kong.UsageOnError(),
	)
	if err := run(ctx, &cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func run(kctx *kong.Context, cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}

	logger := logging.New()
	logger.SetLevel(parseLevel(cfg.LogLevel))

	switch kctx.Command() {
	case "run <query>":
		return runQuery(cfg, logger, cli.Run.Query)
	case "apply <file>":
		return applyFile(cfg, logger, cli.Apply.File, cli.Apply.Query)
	case "inspect":
		return inspectState(cfg, cli.Inspect.Payloads)
	case "version":
		fmt.Printf("statecraft version %s (commit: %s)\n", version, commit)
		return nil
	}
	return fmt.Errorf("unknown command: %s", kctx.Command())
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadDefault()
}

func openStore(cfg *config.Config) (store.Store, error) {
	if !cfg.Storage.Persist {
		return store.NewInMemory(), nil
	}
	return store.NewSQLite(cfg.Storage.Path)
}

func runQuery(cfg *config.Config, logger *logging.Logger, query string) error {
	ctx := context.Background()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	gemini, err := llm.NewGeminiClient(ctx, cfg.GetAPIKey())
	if err != nil {
		return err
	}
	client := llm.NewRetryClient(gemini, cfg.RetryBackoff())

	orch := buildOrchestrator(cfg, logger, st, client)
	result, err := orch.RunQuery(ctx, query)
	if err != nil {
		return err
	}
	return printResult(result)
}

func applyFile(cfg *config.Config, logger *logging.Logger, path, query string) error {
	ctx := context.Background()

	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read response file: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	orch := buildOrchestrator(cfg, logger, st, nil)
	result, err := orch.ProcessTurn(ctx, string(text), query, query)
	if err != nil {
		return err
	}
	return printResult(result)
}

// buildOrchestrator wires the turn loop. client may be nil for offline
// application; recovery and verification then stay disabled.
func buildOrchestrator(cfg *config.Config, logger *logging.Logger, st store.Store, client llm.Client) *orchestrator.Orchestrator {
	deps := orchestrator.Deps{
		Store:    st,
		Client:   client,
		Executor: sandbox.NewExecutor(sandbox.Config{Timeout: cfg.SandboxTimeout(), MaxSteps: cfg.Sandbox.MaxSteps}, logger.WithComponent("sandbox")),
		Logger:   logger.WithComponent("orchestrator"),
	}

	var verifier *verify.Service
	if client != nil && cfg.Verify.Enabled {
		verifier = verify.New(client, cfg.VerifyModel(), logger.WithComponent("verify"))
	}
	deps.Pipeline = finalout.New(verifier, st, finalout.Config{
		MaxBytes:   cfg.Output.MaxBytes,
		Disallowed: cfg.Output.Disallowed,
	}, logger.WithComponent("finalout"))

	if client != nil && cfg.Recovery.Enabled {
		deps.Recoverer = recovery.New(client, cfg.LLM.Model, cfg.Recovery.MaxAttempts, logger.WithComponent("recovery"))
	}
	if client != nil && len(cfg.Agents.Preambles) > 0 {
		caller := subagent.NewLLMCaller(client, cfg.LLM.Model, cfg.Agents.Preambles)
		deps.Runner = subagent.NewRunner(caller, cfg.AgentTimeout(), logger.WithComponent("subagent"))
	}

	return orchestrator.New(cfg, deps)
}

func printResult(result *orchestrator.TurnResult) error {
	s := result.Summary
	fmt.Printf("turn %s: %d memory, %d task, %d goal, %d vault, %d agent ops, %d executions\n",
		result.TurnID, len(s.Memory), len(s.Tasks), len(s.Goals), len(s.Vault), len(s.Agents), len(s.Executions))
	for _, op := range s.FailedOps() {
		fmt.Printf("  failed %s %s: %s\n", op.Entity, op.Action, op.Error)
	}
	for _, out := range result.Outputs {
		fmt.Printf("final output %s: state=%s verified=%t confidence=%d\n",
			out.ID, out.State, out.Verified, out.Confidence)
	}
	return nil
}

func inspectState(cfg *config.Config, payloads bool) error {
	ctx := context.Background()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	snap, err := st.LoadAll(ctx)
	if err != nil {
		return err
	}
	if !payloads {
		for i := range snap.Vault {
			snap.Vault[i].Payload = ""
		}
	}

	out, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("render state: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}

func parseLevel(s string) logging.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	}
	return logging.LevelInfo
}
