package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"wattwise/internal/adapter/gateway"
	"wattwise/internal/adapter/tool"
	"wattwise/internal/domain"
	"wattwise/internal/infra/config"
	"wattwise/internal/infra/logger"
	"wattwise/internal/infra/tracer"
	"wattwise/internal/usecase"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`wattwise - Renewable energy consultant assistant

USAGE:
    wattwise [FLAGS] [MESSAGE]

    With MESSAGE: answer one question and exit.
    Without:      start an interactive session.

FLAGS:
    -h, --help         Show this help message
    --config PATH      Config file path (default: ./config.yaml)
    --session ID       Continue an existing session
    --provider NAME    Use a specific configured provider for this run
    --dashboard        Ask the assistant to build a dashboard this turn

INTERACTIVE COMMANDS:
    /new               Start a fresh session
    /provider NAME     Switch provider (empty NAME resets to default)
    /dashboard TEXT    Send TEXT with the dashboard hint set
    /quit              Exit

CONFIGURATION:
    Config file: ./config.yaml
    Environment: WATTWISE_* variables override config`)
}

// cliFlags holds command-line options. Remaining positional words form a
// single-shot message.
type cliFlags struct {
	ConfigPath string
	SessionID  string
	Provider   string
	Dashboard  bool
	Message    string
}

func parseFlags() cliFlags {
	flags := cliFlags{ConfigPath: "config.yaml"}
	if p := os.Getenv("WATTWISE_CONFIG"); p != "" {
		flags.ConfigPath = p
	}

	var words []string
	for i := 1; i < len(os.Args); i++ {
		arg := os.Args[i]
		switch {
		case arg == "--config" && i+1 < len(os.Args):
			flags.ConfigPath = os.Args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--session" && i+1 < len(os.Args):
			flags.SessionID = os.Args[i+1]
			i++
		case strings.HasPrefix(arg, "--session="):
			flags.SessionID = strings.TrimPrefix(arg, "--session=")
		case arg == "--provider" && i+1 < len(os.Args):
			flags.Provider = os.Args[i+1]
			i++
		case strings.HasPrefix(arg, "--provider="):
			flags.Provider = strings.TrimPrefix(arg, "--provider=")
		case arg == "--dashboard":
			flags.Dashboard = true
		default:
			words = append(words, arg)
		}
	}
	flags.Message = strings.Join(words, " ")
	return flags
}

func run() error {
	flags := parseFlags()

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	llmComponents, err := initLLM(cfg, log)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Remote tool service client plus the health loop that flips it in and
	// out of synthetic mode.
	gw := gateway.NewClient(cfg.Gateway, log)
	monitor := usecase.NewHealthMonitor(gw, cfg.Gateway.HealthSchedule, cfg.Gateway.ForceMockMode, log)
	if err := monitor.Start(ctx); err != nil {
		return fmt.Errorf("health monitor: %w", err)
	}
	defer monitor.Stop()

	catalog := tool.NewDefaultCatalog(log)
	executor := tool.NewExecutor(catalog, gw, tool.NewSynthesizer(), log)

	store, err := usecase.NewSessionStore(cfg.Session.DBPath)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer store.Close()

	var guard *usecase.ContextGuard
	if cfg.Assistant.ContextGuard.Enabled {
		counter, err := usecase.NewTiktokenCounter()
		if err != nil {
			log.Warn("tokenizer unavailable, context guard disabled", "error", err)
		} else {
			guard = usecase.NewContextGuard(cfg.Assistant.ContextGuard, counter, log)
		}
	}

	orch := usecase.NewOrchestrator(
		llmComponents.Registry,
		llmComponents.DefaultName,
		catalog,
		executor,
		store,
		guard,
		cfg.Assistant,
		log,
	)

	sessionID := flags.SessionID
	if sessionID == "" {
		sessionID = store.NewSessionID()
	}

	log.Info("wattwise starting",
		"provider", llmComponents.DefaultName,
		"session", sessionID,
		"tools", len(catalog.Definitions()),
		"mock_mode", gw.MockMode(),
	)

	if flags.Message != "" {
		return runOnce(ctx, orch, sessionID, flags)
	}
	return runInteractive(ctx, orch, store, sessionID, flags)
}

func runOnce(ctx context.Context, orch *usecase.Orchestrator, sessionID string, flags cliFlags) error {
	res, err := orch.ProcessTurn(ctx, sessionID, flags.Message, usecase.TurnOptions{
		Provider:      flags.Provider,
		DashboardHint: flags.Dashboard,
	})
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func runInteractive(ctx context.Context, orch *usecase.Orchestrator, store *usecase.SessionStore, sessionID string, flags cliFlags) error {
	fmt.Printf("wattwise (session %s) - type /quit to exit\n", sessionID)

	provider := flags.Provider
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		dashboard := false
		switch {
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/new":
			sessionID = store.NewSessionID()
			fmt.Printf("started session %s\n", sessionID)
			continue
		case strings.HasPrefix(line, "/provider"):
			provider = strings.TrimSpace(strings.TrimPrefix(line, "/provider"))
			if provider == "" {
				fmt.Println("provider reset to default")
			} else {
				fmt.Printf("provider set to %s\n", provider)
			}
			continue
		case strings.HasPrefix(line, "/dashboard "):
			dashboard = true
			line = strings.TrimSpace(strings.TrimPrefix(line, "/dashboard "))
		case strings.HasPrefix(line, "/"):
			fmt.Printf("unknown command: %s\n", line)
			continue
		}

		res, err := orch.ProcessTurn(ctx, sessionID, line, usecase.TurnOptions{
			Provider:      provider,
			DashboardHint: dashboard,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, domain.ErrProviderNotFound) {
				fmt.Printf("error: %v (use /provider to pick a configured one)\n", err)
				continue
			}
			fmt.Printf("error: %v\n", err)
			continue
		}
		printResult(res)
	}
}

func printResult(res *usecase.TurnResult) {
	fmt.Println(res.ResponseText)
	if len(res.UsedTools) > 0 {
		fmt.Printf("[tools: %s]\n", strings.Join(res.UsedTools, ", "))
	}
	if res.DashboardURL != "" {
		fmt.Printf("[dashboard: %s]\n", res.DashboardURL)
	}
}
