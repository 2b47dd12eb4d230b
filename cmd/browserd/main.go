// Package main provides browserd, the browser automation task backend.
// Clients submit natural-language instructions over HTTP; the server runs
// them asynchronously against controlled browser sessions and streams task
// state transitions over WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aiassistantthx/browser-ai-backend/pkg/agent"
	"github.com/aiassistantthx/browser-ai-backend/pkg/api"
	"github.com/aiassistantthx/browser-ai-backend/pkg/browser"
	"github.com/aiassistantthx/browser-ai-backend/pkg/config"
	"github.com/aiassistantthx/browser-ai-backend/pkg/executor"
	"github.com/aiassistantthx/browser-ai-backend/pkg/hub"
	"github.com/aiassistantthx/browser-ai-backend/pkg/llm/openai"
	"github.com/aiassistantthx/browser-ai-backend/pkg/logging"
	"github.com/aiassistantthx/browser-ai-backend/pkg/orchestrator"
	"github.com/aiassistantthx/browser-ai-backend/pkg/task"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	ConfigFile  string
	Addr        string
	APIKey      string
	BaseURL     string
	Model       string
	Concurrency int
	TaskTimeout time.Duration
	Headless    bool
	HeadlessSet bool
	ShowVersion bool
}

func main() {
	cli := parseFlags()

	if cli.ShowVersion {
		fmt.Printf("browserd v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, cli); err != nil {
		log.Printf("browserd failed: %v", err)
		os.Exit(1)
	}
}

// parseFlags parses command line flags.
func parseFlags() *CLIConfig {
	cli := &CLIConfig{}

	flag.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&cli.Addr, "addr", "", "Listen address (overrides config)")
	flag.StringVar(&cli.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY)")
	flag.StringVar(&cli.BaseURL, "base-url", "", "OpenAI API base URL (overrides config)")
	flag.StringVar(&cli.Model, "model", "", "LLM model to use (overrides config)")
	flag.IntVar(&cli.Concurrency, "concurrency", 0, "Maximum concurrently running tasks (overrides config)")
	flag.DurationVar(&cli.TaskTimeout, "timeout", 0, "Per-task execution timeout (overrides config)")
	flag.BoolVar(&cli.Headless, "headless", true, "Run browsers without a visible window")
	flag.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "browserd - Browser Automation Task Backend\n\n")
		fmt.Fprintf(os.Stderr, "Usage: browserd [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Run with defaults on :8000\n")
		fmt.Fprintf(os.Stderr, "  browserd\n\n")
		fmt.Fprintf(os.Stderr, "  # Run with a config file\n")
		fmt.Fprintf(os.Stderr, "  browserd -config browserd.yaml\n\n")
		fmt.Fprintf(os.Stderr, "  # Visible browser for local debugging\n")
		fmt.Fprintf(os.Stderr, "  browserd -headless=false -addr :9000\n\n")
	}

	flag.Parse()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "headless" {
			cli.HeadlessSet = true
		}
	})
	return cli
}

// loadConfig merges the YAML config with command-line overrides.
func loadConfig(cli *CLIConfig) (*config.Config, error) {
	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		return nil, err
	}

	if cli.Addr != "" {
		cfg.Server.Addr = cli.Addr
	}
	if cli.APIKey != "" {
		cfg.LLM.APIKey = cli.APIKey
	}
	if cli.BaseURL != "" {
		cfg.LLM.BaseURL = cli.BaseURL
	}
	if cli.Model != "" {
		cfg.LLM.Model = cli.Model
	}
	if cli.Concurrency > 0 {
		cfg.Executor.Concurrency = cli.Concurrency
	}
	if cli.TaskTimeout > 0 {
		cfg.Executor.TaskTimeout = config.Duration(cli.TaskTimeout)
	}
	if cli.HeadlessSet {
		headless := cli.Headless
		cfg.Browser.Headless = &headless
	}

	return cfg, cfg.Validate()
}

// run wires the full stack and serves until the context is cancelled.
func run(ctx context.Context, cli *CLIConfig) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, logErr := logging.NewLogger("main")
	if logErr != nil {
		log.Printf("file logging unavailable: %v", logErr)
	}
	defer logger.Close()
	logger.Infof("browserd v%s starting", version)

	providerOpts := []openai.ProviderOption{openai.WithModel(cfg.LLM.Model)}
	if cfg.LLM.BaseURL != "" {
		providerOpts = append(providerOpts, openai.WithBaseURL(cfg.LLM.BaseURL))
	}
	provider, err := openai.NewProvider(cfg.LLM.APIKey, providerOpts...)
	if err != nil {
		return fmt.Errorf("LLM provider: %w", err)
	}

	// Browser sessions are bootstrapped lazily on the first task, so startup
	// stays fast and health checks work before Playwright is installed.
	browserMgr := browser.NewManager(browser.Options{
		Headless:    cfg.Browser.IsHeadless(),
		MaxSessions: cfg.Browser.MaxSessions,
		IdleTimeout: cfg.Browser.IdleTimeout.Std(),
	})
	defer func() {
		if err := browserMgr.Shutdown(); err != nil {
			logger.Errorf("browser shutdown: %v", err)
		}
	}()

	automation, err := agent.New(provider, agent.NewBrowserDriver(browserMgr),
		agent.WithMaxSteps(cfg.LLM.MaxSteps),
	)
	if err != nil {
		return fmt.Errorf("agent: %w", err)
	}

	store := task.NewStore(task.WithRetention(cfg.Executor.Retention.Std()))
	events := hub.NewHub(hub.WithBufferSize(cfg.Executor.EventBuffer))
	defer events.Close()

	exec := executor.New(store, events, automation.Run,
		executor.WithConcurrency(cfg.Executor.Concurrency),
		executor.WithTaskTimeout(cfg.Executor.TaskTimeout.Std()),
		executor.WithLogger(logger),
	)

	orch := orchestrator.New(store, events, exec, orchestrator.WithLogger(logger))
	orch.Start(ctx)

	server, err := api.NewServer(cfg.Server.Addr, cfg.Server.AllowedOrigins, orch,
		api.WithLogger(logger),
		api.WithReadiness(browserMgr.Ready),
	)
	if err != nil {
		return fmt.Errorf("api server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.ListenAndServe()
	}()
	logger.Infof("serving on %s (concurrency=%d, timeout=%s)",
		cfg.Server.Addr, cfg.Executor.Concurrency, cfg.Executor.TaskTimeout.Std())

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
