package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/deepnoodle-ai/dialogue"
	"github.com/deepnoodle-ai/dialogue/directory"
	"github.com/deepnoodle-ai/dialogue/horizon"
	"github.com/deepnoodle-ai/dialogue/httpapi"
	"github.com/deepnoodle-ai/dialogue/pcp"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

// CLI configuration
type Config struct {
	Serve        bool
	Addr         string
	Store        string
	SessionsDir  string
	TurnLogsDir  string
	PostgresDSN  string
	RedisURL     string
	RosterFile   string
	MemberID     string
	ResumeID     string
	Timeout      time.Duration
	Verbose      bool
	JSON         bool
}

func main() {
	// Load optional .env before flags read the environment
	_ = godotenv.Load()

	config := parseFlags()
	logger := setupLogger(config.Verbose, config.JSON)

	store, cleanup, err := setupStore(config)
	if err != nil {
		log.Fatalf("Failed to set up checkpoint store: %v", err)
	}
	defer cleanup()

	graph, err := pcp.BuildGraph(setupOracle(logger), setupDirectory(config, logger))
	if err != nil {
		log.Fatalf("Failed to build dialogue graph: %v", err)
	}

	var turnLogger dialogue.TurnLogger
	if config.TurnLogsDir != "" {
		turnLogger = dialogue.NewFileTurnLogger(config.TurnLogsDir)
		color.Blue("Turn logs: %s", config.TurnLogsDir)
	} else {
		turnLogger = dialogue.NewNullTurnLogger()
	}

	engine, err := dialogue.NewEngine(dialogue.EngineOptions{
		Graph:      graph,
		Store:      store,
		Logger:     logger,
		TurnLogger: turnLogger,
	})
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	if config.Serve {
		serve(config, engine, logger)
		return
	}
	runInteractive(config, engine)
}

func parseFlags() *Config {
	config := &Config{}

	flag.BoolVar(&config.Serve, "serve", false, "Run the HTTP API instead of an interactive session")
	flag.StringVar(&config.Addr, "addr", ":8080", "Listen address for -serve")

	flag.StringVar(&config.Store, "store", "memory", "Checkpoint store backend: memory, file, postgres, or redis")
	flag.StringVar(&config.SessionsDir, "sessions", "", "Directory for the file store (default ~/.deepnoodle/dialogue/sessions)")
	flag.StringVar(&config.TurnLogsDir, "turn-logs", "", "Directory to store per-session turn logs (optional)")
	flag.StringVar(&config.PostgresDSN, "postgres-dsn", os.Getenv("DIALOGUE_POSTGRES_DSN"), "Postgres connection string for -store postgres")
	flag.StringVar(&config.RedisURL, "redis-url", os.Getenv("DIALOGUE_REDIS_URL"), "Redis URL for -store redis")

	flag.StringVar(&config.RosterFile, "roster", "", "YAML provider roster for the built-in directory (optional)")
	flag.StringVar(&config.MemberID, "member", "demo-member", "Member ID for interactive sessions")
	flag.StringVar(&config.ResumeID, "resume", "", "Resume an existing session by ID instead of starting a new one")

	flag.DurationVar(&config.Timeout, "timeout", 0, "Per-turn timeout (e.g., 30s, 5m)")
	flag.BoolVar(&config.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&config.Verbose, "v", false, "Enable verbose logging (shorthand)")
	flag.BoolVar(&config.JSON, "json", false, "Emit JSON logs")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Dialogue CLI - PCP assignment dialogue sessions

Usage: %s [options]

Examples:
  # Interactive session against the in-memory store
  %s

  # Interactive session with durable file checkpoints
  %s -store file -sessions ./sessions

  # Resume a suspended session
  %s -store file -resume sess_01h455vb4pex5vsknk084sn02q

  # Serve the HTTP API backed by Postgres
  %s -serve -store postgres -postgres-dsn "postgres://localhost/dialogue"

Environment:
  HORIZON_GATEWAY_URL / HORIZON_CLIENT_ID / HORIZON_CLIENT_SECRET
        When all three are set, extraction uses the Horizon chat gateway;
        otherwise a keyword heuristic is used.
  DIRECTORY_BASE_URL
        When set, provider search uses the live directory service;
        otherwise a small built-in roster is used.
  DIALOGUE_POSTGRES_DSN / DIALOGUE_REDIS_URL
        Default connection settings for the postgres and redis stores.

Options:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()
	return config
}

func setupLogger(verbose, jsonLogs bool) *slog.Logger {
	if jsonLogs {
		return dialogue.NewJSONLogger()
	}
	if verbose {
		return dialogue.NewLogger()
	}
	return dialogue.NewLoggerWithLevel(slog.LevelWarn)
}

func setupStore(config *Config) (dialogue.Store, func(), error) {
	noop := func() {}
	switch config.Store {
	case "memory":
		return dialogue.NewMemoryStore(), noop, nil
	case "file":
		store, err := dialogue.NewFileStore(config.SessionsDir)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case "postgres":
		if config.PostgresDSN == "" {
			return nil, noop, fmt.Errorf("-postgres-dsn (or DIALOGUE_POSTGRES_DSN) is required for the postgres store")
		}
		store, err := dialogue.OpenPostgresStore(config.PostgresDSN, dialogue.PostgresStoreOptions{})
		if err != nil {
			return nil, noop, err
		}
		if err := store.EnsureSchema(context.Background()); err != nil {
			store.Close()
			return nil, noop, err
		}
		return store, func() { store.Close() }, nil
	case "redis":
		if config.RedisURL == "" {
			return nil, noop, fmt.Errorf("-redis-url (or DIALOGUE_REDIS_URL) is required for the redis store")
		}
		store, err := dialogue.OpenRedisStore(context.Background(), config.RedisURL, dialogue.RedisStoreOptions{})
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", config.Store)
	}
}

func setupOracle(logger *slog.Logger) pcp.Oracle {
	gatewayURL := os.Getenv("HORIZON_GATEWAY_URL")
	clientID := os.Getenv("HORIZON_CLIENT_ID")
	clientSecret := os.Getenv("HORIZON_CLIENT_SECRET")
	if gatewayURL == "" || clientID == "" || clientSecret == "" {
		return &pcp.HeuristicOracle{}
	}
	client, err := horizon.NewClient(horizon.ClientOptions{
		GatewayURL:   gatewayURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("Failed to create Horizon client: %v", err)
	}
	color.Blue("Extraction: Horizon gateway at %s", gatewayURL)
	return pcp.NewLLMOracle(client)
}

func setupDirectory(config *Config, logger *slog.Logger) pcp.Directory {
	baseURL := os.Getenv("DIRECTORY_BASE_URL")
	if baseURL == "" {
		stub := pcp.NewStubDirectory()
		if config.RosterFile != "" {
			roster, err := pcp.LoadRosterFile(config.RosterFile)
			if err != nil {
				log.Fatalf("Failed to load roster: %v", err)
			}
			stub.SetProviders(roster)
			color.Blue("Roster: %s (%d providers)", config.RosterFile, len(roster))
		}
		return stub
	}
	client, err := directory.NewClient(directory.ClientOptions{
		BaseURL: baseURL,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("Failed to create directory client: %v", err)
	}
	color.Blue("Provider directory: %s", baseURL)
	return client
}

func serve(config *Config, engine *dialogue.Engine, logger *slog.Logger) {
	handler, err := httpapi.NewHandler(httpapi.HandlerOptions{
		Engine: engine,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("Failed to create HTTP handler: %v", err)
	}
	color.Green("Listening on %s", config.Addr)
	server := &http.Server{
		Addr:              config.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func runInteractive(config *Config, engine *dialogue.Engine) {
	ctx := context.Background()

	turn := func(parent context.Context) (context.Context, context.CancelFunc) {
		if config.Timeout > 0 {
			return context.WithTimeout(parent, config.Timeout)
		}
		return context.WithCancel(parent)
	}

	var result *dialogue.RunResult
	var err error
	if config.ResumeID != "" {
		checkpoint, derr := engine.Describe(ctx, config.ResumeID)
		if derr != nil {
			log.Fatalf("Failed to look up session: %v", derr)
		}
		if checkpoint.Terminal() {
			color.Yellow("Session %s already completed", config.ResumeID)
			return
		}
		color.Cyan("Resuming session %s (stage %s)", config.ResumeID, checkpoint.Stage)
		if checkpoint.Suspension != nil {
			printPrompt(checkpoint.Suspension.Prompt, checkpoint.Suspension.SuggestedReplies)
		}
		result = &dialogue.RunResult{
			SessionID:  config.ResumeID,
			Status:     dialogue.RunStatusSuspended,
			Suspension: checkpoint.Suspension,
			Stage:      checkpoint.Stage,
		}
	} else {
		turnCtx, cancel := turn(ctx)
		result, err = engine.Start(turnCtx, "", &dialogue.Record{MemberID: config.MemberID})
		cancel()
		if err != nil {
			log.Fatalf("Failed to start session: %v", err)
		}
		color.Cyan("Session %s", result.SessionID)
		if result.Suspension != nil {
			printPrompt(result.Suspension.Prompt, result.Suspension.SuggestedReplies)
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	for result.Suspended() {
		fmt.Print("> ")
		if !scanner.Scan() {
			color.Yellow("\nSession %s is suspended; rerun with -resume %s to continue", result.SessionID, result.SessionID)
			return
		}
		reply := strings.TrimSpace(scanner.Text())
		if reply == "" {
			continue
		}

		turnCtx, cancel := turn(ctx)
		result, err = engine.Resume(turnCtx, result.SessionID, reply)
		cancel()
		if err != nil {
			log.Fatalf("Turn failed: %v", err)
		}
		if result.Suspended() && result.Suspension != nil {
			printPrompt(result.Suspension.Prompt, result.Suspension.SuggestedReplies)
		}
	}

	color.Green("%s", result.Record.Confirmation)
	color.White("Session %s finished (stage %s)", result.SessionID, result.Stage)
}

func printPrompt(prompt string, suggestions []string) {
	color.White("%s", prompt)
	if len(suggestions) > 0 {
		color.HiBlack("(%s)", strings.Join(suggestions, " / "))
	}
}
