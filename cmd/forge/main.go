package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"testforge/internal/config"
	"testforge/internal/embedding"
	"testforge/internal/llm"
	"testforge/internal/logging"
	"testforge/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string
	dbPath     string
	timeout    time.Duration

	// Loaded once in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "testforge - grounded test-case generation and browser-script synthesis",
	Long: `testforge generates functional test cases from indexed project documentation
and synthesizes them into runnable rod browser scripts.

Workflow:
  1. forge ingest docs.jsonl          index pre-chunked documentation
  2. forge snapshot <url> -o page.html capture the target page markup
  3. forge generate "checkout flows" --markup page.html -o cases.json
  4. forge synthesize --cases cases.json --markup page.html

Every test case cites the documentation chunk it came from; scripts only use
locators present in the captured page.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.Index.DatabasePath = dbPath
		}
		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		if err := logging.Initialize(workspace, logging.Options{
			Enabled:    cfg.Logging.Enabled,
			Level:      level,
			Categories: cfg.Logging.Categories,
		}); err != nil {
			return fmt.Errorf("failed to initialize category logs: %w", err)
		}
		if err := logging.InitAudit(); err != nil {
			return fmt.Errorf("failed to initialize audit log: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAudit()
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "forge.yaml", "Configuration file")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "Workspace directory for logs and relative paths")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Index database path (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(synthesizeCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// opContext returns a context bounded by the --timeout flag and cancelled on
// SIGINT/SIGTERM.
func opContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// signalContext is opContext without the deadline, for long-running verbs.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// openIndex builds the embedding engine and opens the index on it.
func openIndex() (*store.LocalIndex, error) {
	engine, err := embedding.NewEngine(embedding.Config{
		Provider:   cfg.Embedding.Provider,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		TaskType:   cfg.Embedding.TaskType,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding engine: %w", err)
	}
	ix, err := store.NewLocalIndex(cfg.Index.DatabasePath, engine)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	return ix, nil
}

// newClient builds the text-generation client from config.
func newClient() (llm.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return llm.NewClient(llm.Config{
		Provider:  cfg.LLM.Provider,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		Timeout:   cfg.LLMTimeout(),
		MaxTokens: cfg.LLM.MaxTokens,
	})
}
