package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gramnerd/internal/accounts"
	"gramnerd/internal/activity"
	"gramnerd/internal/advisory"
	"gramnerd/internal/browser"
	"gramnerd/internal/config"
	"gramnerd/internal/engine"
	"gramnerd/internal/logging"
	"gramnerd/internal/server"
	"gramnerd/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath string
	dataDir    string
	addr       string
	verbose    bool
	headless   bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gramnerd",
	Short: "gramNERD - Instagram outreach orchestration",
	Long: `gramNERD automates Instagram lead generation for a web agency:
hashtag discovery, profile targeting, personalized DMs, contextual
comments, and lead scoring of saved-post commenters.

It drives a real Chromium session per account, keeps a SQLite ledger
so nobody is ever contacted twice, and stays under strict per-account
daily quotas. A local dashboard controls and observes runs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

// addAccountCmd adds an account from the command line instead of the
// dashboard.
var addAccountCmd = &cobra.Command{
	Use:   "add-account [username] [password]",
	Short: "Add an Instagram account to the pool",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		mgr := accounts.NewManager(cfg.Data.AccountsPath())
		if err := mgr.Load(); err != nil {
			return err
		}
		if err := mgr.Add(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Account @%s added\n", args[0])
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if headless {
		cfg.Browser.Headless = true
	}
	if verbose {
		cfg.Logging.Debug = true
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := logging.Initialize(cfg.Data.Dir, cfg.Logging.Debug); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer logging.CloseAll()

	ledger, err := store.Open(cfg.Data.LedgerPath())
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	mgr := accounts.NewManager(cfg.Data.AccountsPath())
	if err := mgr.Load(); err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}

	advisor := advisory.NewClient(cfg.Gemini)
	if !advisor.Available() {
		logger.Warn("no Gemini API key configured; comment and DM text will come from templates, lead scoring and freeform modes are disabled")
	}

	feed := activity.NewFeed()
	factory := func(account accounts.Account) (engine.Browser, error) {
		return browser.NewSession(cfg.Browser, account, cfg.Data.SessionPath(account.Username)), nil
	}
	supervisor := engine.NewSupervisor(cfg, ledger, mgr, advisor, feed, factory)
	srv := server.New(supervisor, mgr, feed)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dashboard listening", zap.String("addr", cfg.Server.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("dashboard server: %w", err)
		}
	}

	supervisor.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}

	// Give the active run a moment to hit its next cancellation
	// checkpoint before the process exits.
	deadline := time.Now().Add(5 * time.Second)
	for supervisor.Running() && time.Now().Before(deadline) {
		time.Sleep(200 * time.Millisecond)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "gramnerd.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override the data directory")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "dashboard listen address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", false, "run Chromium headless")

	rootCmd.AddCommand(addAccountCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
