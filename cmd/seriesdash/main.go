// Package main is the entry point for the seriesdash TUI application.
// It initializes configuration, services, and runs the Bubble Tea program.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/okrause/seriesdash/internal/app"
	"github.com/okrause/seriesdash/internal/config"
	"github.com/okrause/seriesdash/internal/logger"
	"github.com/okrause/seriesdash/internal/services"
	"github.com/okrause/seriesdash/internal/ui/tabs/info"
	"github.com/okrause/seriesdash/internal/ui/tabs/matrices"
	"github.com/okrause/seriesdash/internal/ui/tabs/statistics"
	"github.com/okrause/seriesdash/internal/version"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-v" || os.Args[1] == "--version") {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		printUsage()
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run contains the main application logic, separated for cleaner error handling.
func run() error {
	// 1. Load configuration from .env files and environment variables
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. The TUI owns the terminal, so logs go to a file next to the store
	logPath := filepath.Join(filepath.Dir(cfg.StorePath), "seriesdash.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err == nil {
		logger.SetOutput(logFile)
		defer logFile.Close()
	}

	// 3. Initialize the service manager
	// This opens the store, starts the dataset watcher and the orchestrator
	svcManager, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	defer func() {
		if closeErr := svcManager.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", closeErr)
		}
	}()

	// 4. Create the root Bubble Tea model
	model := app.NewModel(svcManager)

	// 5. Initialize tabs with shared state and services
	state := model.GetState()
	tabs := []app.Tab{
		matrices.New(state),               // Tab 0: pairwise result matrices
		statistics.New(state, svcManager), // Tab 1: single-series statistics
		info.New(state, cfg),              // Tab 2: configuration and app info
	}
	model.SetTabs(tabs)

	// 6. Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	go func() {
		<-sigChan
		p.Send(tea.Quit())
	}()

	// This blocks until the user quits or an error occurs
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// printUsage prints the command-line usage information.
func printUsage() {
	fmt.Println(`seriesdash - time-series metric dashboard

Usage:
  seriesdash [flags]

Flags:
  -h, --help      Show this help message
  -v, --version   Show version information

Keyboard Shortcuts:
  1-3             Switch between tabs (Matrices, Statistics, Info)
  Tab/Shift+Tab   Navigate between tabs
  j/k, Up/Down    Navigate metric lists
  h/l, Left/Right Switch category
  t               Toggle series preview
  d               Cycle derived series overlay
  r               Refresh view
  R               Retry failed metrics
  x               Recompute selected metric
  Ctrl+X          Reset all local and remote data
  ?               Toggle help
  q, Ctrl+C       Quit

Environment Variables:
  API_BASE_URL          Statistics service base URL (default: http://localhost:5000)
  DATA_DIR              Watched dataset directory (default: ./data)
  STORE_PATH            SQLite store path
  PAIR_CONCURRENCY      In-flight pair calls per kind (default: 1)
  MAX_CONCURRENT_KINDS  Kinds computed in parallel (default: 3)
  TOLERANCE_MINUTES     Timestamp alignment tolerance (default: 30)
  PLUGIN_CACHE_TTL      Plugin result cache lifetime (default: 1h)
  CORRUPT_DATA_POLICY   refetch or wait (default: refetch)

Configuration:
  The application looks for .env files in the following locations:
  - Current directory
  - ~/.config/seriesdash/.env

Dataset files are named <category>__<name>.csv or .json.`)
}
