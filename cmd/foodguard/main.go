package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/foodguardai/foodguard/internal/agent"
	"github.com/foodguardai/foodguard/internal/api"
	"github.com/foodguardai/foodguard/internal/config"
	"github.com/foodguardai/foodguard/internal/datasource"
	"github.com/foodguardai/foodguard/internal/provider"
	"github.com/foodguardai/foodguard/internal/storage"
	"github.com/foodguardai/foodguard/internal/store"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		if err := runStart(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "watch":
		if err := runWatch(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("foodguard %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: foodguard <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  start     Start the FoodGuard analysis service")
	fmt.Fprintln(os.Stderr, "  watch     Run an analysis and watch its event stream in a TUI")
	fmt.Fprintln(os.Stderr, "  version   Print version")
}

func runStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Setup logger
	logLevel := slog.LevelInfo
	switch cfg.Service.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting foodguard", "version", version, "config", *configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open SQLite
	db, err := storage.OpenSQLite(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	runStore := store.NewRunStore(db)

	// Create LLM provider
	chatModel, err := provider.NewChatModel(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("create llm provider: %w", err)
	}

	// Build data-source tools with call logging
	observer := func(tool, input, output, status string) {
		logger.Debug("tool call", "tool", tool, "status", status, "input", input)
	}
	tools := datasource.BuildTools(cfg.DataSource, nil, observer)

	loop := agent.NewLoop(chatModel, tools, cfg.Agent, logger)

	chat := func(ctx context.Context, req agent.ChatRequest) (string, error) {
		return agent.Chat(ctx, chatModel, req)
	}

	srv := api.New(api.Config{
		Listen:       cfg.API.Listen,
		Token:        cfg.API.Token,
		ChatDeadline: cfg.Agent.ChatDeadline,
	}, runStore, loop, chat, logger)

	// Signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
		<-errCh
		return nil
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			return err
		}
		return nil
	}
}
