package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"Taskly/internal/cli/commands"
	"Taskly/internal/config"
	"Taskly/internal/logger"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	// Load unified config (env + flags)
	cfg := config.NewConfig()

	if cfg.Version {
		printVersion()
		return
	}

	// журнал пишем в файл, чтобы не мешать выводу команд
	if l, err := logger.NewClient(cfg.LogFile, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "log disabled: %v\n", err)
	} else {
		defer func() { _ = l.Sync() }()
		commands.Logger = l.Sugar()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// dispatcher
	exitCode := commands.Dispatch(ctx, cfg, flag.Args())
	if exitCode == 0 {
		return
	}
	cancel()
	os.Exit(exitCode)
}

func printVersion() {
	fmt.Printf("Taskly CLI\nVersion: %s\nBuild date: %s\n", version, buildDate)
}
