// Package main is the entry point for the tether CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielolaszy/tether/cmd"
	"github.com/danielolaszy/tether/internal/config"
	"github.com/danielolaszy/tether/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level := logging.LogLevel(cfg.Log.Level)
	if cfg.Log.File != "" {
		logging.SetupFileLogger(os.Stderr, level, cfg.Log.File)
	} else {
		logging.SetupLogger(os.Stderr, level)
	}

	// Interrupts cancel in-flight fetches and pending conflict prompts;
	// apply and push phases run to completion regardless.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		logging.Error("command execution failed", "error", err)
		stop()
		os.Exit(1)
	}
}
