package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wpnative/instant-articles/internal/app"
	"github.com/wpnative/instant-articles/internal/config"
	"github.com/wpnative/instant-articles/internal/logging"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to config YAML")
	logLevel := flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	addr := flag.String("addr", "", "HTTP bind address override")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *addr != "" {
		cfg.Listen = *addr
	}
	logger := logging.BuildLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("start", "error", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	if cfg.RulesFile != "" {
		if n, err := a.ImportRules(ctx, cfg.RulesFile); err != nil {
			logger.Error("import rules file", "path", cfg.RulesFile, "error", err)
		} else {
			logger.Info("imported rules file", "path", cfg.RulesFile, "count", n)
		}
	}
	if w := a.Watcher(); w != nil {
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("rules watcher stopped", "error", err)
			}
		}()
	}
	go a.RunJanitor(ctx, time.Hour)

	if err := a.Server().ListenAndServe(ctx, cfg.Listen); err != nil {
		logger.Error("serve", "error", err)
		os.Exit(1)
	}
}
