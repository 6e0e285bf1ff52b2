package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"repobrief/internal/config"
	"repobrief/internal/github"
	"repobrief/internal/llm"
	"repobrief/internal/logging"
	"repobrief/internal/pipeline"
	"repobrief/internal/server"
)

func main() {
	port := flag.String("port", "", "server port (overrides PORT)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("err", err))
		os.Exit(1)
	}
	if *port != "" {
		cfg.Port = *port
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	gh, err := github.New(cfg.GitHub)
	if err != nil {
		logger.Error("failed to initialize GitHub client", slog.Any("err", err))
		os.Exit(1)
	}
	client, err := llm.New(context.Background(), cfg.LLM, cfg.LLM.Model, logger)
	if err != nil {
		logger.Error("failed to initialize LLM client", slog.Any("err", err))
		os.Exit(1)
	}

	summarizer := pipeline.New(cfg, gh, client)
	srv := server.New(cfg.Port, server.NewMux(server.NewHandler(summarizer), logger), logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("server exiting")
}
