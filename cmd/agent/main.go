package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shepherdlog/shepherd/internal/agent"
	"github.com/shepherdlog/shepherd/internal/infrastructure/logging"
)

func main() {
	configPath := flag.String("config", "", "Path to agent TOML config")
	file := flag.String("file", "", "Log file to tail")
	server := flag.String("server", "", "Ingestion address (host:port)")
	source := flag.String("source", "", "Source name reported with each line")
	fromStart := flag.Bool("from-start", false, "Read the file from the beginning")
	flag.Parse()

	cfg := agent.DefaultConfig()
	if *configPath != "" {
		loaded, err := agent.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Flags override the config file.
	if *file != "" {
		cfg.File = *file
	}
	if *server != "" {
		cfg.Server = *server
	}
	if *source != "" {
		cfg.Source = *source
	}
	if *fromStart {
		cfg.FromStart = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logging.NewDefault()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := agent.New(cfg, logger).Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Agent error: %v", err)
	}
}
