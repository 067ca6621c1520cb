package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shepherdlog/shepherd/internal/infrastructure/config"
	"github.com/shepherdlog/shepherd/internal/server"
)

func main() {
	// Parse flags; any flag given overrides the environment.
	port := flag.String("port", "", "HTTP server port")
	ingestAddr := flag.String("ingest", "", "Agent-facing TCP listen address")
	capacity := flag.Int("capacity", 0, "Record buffer capacity")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *ingestAddr != "" {
		cfg.Ingest.Addr = *ingestAddr
	}
	if *capacity > 0 {
		cfg.Store.Capacity = *capacity
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		log.Println("Shutting down gracefully...")
		if err := srv.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	}
}
