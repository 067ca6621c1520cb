package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shepherdlog/shepherd/internal/loggen"
)

func main() {
	output := flag.String("output", "sample.log", "File to append generated lines to")
	interval := flag.Duration("interval", time.Second, "Delay between lines")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	f, err := os.OpenFile(*output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *output, err)
	}
	defer f.Close()

	log.Printf("Generating sample logs to %s every %s", *output, *interval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	g := loggen.New(*seed)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := f.WriteString(g.Line() + "\n"); err != nil {
				log.Fatalf("Write failed: %v", err)
			}
		case <-sigChan:
			log.Println("Stopping log generator")
			return
		}
	}
}
