package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guiyumin/mediagrab/internal/core/config"
	"github.com/guiyumin/mediagrab/internal/core/service"
	"github.com/guiyumin/mediagrab/internal/core/version"
	"github.com/guiyumin/mediagrab/internal/server"
)

func main() {
	port := flag.Int("port", 0, "HTTP listen port (default: 3001)")
	output := flag.String("output", "", "output directory for downloads")
	configPath := flag.String("config", "", "config file (default: ~/.config/mediagrab/config.yml)")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("mediagrab-server %s\n", version.Version)
		return
	}

	cfg := config.LoadOrDefault()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			log.Fatalf("[server] %v", err)
		}
	}

	// flag > config > default
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *output != "" {
		cfg.OutputDir = *output
	}

	svc, err := service.New(cfg)
	if err != nil {
		log.Fatalf("[server] %v", err)
	}
	srv := server.NewServer(cfg, svc)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("[server] shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			log.Printf("[server] shutdown: %v", err)
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("[server] %v", err)
	}
}
