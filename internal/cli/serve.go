package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guiyumin/mediagrab/internal/core/service"
	"github.com/guiyumin/mediagrab/internal/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var (
	servePort      int
	serveOutputDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start an HTTP server exposing metadata, downloads and file delivery.

Examples:
  mediagrab serve              # listen on the configured port (default 3001)
  mediagrab serve -p 9000      # listen on port 9000
  mediagrab serve -o ~/dl      # store downloads in ~/dl

API Endpoints:
  GET    /api/health
  GET    /api/auth/status
  POST   /api/auth/browser
  POST   /api/auth/mode
  POST   /api/:platform/info
  POST   /api/:platform/download-info
  POST   /api/:platform/download
  GET    /api/:platform/file/:filename
  POST   /api/jobs
  GET    /api/jobs
  GET    /api/jobs/:id
  DELETE /api/jobs/:id`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP listen port (default from config, 3001)")
	serveCmd.Flags().StringVarP(&serveOutputDir, "output", "o", "", "output directory for downloads")

	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// flag > config (defaults were applied on load)
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if serveOutputDir != "" {
		cfg.OutputDir = serveOutputDir
	}

	svc, err := service.New(cfg)
	if err != nil {
		return err
	}
	srv := server.NewServer(cfg, svc)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-sigChan:
	}

	log.Println("[server] shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(ctx)
}
