package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nemanja-m/mrstep/internal/backend/local"
	"github.com/nemanja-m/mrstep/internal/coordinator/api/rest"
	"github.com/nemanja-m/mrstep/internal/shared/config"
	"github.com/nemanja-m/mrstep/internal/shared/logging"

	_ "github.com/nemanja-m/mrstep/examples/echo"
	_ "github.com/nemanja-m/mrstep/examples/grep"
	_ "github.com/nemanja-m/mrstep/examples/wordcount"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := pflag.String("config", "", "Path to coordinator.yaml")
	pflag.Parse()

	cfg, err := config.LoadCoordinator(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid logging config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewSlogLoggerWithWriter(os.Stdout, level, cfg.Logging.Format)

	backend := local.NewBackend(cfg.Local.Slots, cfg.Local.Mappers, cfg.Local.OutputRoot, logger.With("component", "backend"))
	server := rest.NewServer(cfg.REST, backend, logger.With("component", "api"))

	go func() {
		logger.Info("Starting coordinator API server", "addr", cfg.REST.Addr, "slots", cfg.Local.Slots)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down coordinator")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	backend.Close()

	logger.Info("Coordinator stopped")
}
