package main

import (
	"FaceDetection/internal/config"
	"FaceDetection/internal/middleware"
	"FaceDetection/pkg/env"
	"FaceDetection/pkg/locator"
	"context"
	"time"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithMiddleware(middleware.RateLimitConfigFromEnv()),
		config.WithFaceLocator(locator.ConfigFromEnv()),
		config.WithConcurrency(config.ConcurrencyFromEnv()),
		config.WithUtils(),
	)
	if err != nil {
		return err
	}

	server.RegisterHandler()

	runErr := make(chan error, 1)
	go func() {
		runErr <- server.Run()
	}()

	logger.Info("Server started successfully")

	select {
	case err := <-runErr:
		if err != nil {
			logger.Errorf("Error starting server: %v", err)
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), env.Duration("SHUTDOWN_TIMEOUT", 10*time.Second))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
		return err
	}

	logger.Info("Server stopped")
	return nil
}
