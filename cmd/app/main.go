package main

import (
	"FaceDetection/pkg/log"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logger *logrus.Logger

var rootCmd = &cobra.Command{
	Use:           "face-detection",
	Short:         "Face detection service for base64 encoded video frames",
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		envErr := godotenv.Load()
		logger = log.NewLogger()
		if envErr != nil {
			logger.Warnf("No .env file loaded, using process environment: %v", envErr)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
