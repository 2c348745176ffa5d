package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"friend-connect-backend/internal/common/logger"
)

const serviceName = "friend-connect-backend"

var rootCmd = &cobra.Command{
	Use:   "friend-connect",
	Short: "Friend connections, recommendations and live notifications",
	// Errors are logged by main.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd.AddCommand(serveCmd, seedCmd)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}
