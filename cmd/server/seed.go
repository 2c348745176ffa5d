package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"friend-connect-backend/internal/common/config"
	"friend-connect-backend/internal/common/logger"
	"friend-connect-backend/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed [fixture.yaml]",
	Short: "Load users, friendships and pending requests from a YAML fixture",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(serviceName, cfg.Debug)
	if cfg.Store == config.StoreMemory {
		return fmt.Errorf("seeding the memory store has no effect, set STORE_DRIVER")
	}

	fx, err := seed.LoadFile(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close(context.Background())

	_, err = seed.NewSeeder(b.store, cfg.Auth.BcryptCost, logger.Get()).Apply(ctx, fx)
	return err
}
