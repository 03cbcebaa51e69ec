package main

import (
	"context"
	"flag"
	"log"
	"time"

	"safepath/internal/config"
	"safepath/internal/database"
	"safepath/internal/pkg/logging"
	"safepath/internal/repository"
)

func main() {
	staleAfter := flag.Duration("stale-after", 30*24*time.Hour,
		"deactivate vault credentials not validated within this window (0 disables)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.AppEnv, cfg.LogLevel)
	ctx := context.Background()

	db, err := database.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	now := time.Now()

	resets, err := repository.NewUserRepository(db).ClearExpiredResetTokens(ctx, now)
	if err != nil {
		log.Fatalf("cleanup reset tokens failed: %v", err)
	}

	var stale int64
	if *staleAfter > 0 {
		stale, err = repository.NewVaultRepository(db).DeactivateUnvalidatedSince(ctx, now.Add(-*staleAfter))
		if err != nil {
			log.Fatalf("deactivate stale credentials failed: %v", err)
		}
	}

	logger.Info(ctx, "auth cleanup completed", "reset_tokens", resets, "stale_credentials", stale)
}
