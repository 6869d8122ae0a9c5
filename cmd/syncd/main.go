package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/vdavid/mailsync/internal/auth"
	"github.com/vdavid/mailsync/internal/config"
	"github.com/vdavid/mailsync/internal/db"
	"github.com/vdavid/mailsync/internal/secrets"
	"github.com/vdavid/mailsync/internal/syncer"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.CloseConnection(pool)

	// The daemon refuses to run against a half-migrated schema.
	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	version, err := db.SchemaVersion(ctx, pool)
	if err != nil {
		log.Fatalf("Failed to read schema version: %v", err)
	}
	log.Printf("Connected to database (schema version %d)", version)

	store, err := secrets.NewKeyringStore()
	if err != nil {
		log.Fatalf("Failed to open secret store: %v", err)
	}

	authr := auth.New(cfg, store)
	engine := syncer.New(cfg, pool, authr)

	// Watch every account's INBOX so new mail syncs without waiting for
	// the next tick.
	accounts, err := db.GetAccounts(ctx, pool)
	if err != nil {
		log.Fatalf("Failed to list accounts: %v", err)
	}
	for _, account := range accounts {
		go engine.WatchAccount(ctx, account)
	}

	log.Printf("Sync daemon starting (environment: %s, interval: %s, %d accounts)",
		cfg.Environment, cfg.SyncInterval, len(accounts))

	engine.Run(ctx)
	log.Printf("Sync daemon stopped")
}
