// Package main prepares a sceneforge database: it applies migrations and
// seeds the default ruleset and world lore.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/louisbranch/sceneforge/internal/platform/config"
	"github.com/louisbranch/sceneforge/internal/platform/otel"
	"github.com/louisbranch/sceneforge/internal/sim/storage/sqlite"
)

type seedConfig struct {
	DBPath string `env:"SCENEFORGE_DB_PATH" envDefault:"sceneforge.db"`
}

func main() {
	log.SetPrefix("[SEED] ")
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	var cfg seedConfig
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("parse config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Setup(ctx, "sceneforge-seed")
	if err != nil {
		config.Exitf("setup tracing: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("shutdown tracing: %v", err)
		}
	}()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		config.Exitf("open database %s: %v", cfg.DBPath, err)
	}
	defer store.Close()

	if err := store.EnsureDefaults(ctx, time.Now().UTC()); err != nil {
		config.Exitf("seed defaults: %v", err)
	}
	log.Printf("database %s migrated and seeded", cfg.DBPath)
}
