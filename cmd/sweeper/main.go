// One-shot retention sweeper. Run it from cron (or any external scheduler);
// it deletes unprocessed uploads older than the configured retention age and
// exits.
package main

import (
	"flag"
	"fmt"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"salesboard/internal/blob"
	"salesboard/internal/config"
	"salesboard/internal/logs"
	"salesboard/internal/sweep"
)

var configFile = flag.String("config", "", "path to configuration file")

func main() {
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	logger := logs.New(cfg.Debug)

	if cfg.Database.DSN == "" {
		logger.Fatal().Msg("database.dsn is not set (SALESBOARD_DATABASE_DSN)")
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres database")
	}

	store := blob.NewOS(cfg.Upload.BaseDir)
	removed, err := sweep.Sweep(db, store, cfg.Retention.MaxAge, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("sweep failed")
	}
	logger.Info().Int("removed", removed).Dur("max_age", cfg.Retention.MaxAge).Msg("sweep completed")
}
