package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"salesboard/internal/blob"
	"salesboard/internal/config"
	"salesboard/internal/logs"
	"salesboard/internal/process"
	"salesboard/internal/queue"
)

var (
	cfg        *config.Config
	logger     zerolog.Logger
	blobStore  *blob.Store
	dispatcher *queue.Dispatcher
	jwtSecret  []byte // from auth.jwt_secret config (fallback to dev default)
)

func main() {
	// Auto-load ./.env if present before reading config from the environment
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	logger = logs.New(cfg.Debug)

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}
	jwtSecret = []byte(secret)

	// Support a lightweight migrate command: `./salesboard migrate`
	// It runs AutoMigrate and seeding then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB()
		logger.Info().Msg("migration and seeding completed")
		return
	}

	initDB()
	blobStore = blob.NewOS(cfg.Upload.BaseDir)

	proc := &process.Processor{DB: db, Blob: blobStore, Log: logger}
	dispatcher = queue.New(proc, cfg.Worker.PoolSize, cfg.Worker.QueueSize, cfg.Worker.MaxRetries, logger)
	defer dispatcher.StopAndWait()

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	setupRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info().Str("addr", addr).Msg("listening")
	if err := r.Run(addr); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
