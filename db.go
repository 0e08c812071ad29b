package main

import (
	"os"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"salesboard/models"
)

var db *gorm.DB

func initDB() {
	dsn := cfg.Database.DSN
	if dsn == "" {
		logger.Fatal().Msg("database.dsn is not set. This project requires a Postgres DSN in SALESBOARD_DATABASE_DSN.")
	}
	var err error
	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres database")
	}
	// Schema migrations are controlled with database.auto_migrate (default
	// true). Migrate models individually so a failure on one doesn't block
	// others; permission errors are logged and ignored.
	if cfg.Database.AutoMigrate {
		migrateModels(db)
	}
	seedDB()
}

func migrateModels(db *gorm.DB) {
	if err := db.AutoMigrate(&models.User{}); err != nil {
		logger.Warn().Err(err).Msg("migration warning (users)")
	}
	if err := db.AutoMigrate(&models.Upload{}); err != nil {
		logger.Warn().Err(err).Msg("migration warning (uploads)")
	}
	if err := db.AutoMigrate(&models.Metrics{}); err != nil {
		logger.Warn().Err(err).Msg("migration warning (metrics)")
	}
}

func seedDB() {
	// Seed an admin user so a fresh install can upload right away. The
	// password comes from ADMIN_PASSWORD, with a development fallback.
	var count int64
	db.Model(&models.User{}).Where("username = ?", "admin").Count(&count)
	if count == 0 {
		password := os.Getenv("ADMIN_PASSWORD")
		if password == "" {
			password = "admin123"
		}
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		admin := models.User{Username: "admin", HashedPassword: hashedPassword}
		if err := db.Create(&admin).Error; err != nil {
			logger.Warn().Err(err).Msg("failed to seed admin user")
		} else {
			logger.Info().Msg("seeded admin user: username=admin")
		}
	}
	// Ensure upload directory exists
	if err := os.MkdirAll(cfg.Upload.BaseDir, 0o755); err != nil {
		logger.Warn().Err(err).Str("dir", cfg.Upload.BaseDir).Msg("failed to create upload base dir")
	}
}
