package main

import (
	"focusify/internal/config"
	"focusify/internal/db"
	xlog "focusify/internal/log"
)

func main() {
	cfg := config.Load()
	xlog.Configure(xlog.Config{Level: cfg.LogLevel, Service: "focusify-migrate"})
	logger := xlog.WithComponent("migrate")

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()

	applied, err := db.MigrateDir(database, cfg.MigrationsDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.MigrationsDir).Msg("run migrations")
	}

	logger.Info().Str("db", cfg.DBPath).Strs("applied", applied).Msg("migrations applied successfully")
}
