package main

import (
	"github.com/blockduel/gameserver/config"
	"github.com/blockduel/gameserver/logger"
	"github.com/blockduel/gameserver/persistence"
	"github.com/blockduel/gameserver/server"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Match results are optional; without a database the server still
	// runs, it just records nothing.
	var store persistence.Store
	if cfg.Database.Enabled {
		pg := cfg.Database.Postgres
		switch cfg.Database.Driver {
		case "pq":
			store, err = persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		default:
			store, err = persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		}
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		logger.Log.Info("Database connection successful.")
	}

	gameServer := server.NewGameServer(cfg, store)

	logger.Log.Infof("Starting duel server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
