// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/blockduel/gameserver/models"
)

// GormPostgreSQL is the GORM-backed implementation of Store.
type GormPostgreSQL struct {
	db *gorm.DB
}

func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormMatchRecord{}, &models.GormPlayerStats{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func (g *GormPostgreSQL) SaveMatchRecord(record *models.MatchRecord) error {
	players := make(map[string]interface{}, len(record.Players))
	for _, result := range record.Players {
		players[result.PlayerID] = map[string]interface{}{
			"name":   result.Name,
			"score":  result.Score,
			"winner": result.Winner,
		}
	}

	return g.db.Transaction(func(tx *gorm.DB) error {
		row := &models.GormMatchRecord{
			RoomCode:   record.RoomCode,
			WinnerID:   record.WinnerID,
			WinnerName: record.WinnerName,
			Players:    players,
			Duration:   int(record.FinishedAt.Sub(record.StartedAt).Seconds()),
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}

		for _, result := range record.Players {
			var stats models.GormPlayerStats
			err := tx.Where("player_name = ?", result.Name).First(&stats).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				stats = models.GormPlayerStats{PlayerName: result.Name}
			} else if err != nil {
				return err
			}

			stats.TotalGames++
			if result.Winner {
				stats.Wins++
			} else {
				stats.Losses++
			}
			stats.TotalScore += int64(result.Score)
			if result.Score > stats.BestScore {
				stats.BestScore = result.Score
			}

			if err := tx.Save(&stats).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (g *GormPostgreSQL) GetPlayerStats(playerName string) (*models.PlayerStats, error) {
	var stats models.GormPlayerStats
	err := g.db.Where("player_name = ?", playerName).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	return &models.PlayerStats{
		PlayerName: stats.PlayerName,
		TotalGames: stats.TotalGames,
		Wins:       stats.Wins,
		Losses:     stats.Losses,
		TotalScore: stats.TotalScore,
		BestScore:  stats.BestScore,
	}, nil
}

func (g *GormPostgreSQL) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
