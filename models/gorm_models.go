package models

import (
	"gorm.io/gorm"
)

// GormMatchRecord mirrors MatchRecord for the GORM store.
type GormMatchRecord struct {
	gorm.Model
	RoomCode   string                 `gorm:"index;not null"`
	WinnerID   string                 `gorm:"not null"`
	WinnerName string                 `gorm:"not null"`
	Players    map[string]interface{} `gorm:"type:jsonb;not null"`
	Duration   int                    `gorm:"default:0"` // seconds
}

// GormPlayerStats is the aggregate row bumped after every match.
type GormPlayerStats struct {
	gorm.Model
	PlayerName string `gorm:"uniqueIndex;not null"`
	TotalGames int    `gorm:"default:0"`
	Wins       int    `gorm:"default:0"`
	Losses     int    `gorm:"default:0"`
	TotalScore int64  `gorm:"default:0"`
	BestScore  int    `gorm:"default:0"`
}
