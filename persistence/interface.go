// persistence/interface.go
package persistence

import (
	"errors"

	"github.com/blockduel/gameserver/models"
)

// Store records finished matches and serves aggregate player stats.
// Live room state never goes through here.
type Store interface {
	SaveMatchRecord(record *models.MatchRecord) error
	GetPlayerStats(playerName string) (*models.PlayerStats, error)
	Close() error
}

var ErrRecordNotFound = errors.New("record not found")
