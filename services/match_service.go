// services/match_service.go
package services

import (
	"fmt"

	"github.com/blockduel/gameserver/models"
	"github.com/blockduel/gameserver/persistence"
)

// MatchService sits between the game core and storage. A nil store is
// legal and turns recording into a no-op, so the core never has to
// care whether a database is configured.
type MatchService struct {
	store persistence.Store
}

func NewMatchService(store persistence.Store) *MatchService {
	return &MatchService{store: store}
}

func (s *MatchService) RecordMatch(record *models.MatchRecord) error {
	if s.store == nil || record == nil {
		return nil
	}
	if err := s.store.SaveMatchRecord(record); err != nil {
		return fmt.Errorf("save match record for room %s: %w", record.RoomCode, err)
	}
	return nil
}

func (s *MatchService) PlayerStats(playerName string) (*models.PlayerStats, error) {
	if s.store == nil {
		return nil, persistence.ErrRecordNotFound
	}
	return s.store.GetPlayerStats(playerName)
}
