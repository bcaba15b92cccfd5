// models/models.go
package models

import (
	"encoding/json"
	"time"

	"github.com/blockduel/gameserver/piece"
)

// --- Request / response payloads ---

type CreateRoomRequest struct {
	Username string `json:"username"`
}

type CreateRoomResponse struct {
	RoomCode string `json:"room_code"`
}

type JoinRoomRequest struct {
	RoomCode string `json:"room_code"`
	Username string `json:"username"`
}

type JoinRoomResponse struct {
	RoomCode string `json:"room_code"`
}

type ToggleReadyResponse struct {
	IsReady bool `json:"is_ready"`
}

type UpdateGameStateRequest struct {
	Board json.RawMessage `json:"board"`
	Score int             `json:"score"`
}

type RoomInfoRequest struct {
	RoomCode string `json:"room_code"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Views ---

type PlayerView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsHost      bool   `json:"is_host"`
	IsReady     bool   `json:"is_ready"`
	HasFinished bool   `json:"has_finished"`
	Score       int    `json:"score"`
}

// RoomView is the single source of truth pushed to every member on
// each room-state change.
type RoomView struct {
	Code      string       `json:"code"`
	GameState string       `json:"game_state"`
	Players   []PlayerView `json:"players"`
	CreatedAt time.Time    `json:"created_at"`
}

// --- Broadcast payloads ---

type PlayerLeftEvent struct {
	PlayerID string   `json:"player_id"`
	Room     RoomView `json:"room"`
}

type GameStartedEvent struct {
	Room   RoomView    `json:"room"`
	Pieces piece.Batch `json:"piece_batch"`
}

type OpponentUpdateEvent struct {
	PlayerID string          `json:"player_id"`
	Board    json.RawMessage `json:"board"`
	Score    int             `json:"score"`
}

type PlayerScore struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

type GameFinishedEvent struct {
	WinnerID   string        `json:"winner_id"`
	WinnerName string        `json:"winner_name"`
	Scores     []PlayerScore `json:"scores"`
}

type GameAbortedEvent struct {
	Reason string `json:"reason"`
}

// --- Persistence models ---

// PlayerResult is one player's line in a finished match.
type PlayerResult struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Winner   bool   `json:"winner"`
}

// MatchRecord is written to storage when a room reaches Finished.
// Room state itself is never persisted; only results are.
type MatchRecord struct {
	RoomCode   string         `json:"room_code"`
	WinnerID   string         `json:"winner_id"`
	WinnerName string         `json:"winner_name"`
	Players    []PlayerResult `json:"players"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// PlayerStats is a player's aggregate over all recorded matches.
type PlayerStats struct {
	PlayerName string `json:"player_name"`
	TotalGames int    `json:"total_games"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
	TotalScore int64  `json:"total_score"`
	BestScore  int    `json:"best_score"`
}
