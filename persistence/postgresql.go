// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/blockduel/gameserver/models"
)

// PostgreSQL is the plain database/sql implementation of Store.
type PostgreSQL struct {
	db *sql.DB
}

func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS match_records (
            id SERIAL PRIMARY KEY,
            room_code TEXT NOT NULL,
            winner_id TEXT NOT NULL,
            winner_name TEXT NOT NULL,
            players JSONB NOT NULL,
            started_at TIMESTAMP NOT NULL,
            finished_at TIMESTAMP NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS player_stats (
            id SERIAL PRIMARY KEY,
            player_name TEXT UNIQUE NOT NULL,
            total_games INT NOT NULL DEFAULT 0,
            wins INT NOT NULL DEFAULT 0,
            losses INT NOT NULL DEFAULT 0,
            total_score BIGINT NOT NULL DEFAULT 0,
            best_score INT NOT NULL DEFAULT 0,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`)
	return err
}

// SaveMatchRecord writes the record and bumps each player's aggregate
// row in one transaction.
func (p *PostgreSQL) SaveMatchRecord(record *models.MatchRecord) error {
	players, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
        INSERT INTO match_records (room_code, winner_id, winner_name, players, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		record.RoomCode, record.WinnerID, record.WinnerName, players,
		record.StartedAt, record.FinishedAt)
	if err != nil {
		return err
	}

	for _, result := range record.Players {
		winInc, lossInc := 0, 1
		if result.Winner {
			winInc, lossInc = 1, 0
		}
		_, err = tx.Exec(`
            INSERT INTO player_stats (player_name, total_games, wins, losses, total_score, best_score, updated_at)
            VALUES ($1, 1, $2, $3, $4, $4, CURRENT_TIMESTAMP)
            ON CONFLICT (player_name) DO UPDATE SET
                total_games = player_stats.total_games + 1,
                wins = player_stats.wins + $2,
                losses = player_stats.losses + $3,
                total_score = player_stats.total_score + $4,
                best_score = GREATEST(player_stats.best_score, $4),
                updated_at = CURRENT_TIMESTAMP`,
			result.Name, winInc, lossInc, result.Score)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (p *PostgreSQL) GetPlayerStats(playerName string) (*models.PlayerStats, error) {
	stats := &models.PlayerStats{PlayerName: playerName}
	err := p.db.QueryRow(`
        SELECT total_games, wins, losses, total_score, best_score
        FROM player_stats WHERE player_name = $1`, playerName).
		Scan(&stats.TotalGames, &stats.Wins, &stats.Losses, &stats.TotalScore, &stats.BestScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
