package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/rrrane/connect-four/internal/game"
	events "github.com/rrrane/connect-four/internal/kafka"
)

// SQLStore writes match rows through database/sql and lib/pq.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore connects to dsn and creates the table.
func OpenSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLStore{db: db}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create analytics table: %w", err)
	}
	return s, nil
}

func (s *SQLStore) createSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS match_analytics (
			game_id VARCHAR(36) PRIMARY KEY,
			player1 VARCHAR(50),
			player2 VARCHAR(50),
			winner VARCHAR(50),
			result VARCHAR(20),
			is_vs_bot BOOLEAN DEFAULT FALSE,
			duration INTEGER,
			moves INTEGER,
			opening VARCHAR(32),
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_match_analytics_timestamp ON match_analytics(timestamp);
		CREATE INDEX IF NOT EXISTS idx_match_analytics_winner ON match_analytics(winner);
	`)
	return err
}

// RecordMatch upserts one finished match.
func (s *SQLStore) RecordMatch(ctx context.Context, gameID string, at time.Time, data *events.GameEndData) error {
	var winner sql.NullString
	if data.Winner != "" {
		winner = sql.NullString{String: data.Winner, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO match_analytics (game_id, player1, player2, winner, result, is_vs_bot, duration, moves, opening, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (game_id) DO UPDATE
		SET winner = EXCLUDED.winner, result = EXCLUDED.result, duration = EXCLUDED.duration,
		    moves = EXCLUDED.moves, opening = EXCLUDED.opening
	`, gameID, data.Player1, data.Player2, winner, data.Result, data.IsVsBot,
		data.DurationSeconds, data.TotalMoves, opening(data.Moves), at)
	return err
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// opening is the first few columns of a match, used to group games by how
// they started.
func opening(moves []int) string {
	const plies = 4
	if len(moves) > plies {
		moves = moves[:plies]
	}
	return game.FormatMoves(moves)
}
