package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/rrrane/connect-four/internal/game"
	"github.com/rrrane/connect-four/internal/match"
	"github.com/rrrane/connect-four/internal/player"
)

// streakWindow bounds how many recent matches are read to compute a streak.
const streakWindow = 50

// PostgresStore handles database operations
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dbURL and creates the schema.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	log.Info().Str("host", config.ConnConfig.Host).Str("database", config.ConnConfig.Database).Msg("connected to postgres")
	return store, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS games (
			id UUID PRIMARY KEY,
			player1 VARCHAR(50) NOT NULL,
			player2 VARCHAR(50) NOT NULL,
			winner VARCHAR(50),
			is_forfeit BOOLEAN DEFAULT FALSE,
			is_draw BOOLEAN DEFAULT FALSE,
			bot_depth INTEGER,
			duration_seconds INTEGER,
			move_count INTEGER,
			moves TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			ended_at TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_games_player1 ON games(player1);
		CREATE INDEX IF NOT EXISTS idx_games_player2 ON games(player2);
		CREATE INDEX IF NOT EXISTS idx_games_winner ON games(winner);
		CREATE INDEX IF NOT EXISTS idx_games_created_at ON games(created_at);

		CREATE TABLE IF NOT EXISTS solutions (
			moves TEXT NOT NULL,
			depth INTEGER NOT NULL,
			outcome VARCHAR(20) NOT NULL,
			move INTEGER NOT NULL,
			value INTEGER NOT NULL,
			nodes BIGINT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (moves, depth)
		);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// SaveGame stores a finished match. Saving the same match twice is a no-op.
func (s *PostgresStore) SaveGame(ctx context.Context, m *match.Match) error {
	g := completedGame(m)

	query := `
		INSERT INTO games (id, player1, player2, winner, is_forfeit, is_draw, bot_depth,
		                   duration_seconds, move_count, moves, created_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query,
		g.ID,
		g.Player1,
		g.Player2,
		nullString(g.Winner),
		g.IsForfeit,
		g.IsDraw,
		nullInt(g.BotDepth),
		g.DurationSeconds,
		g.MoveCount,
		g.Moves,
		g.CreatedAt,
		g.EndedAt,
	)
	return err
}

func completedGame(m *match.Match) CompletedGame {
	state := m.GetState()
	g := CompletedGame{
		ID:              m.ID,
		Player1:         state.Player1,
		Player2:         state.Player2,
		Winner:          state.Winner,
		IsForfeit:       state.Result == string(match.ResultForfeit),
		IsDraw:          state.Result == string(match.ResultDraw),
		DurationSeconds: m.Duration(),
		MoveCount:       state.MoveCount,
		Moves:           game.FormatMoves(m.Columns()),
		CreatedAt:       m.StartTime,
		EndedAt:         m.EndTime,
	}
	if bot, ok := m.Bot().(*player.Searcher); ok {
		g.BotDepth = bot.Depth()
	}
	return g
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

// GetLeaderboard returns the top players by wins
func (s *PostgresStore) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		WITH player_stats AS (
			SELECT
				username,
				COUNT(*) FILTER (WHERE winner = username) as wins,
				COUNT(*) FILTER (WHERE winner IS NULL) as draws,
				COUNT(*) FILTER (WHERE winner != username AND winner IS NOT NULL) as losses,
				COUNT(*) as games
			FROM (
				SELECT player1 as username, winner FROM games
				UNION ALL
				SELECT player2 as username, winner FROM games WHERE player2 != 'BOT'
			) subq
			GROUP BY username
		)
		SELECT
			username, wins, losses, draws, games,
			CASE WHEN games > 0 THEN ROUND(wins::numeric / games * 100, 1) ELSE 0 END::float8 as win_rate
		FROM player_stats
		ORDER BY wins DESC, win_rate DESC, username
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]LeaderboardEntry, 0, limit)
	for rows.Next() {
		var entry LeaderboardEntry
		if err := rows.Scan(&entry.Username, &entry.Wins, &entry.Losses, &entry.Draws, &entry.Games, &entry.WinRate); err != nil {
			return nil, err
		}
		entry.Rank = len(entries) + 1
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetPlayerStats returns detailed statistics for a player
func (s *PostgresStore) GetPlayerStats(ctx context.Context, username string) (*PlayerStats, error) {
	query := `
		WITH player_games AS (
			SELECT
				g.*,
				CASE
					WHEN g.player1 = $1 THEN g.player2
					ELSE g.player1
				END as opponent
			FROM games g
			WHERE g.player1 = $1 OR g.player2 = $1
		)
		SELECT
			COUNT(*) FILTER (WHERE winner = $1) as wins,
			COUNT(*) FILTER (WHERE winner IS NULL) as draws,
			COUNT(*) FILTER (WHERE winner != $1 AND winner IS NOT NULL) as losses,
			COUNT(*) as total_games,
			COUNT(*) FILTER (WHERE opponent = 'BOT' AND winner = $1) as bot_wins,
			COUNT(*) FILTER (WHERE opponent = 'BOT' AND winner = 'BOT') as bot_losses,
			COALESCE(AVG(duration_seconds), 0)::float8 as avg_game_length
		FROM player_games
	`

	stats := &PlayerStats{Username: username}
	err := s.pool.QueryRow(ctx, query, username).Scan(
		&stats.Wins,
		&stats.Draws,
		&stats.Losses,
		&stats.TotalGames,
		&stats.BotWins,
		&stats.BotLosses,
		&stats.AvgGameLength,
	)
	if err != nil {
		return nil, err
	}
	if stats.TotalGames == 0 {
		return nil, game.ErrPlayerNotFound
	}
	stats.WinRate = float64(stats.Wins) / float64(stats.TotalGames) * 100

	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(winner, '') FROM games
		WHERE player1 = $1 OR player2 = $1
		ORDER BY ended_at DESC
		LIMIT $2
	`, username, streakWindow)
	if err != nil {
		return nil, err
	}
	winners, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	stats.CurrentStreak = currentStreak(winners, username)

	return stats, nil
}

// currentStreak counts consecutive results at the head of winners, most
// recent first. Wins count up, losses count down, a draw ends the streak.
func currentStreak(winners []string, username string) int {
	streak := 0
	for _, w := range winners {
		switch {
		case w == "":
			return streak
		case w == username:
			if streak < 0 {
				return streak
			}
			streak++
		default:
			if streak > 0 {
				return streak
			}
			streak--
		}
	}
	return streak
}

// GetAnalytics returns aggregated game analytics
func (s *PostgresStore) GetAnalytics(ctx context.Context) (*GameAnalytics, error) {
	now := time.Now()
	today := now.Truncate(24 * time.Hour)
	thisHour := now.Truncate(time.Hour)

	query := `
		SELECT
			COUNT(*) as total_games,
			(SELECT COUNT(DISTINCT p) FROM (
				SELECT player1 AS p FROM games
				UNION
				SELECT player2 FROM games WHERE player2 != 'BOT'
			) players) as total_players,
			COALESCE(AVG(duration_seconds), 0)::float8 as avg_duration,
			COUNT(*) FILTER (WHERE player2 = 'BOT') as bot_games,
			COUNT(*) FILTER (WHERE created_at >= $1) as games_today,
			COUNT(*) FILTER (WHERE created_at >= $2) as games_this_hour,
			(SELECT winner FROM games WHERE winner IS NOT NULL GROUP BY winner ORDER BY COUNT(*) DESC, winner LIMIT 1) as most_frequent_winner,
			(SELECT COUNT(*) FROM solutions) as cached_solutions
		FROM games
	`

	var analytics GameAnalytics
	var mostFrequentWinner *string

	err := s.pool.QueryRow(ctx, query, today, thisHour).Scan(
		&analytics.TotalGames,
		&analytics.TotalPlayers,
		&analytics.AvgGameDuration,
		&analytics.BotGamesPlayed,
		&analytics.GamesToday,
		&analytics.GamesThisHour,
		&mostFrequentWinner,
		&analytics.CachedSolutions,
	)
	if err != nil {
		return nil, err
	}

	if mostFrequentWinner != nil {
		analytics.MostFrequentWinner = *mostFrequentWinner
	}
	return &analytics, nil
}

// GetSolution looks up a cached verdict. The boolean is false on a miss.
func (s *PostgresStore) GetSolution(ctx context.Context, moves string, depth int) (*Solution, bool, error) {
	sol := &Solution{Moves: moves, Depth: depth}
	var nodes int64
	err := s.pool.QueryRow(ctx, `
		SELECT outcome, move, value, nodes, created_at
		FROM solutions WHERE moves = $1 AND depth = $2
	`, moves, depth).Scan(&sol.Outcome, &sol.Move, &sol.Value, &nodes, &sol.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	sol.Nodes = uint64(nodes)
	return sol, true, nil
}

// SaveSolution caches a verdict, replacing any previous one.
func (s *PostgresStore) SaveSolution(ctx context.Context, sol *Solution) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO solutions (moves, depth, outcome, move, value, nodes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (moves, depth) DO UPDATE
		SET outcome = EXCLUDED.outcome, move = EXCLUDED.move, value = EXCLUDED.value,
		    nodes = EXCLUDED.nodes, created_at = CURRENT_TIMESTAMP
	`, sol.Moves, sol.Depth, sol.Outcome, sol.Move, sol.Value, int64(sol.Nodes))
	return err
}

// ClearAll deletes every stored match and cached solution.
func (s *PostgresStore) ClearAll(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE games, solutions`)
	return err
}

// Close closes the database connection pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}
