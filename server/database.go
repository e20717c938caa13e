package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultRankingLimit = 10
	maxRankingLimit     = 100
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// RankingRow is one player's aggregate across recorded matches
type RankingRow struct {
	PlayerName string `json:"playerName"`
	Position   int    `json:"position"`
	Score      int    `json:"score"`
	Kills      int    `json:"kills"`
	Wins       int    `json:"wins"`
	Games      int    `json:"games"`
}

// Rankings is the leaderboard response. Player is set when a name was
// queried and has recorded matches.
type Rankings struct {
	Top    []RankingRow `json:"top"`
	Player *RankingRow  `json:"player"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single writer avoids SQLITE_BUSY between the recorder and readers
	conn.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		seed INTEGER NOT NULL,
		map_name TEXT NOT NULL,
		winner_name TEXT,
		reason TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS match_players (
		match_id INTEGER NOT NULL REFERENCES matches(id),
		seat INTEGER NOT NULL,
		player_name TEXT NOT NULL COLLATE NOCASE,
		kills INTEGER NOT NULL DEFAULT 0,
		won INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (match_id, seat)
	);

	CREATE INDEX IF NOT EXISTS idx_match_players_name ON match_players(player_name);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RecordMatch stores a finished match and its seats in one transaction
func (db *DB) RecordMatch(ctx context.Context, m MatchResult) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	winner := sql.NullString{String: m.WinnerName, Valid: m.WinnerName != ""}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO matches (room_id, seed, map_name, winner_name, reason, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.RoomID, int64(m.Seed), m.MapName, winner, m.Reason,
		m.StartedAt.UTC().Format(time.RFC3339), m.EndedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	matchID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO match_players (match_id, seat, player_name, kills, won) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, s := range m.Seats {
		won := 0
		if s.Won {
			won = 1
		}
		if _, err := stmt.ExecContext(ctx, matchID, i, s.Name, s.Kills, won); err != nil {
			return fmt.Errorf("insert seat: %w", err)
		}
	}
	return tx.Commit()
}

// rankedPlayers scores every name: wins are worth 100 points, kills 10.
// Ties break alphabetically so positions are stable.
const rankedPlayers = `
	WITH totals AS (
		SELECT player_name AS name, SUM(kills) AS kills, SUM(won) AS wins, COUNT(*) AS games
		FROM match_players
		GROUP BY player_name
	)
	SELECT name, ROW_NUMBER() OVER (ORDER BY wins * 100 + kills * 10 DESC, name) AS position,
		wins * 100 + kills * 10 AS score, kills, wins, games
	FROM totals`

// Rankings returns the top entries plus the named player's own row
func (db *DB) Rankings(ctx context.Context, playerName string, limit int) (Rankings, error) {
	if limit <= 0 {
		limit = defaultRankingLimit
	}
	limit = min(limit, maxRankingLimit)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT * FROM (`+rankedPlayers+`) ORDER BY position LIMIT ?`, limit)
	if err != nil {
		return Rankings{}, err
	}
	defer rows.Close()

	out := Rankings{Top: make([]RankingRow, 0, limit)}
	for rows.Next() {
		var r RankingRow
		if err := rows.Scan(&r.PlayerName, &r.Position, &r.Score, &r.Kills, &r.Wins, &r.Games); err != nil {
			return Rankings{}, err
		}
		out.Top = append(out.Top, r)
	}
	if err := rows.Err(); err != nil {
		return Rankings{}, err
	}

	playerName = strings.TrimSpace(playerName)
	if playerName == "" {
		return out, nil
	}
	var r RankingRow
	err = db.conn.QueryRowContext(ctx,
		`SELECT * FROM (`+rankedPlayers+`) WHERE name = ? COLLATE NOCASE`, playerName,
	).Scan(&r.PlayerName, &r.Position, &r.Score, &r.Kills, &r.Wins, &r.Games)
	if errors.Is(err, sql.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return Rankings{}, err
	}
	out.Player = &r
	return out, nil
}

// matchCount returns the number of recorded matches
func (db *DB) matchCount(ctx context.Context) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM matches").Scan(&n)
	return n, err
}
