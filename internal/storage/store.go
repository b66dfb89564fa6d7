package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Session statuses as stored in the sessions table.
const (
	StatusWaiting   = "waiting"
	StatusPlaying   = "playing"
	StatusFinished  = "finished"
	StatusAbandoned = "abandoned"
)

// SessionRow represents a session in the database.
type SessionRow struct {
	Code      string    `json:"code"`
	GameType  string    `json:"gameType"`
	Status    string    `json:"status"` // "waiting", "playing", "finished", "abandoned"
	CreatedAt time.Time `json:"createdAt"`
}

// PlayerStats is a player's win/loss record.
type PlayerStats struct {
	PlayerID   string    `json:"playerId"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	LastPlayed time.Time `json:"lastPlayedAt"`
}

// Store handles SQLite persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// :memory: databases are per connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	// WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			code       TEXT PRIMARY KEY,
			game_type  TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'waiting',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS player_stats (
			player_id   TEXT PRIMARY KEY,
			wins        INTEGER NOT NULL DEFAULT 0,
			losses      INTEGER NOT NULL DEFAULT 0,
			last_played DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

// CreateSession inserts a new session.
func (s *Store) CreateSession(code, gameType string) error {
	_, err := s.db.Exec(
		"INSERT INTO sessions (code, game_type, status) VALUES (?, ?, ?)",
		code, gameType, StatusWaiting,
	)
	return err
}

// GetSession retrieves a session by code.
func (s *Store) GetSession(code string) (*SessionRow, error) {
	row := s.db.QueryRow("SELECT code, game_type, status, created_at FROM sessions WHERE code = ?", code)
	var sr SessionRow
	if err := row.Scan(&sr.Code, &sr.GameType, &sr.Status, &sr.CreatedAt); err != nil {
		return nil, err
	}
	return &sr, nil
}

// UpdateSessionStatus changes a session's status.
func (s *Store) UpdateSessionStatus(code, status string) error {
	_, err := s.db.Exec("UPDATE sessions SET status = ? WHERE code = ?", status, code)
	return err
}

// ListSessions returns all sessions with the given status (or all if status is empty).
func (s *Store) ListSessions(status string) ([]SessionRow, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.Query("SELECT code, game_type, status, created_at FROM sessions ORDER BY created_at DESC")
	} else {
		rows, err = s.db.Query("SELECT code, game_type, status, created_at FROM sessions WHERE status = ? ORDER BY created_at DESC", status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []SessionRow
	for rows.Next() {
		var sr SessionRow
		if err := rows.Scan(&sr.Code, &sr.GameType, &sr.Status, &sr.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, sr)
	}
	return result, rows.Err()
}

// MarkAbandoned flags every waiting or playing session as abandoned. Match
// state lives in memory only, so such rows cannot be resumed after a restart.
func (s *Store) MarkAbandoned() (int64, error) {
	res, err := s.db.Exec(
		"UPDATE sessions SET status = ? WHERE status IN (?, ?)",
		StatusAbandoned, StatusWaiting, StatusPlaying,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(code string) error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE code = ?", code)
	return err
}

// RecordWin adds a win to the player's record.
func (s *Store) RecordWin(playerID string) error {
	return s.record(playerID, 1, 0)
}

// RecordLoss adds a loss to the player's record.
func (s *Store) RecordLoss(playerID string) error {
	return s.record(playerID, 0, 1)
}

func (s *Store) record(playerID string, wins, losses int) error {
	_, err := s.db.Exec(`
		INSERT INTO player_stats (player_id, wins, losses, last_played)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(player_id) DO UPDATE SET
			wins = wins + excluded.wins,
			losses = losses + excluded.losses,
			last_played = excluded.last_played
	`, playerID, wins, losses)
	if err != nil {
		return fmt.Errorf("record stats for %s: %w", playerID, err)
	}
	return nil
}

// Stats returns a player's record, or sql.ErrNoRows if they never finished a match.
func (s *Store) Stats(playerID string) (*PlayerStats, error) {
	row := s.db.QueryRow("SELECT player_id, wins, losses, last_played FROM player_stats WHERE player_id = ?", playerID)
	var ps PlayerStats
	if err := row.Scan(&ps.PlayerID, &ps.Wins, &ps.Losses, &ps.LastPlayed); err != nil {
		return nil, err
	}
	return &ps, nil
}

// Leaderboard returns up to limit players ordered by wins, then fewest losses.
func (s *Store) Leaderboard(limit int) ([]PlayerStats, error) {
	rows, err := s.db.Query(`
		SELECT player_id, wins, losses, last_played FROM player_stats
		ORDER BY wins DESC, losses ASC, player_id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []PlayerStats
	for rows.Next() {
		var ps PlayerStats
		if err := rows.Scan(&ps.PlayerID, &ps.Wins, &ps.Losses, &ps.LastPlayed); err != nil {
			return nil, err
		}
		result = append(result, ps)
	}
	return result, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
