package game

import "encoding/json"

// GameInfo describes a game type for the lobby.
type GameInfo struct {
	Name       string `json:"name"`
	MinPlayers int    `json:"minPlayers"`
	MaxPlayers int    `json:"maxPlayers"`
}

// MatchConfig holds settings for creating a new match.
type MatchConfig struct {
	ID string
}

// Action represents a move a player can make.
type Action struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PlayerResult holds the outcome for one player.
type PlayerResult struct {
	PlayerID string `json:"playerId"`
	Rank     int    `json:"rank"` // 1 = first place
	Score    int    `json:"score"`
}

// Game describes a game type.
type Game interface {
	Info() GameInfo
	NewMatch(config MatchConfig) Match
}

// Match is one in-progress game session. Implementations are not safe for
// concurrent use; the session layer serializes every call.
type Match interface {
	// Join seats a player. Joining twice with the same id is a no-op.
	Join(playerID string) error
	// Started reports whether enough players have joined for play to begin.
	Started() bool
	State(playerID string) any
	ValidActions(playerID string) []Action
	ApplyAction(playerID string, action Action) error
	IsOver() bool
	Results() []PlayerResult
}
