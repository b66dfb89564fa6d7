package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"navalcombat/internal/game"
	"navalcombat/internal/storage"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 4
	codeAttempts = 20

	// emptyGrace is how long a session may exist before anyone takes a seat.
	emptyGrace = 30 * time.Second
)

// Manager manages all active sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	registry *game.Registry
	store    *storage.Store
	ctx      context.Context
}

// NewManager creates a session manager. Session goroutines live until
// Remove or Shutdown.
func NewManager(registry *game.Registry, store *storage.Store) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		registry: registry,
		store:    store,
		ctx:      context.Background(),
	}
}

// Create makes a new session, persists it and starts its goroutine.
func (m *Manager) Create(gameType string) (*Session, error) {
	g, err := m.registry.Lookup(gameType)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	code, err := m.allocateCode()
	if err != nil {
		return nil, err
	}
	if err := m.store.CreateSession(code, gameType); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	s := NewSession(code, gameType, g.NewMatch(game.MatchConfig{ID: code}), g.Info().MaxPlayers)
	s.Start(m.ctx)
	m.sessions[code] = s
	log.Info("session [Create]", "code", code, "game", gameType)
	return s, nil
}

// allocateCode picks a code unused in memory and in the store. Caller holds m.mu.
func (m *Manager) allocateCode() (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		if _, taken := m.sessions[code]; taken {
			continue
		}
		if _, err := m.store.GetSession(code); err == nil {
			continue
		}
		return code, nil
	}
	return "", fmt.Errorf("no free session code after %d attempts", codeAttempts)
}

// Get returns a session by code.
func (m *Manager) Get(code string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[code]
	return s, ok
}

func (m *Manager) lookup(code string) (*Session, error) {
	s, ok := m.Get(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, code)
	}
	return s, nil
}

// List returns info for all active sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })
	return infos
}

// Join seats a player in the session with the given code.
func (m *Manager) Join(ctx context.Context, code, playerID string) (*Session, error) {
	s, err := m.lookup(code)
	if err != nil {
		return nil, err
	}
	before := s.Status()
	if err := s.Join(ctx, playerID); err != nil {
		return nil, err
	}
	m.persistStatus(s, before)
	return s, nil
}

// FindOpen returns the oldest waiting session of gameType with a free seat
// that playerID is not already in.
func (m *Manager) FindOpen(gameType, playerID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *Session
	for _, s := range m.sessions {
		if s.GameType != gameType || !s.Open(playerID) {
			continue
		}
		if best == nil || s.CreatedAt.Before(best.CreatedAt) {
			best = s
		}
	}
	return best, best != nil
}

// Matchmake seats playerID in an open session, creating one if none is waiting.
func (m *Manager) Matchmake(ctx context.Context, gameType, playerID string) (*Session, error) {
	if s, ok := m.FindOpen(gameType, playerID); ok {
		joined, err := m.Join(ctx, s.Code, playerID)
		if err == nil {
			return joined, nil
		}
		// lost the seat to a concurrent join; fall through to a fresh session
		log.Debug("session [Matchmake]", "code", s.Code, "err", err)
	}
	s, err := m.Create(gameType)
	if err != nil {
		return nil, err
	}
	return m.Join(ctx, s.Code, playerID)
}

// Apply runs a player's action. When the action finishes the match, the
// results are recorded in the stats store exactly once.
func (m *Manager) Apply(ctx context.Context, code, playerID string, action game.Action) (*Session, error) {
	s, err := m.lookup(code)
	if err != nil {
		return nil, err
	}
	before := s.Status()
	out, err := s.Apply(ctx, playerID, action)
	if err != nil {
		return s, err
	}
	m.persistStatus(s, before)
	if out.Finished {
		m.recordResults(s.Code, out.Results)
	}
	return s, nil
}

// Leave detaches a player's connection. The seat is kept for reconnects.
func (m *Manager) Leave(code, playerID string, send chan []byte) {
	s, ok := m.Get(code)
	if !ok {
		return
	}
	s.Disconnect(playerID, send)
	log.Info("session [Leave]", "code", code, "player", playerID)
}

func (m *Manager) persistStatus(s *Session, before Status) {
	after := s.Status()
	if after == before {
		return
	}
	if err := m.store.UpdateSessionStatus(s.Code, string(after)); err != nil {
		log.Error("session [persistStatus]", "code", s.Code, "status", after, "err", err)
	}
}

// recordResults credits the rank-1 player with a win and everyone else with
// a loss. A result where nobody is ranked below first is a draw and is not
// recorded.
func (m *Manager) recordResults(code string, results []game.PlayerResult) {
	draw := true
	for _, r := range results {
		if r.Rank != 1 {
			draw = false
		}
	}
	if draw {
		log.Info("session [recordResults] draw", "code", code)
		return
	}
	for _, r := range results {
		record := m.store.RecordLoss
		if r.Rank == 1 {
			record = m.store.RecordWin
		}
		if err := record(r.PlayerID); err != nil {
			log.Error("session [recordResults]", "code", code, "player", r.PlayerID, "err", err)
		}
	}
	log.Info("session [recordResults]", "code", code, "results", len(results))
}

// Remove stops a session and deletes it from memory and storage.
func (m *Manager) Remove(code string) {
	m.mu.Lock()
	s, ok := m.sessions[code]
	delete(m.sessions, code)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
	if err := m.store.DeleteSession(code); err != nil {
		log.Error("session [Remove]", "code", code, "err", err)
	}
}

// Shutdown stops every session goroutine.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.Close()
	}
}

// PruneStale marks sessions left over from a previous process as abandoned.
// Matches are kept in memory only and cannot be resumed.
func (m *Manager) PruneStale() error {
	n, err := m.store.MarkAbandoned()
	if err != nil {
		return fmt.Errorf("mark abandoned: %w", err)
	}
	if n > 0 {
		log.Info("session [PruneStale]", "abandoned", n)
	}
	return nil
}

// CleanupLoop removes stale sessions every interval until ctx is done.
func (m *Manager) CleanupLoop(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.cleanup(now, maxAge)
		}
	}
}

// cleanup reaps sessions idle for longer than maxAge and sessions nobody
// joined within emptyGrace.
func (m *Manager) cleanup(now time.Time, maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, s := range m.sessions {
		last := s.LastActive()
		idle := now.Sub(last) > maxAge
		empty := len(s.PlayerIDs()) == 0 && now.Sub(s.CreatedAt) > emptyGrace
		if !idle && !empty {
			continue
		}
		log.Info("session [cleanup]", "code", code, "status", s.Status(), "lastActive", humanize.Time(last))
		s.Close()
		if err := m.store.DeleteSession(code); err != nil {
			log.Error("session [cleanup]", "code", code, "err", err)
		}
		delete(m.sessions, code)
	}
}

func generateCode() (string, error) {
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}
