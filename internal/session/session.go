package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"navalcombat/internal/game"
)

// Status represents the session lifecycle.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	ErrInternal      = errors.New("internal error")
	ErrClosed        = errors.New("session closed")
)

// Player represents a seated player.
type Player struct {
	ID   string
	Send chan []byte // outbound messages; nil while disconnected
}

// Session is one match plus the connections watching it. The match is owned
// by the session goroutine started with Start: every read or write of it goes
// through Do. The mutex only guards the roster and status.
type Session struct {
	Code      string
	GameType  string
	CreatedAt time.Time

	mu         sync.RWMutex
	status     Status
	hostID     string
	players    map[string]*Player
	order      []string
	lastActive time.Time
	maxPlayers int

	match    game.Match
	reported bool // actor only: the finish has been handed out

	cmds chan func()
	done chan struct{}
	stop context.CancelFunc
}

// NewSession creates a session in the waiting state around a fresh match.
func NewSession(code, gameType string, match game.Match, maxPlayers int) *Session {
	now := time.Now()
	return &Session{
		Code:       code,
		GameType:   gameType,
		CreatedAt:  now,
		status:     StatusWaiting,
		players:    make(map[string]*Player),
		lastActive: now,
		maxPlayers: maxPlayers,
		match:      match,
		cmds:       make(chan func()),
		done:       make(chan struct{}),
		stop:       func() {},
	}
}

// Start runs the session goroutine until parent is cancelled or Close is called.
func (s *Session) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.stop = cancel
	go s.Run(ctx)
}

// Run executes queued commands one at a time until ctx is done.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.cmds:
			cmd()
		}
	}
}

// Close stops the session goroutine. Pending and later commands fail with ErrClosed.
func (s *Session) Close() {
	s.stop()
}

// Do runs fn on the session goroutine and waits for its result. ctx only
// bounds the wait for a free slot in the queue. A panic in fn is logged and
// reported as ErrInternal; the session keeps running.
func (s *Session) Do(ctx context.Context, fn func(m game.Match) error) error {
	result := make(chan error, 1)
	cmd := func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("session [Do]", "code", s.Code, "panic", r)
				result <- fmt.Errorf("%w: %v", ErrInternal, r)
			}
		}()
		result <- fn(s.match)
	}

	select {
	case s.cmds <- cmd:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	// Once queued, a command always runs to completion on the session
	// goroutine; its result is never dropped.
	return <-result
}

// Join seats a player in the match.
func (s *Session) Join(ctx context.Context, playerID string) error {
	return s.Do(ctx, func(m game.Match) error {
		if err := m.Join(playerID); err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.players[playerID]; !ok {
			s.players[playerID] = &Player{ID: playerID}
			s.order = append(s.order, playerID)
		}
		if s.hostID == "" {
			s.hostID = playerID
		}
		s.refreshLocked(m)
		return nil
	})
}

// Outcome is what an accepted action changed at the session level.
type Outcome struct {
	Status Status
	// Finished is set exactly once, on the action that ended the match.
	Finished bool
	Results  []game.PlayerResult
}

// Apply runs one player action against the match.
func (s *Session) Apply(ctx context.Context, playerID string, action game.Action) (Outcome, error) {
	var out Outcome
	err := s.Do(ctx, func(m game.Match) error {
		if err := m.ApplyAction(playerID, action); err != nil {
			return err
		}
		s.mu.Lock()
		s.refreshLocked(m)
		out.Status = s.status
		s.mu.Unlock()

		if m.IsOver() && !s.reported {
			s.reported = true
			out.Finished = true
			out.Results = m.Results()
		}
		return nil
	})
	return out, err
}

func (s *Session) refreshLocked(m game.Match) {
	switch {
	case m.IsOver():
		s.status = StatusFinished
	case m.Started():
		s.status = StatusPlaying
	default:
		s.status = StatusWaiting
	}
	s.lastActive = time.Now()
}

// Snapshot is everything one viewer is allowed to see.
type Snapshot struct {
	State        any                 `json:"state"`
	ValidActions []game.Action       `json:"validActions"`
	SessionInfo  Info                `json:"sessionInfo"`
	Results      []game.PlayerResult `json:"results,omitempty"`
}

// Snapshot builds the view of one player (or a spectator).
func (s *Session) Snapshot(ctx context.Context, playerID string) (Snapshot, error) {
	var snap Snapshot
	err := s.Do(ctx, func(m game.Match) error {
		snap = s.snapshot(m, playerID)
		return nil
	})
	return snap, err
}

// Snapshots builds one snapshot per seated player in a single command, so
// every recipient sees the same match state.
func (s *Session) Snapshots(ctx context.Context) (map[string]Snapshot, error) {
	snaps := make(map[string]Snapshot)
	err := s.Do(ctx, func(m game.Match) error {
		for _, id := range s.PlayerIDs() {
			snaps[id] = s.snapshot(m, id)
		}
		return nil
	})
	return snaps, err
}

func (s *Session) snapshot(m game.Match, playerID string) Snapshot {
	snap := Snapshot{
		State:        m.State(playerID),
		ValidActions: m.ValidActions(playerID),
		SessionInfo:  s.Info(),
	}
	if m.IsOver() {
		snap.Results = m.Results()
	}
	return snap
}

// ConnectPlayer attaches a connection's send channel to a seated player. A
// previous connection's channel is closed.
func (s *Session) ConnectPlayer(playerID string, send chan []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return false
	}
	if p.Send != nil {
		close(p.Send)
	}
	p.Send = send
	s.lastActive = time.Now()
	return true
}

// Disconnect detaches send from the player if it is still the current
// connection. The seat is kept so the player can reconnect.
func (s *Session) Disconnect(playerID string, send chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[playerID]; ok && p.Send != nil && p.Send == send {
		close(p.Send)
		p.Send = nil
	}
}

// Broadcast sends each connected player the message render builds for them.
// A nil message is skipped; a full buffer drops the message.
func (s *Session) Broadcast(render func(playerID string) []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, p := range s.players {
		if p.Send == nil {
			continue
		}
		msg := render(id)
		if msg == nil {
			continue
		}
		select {
		case p.Send <- msg:
		default:
			// drop message if buffer full
		}
	}
}

// SendTo delivers msg on send if it is still the player's live connection.
// It reports whether the message was queued.
func (s *Session) SendTo(playerID string, send chan []byte, msg []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[playerID]
	if !ok || send == nil || p.Send != send {
		return false
	}
	select {
	case send <- msg:
		return true
	default:
		return false
	}
}

// PlayerIDs returns seated players in join order.
func (s *Session) PlayerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Status returns the current lifecycle status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LastActive is the time of the last accepted command or connection.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// Open reports whether playerID could take a seat here.
func (s *Session) Open(playerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != StatusWaiting || len(s.order) >= s.maxPlayers {
		return false
	}
	_, seated := s.players[playerID]
	return !seated
}

// Info returns session info for the API.
type Info struct {
	Code      string    `json:"code"`
	GameType  string    `json:"gameType"`
	Status    Status    `json:"status"`
	Players   []string  `json:"players"`
	Connected []string  `json:"connected"`
	HostID    string    `json:"hostId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	connected := make([]string, 0, len(s.order))
	for _, id := range s.order {
		if s.players[id].Send != nil {
			connected = append(connected, id)
		}
	}
	return Info{
		Code:      s.Code,
		GameType:  s.GameType,
		Status:    s.status,
		Players:   append([]string{}, s.order...),
		Connected: connected,
		HostID:    s.hostID,
		CreatedAt: s.CreatedAt,
	}
}
