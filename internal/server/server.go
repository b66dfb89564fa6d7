package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"navalcombat/internal/game"
	"navalcombat/internal/session"
	"navalcombat/internal/storage"
)

const (
	defaultMessageRate  = rate.Limit(10)
	defaultMessageBurst = 20

	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

// Server is the HTTP server.
type Server struct {
	mux      *http.ServeMux
	registry *game.Registry
	manager  *session.Manager
	store    *storage.Store
	webFS    fs.FS

	msgRate  rate.Limit
	msgBurst int
}

type Option func(*Server)

// WithMessageRate limits how many websocket messages per second one
// connection may send, with the given burst.
func WithMessageRate(r rate.Limit, burst int) Option {
	return func(s *Server) {
		s.msgRate = r
		s.msgBurst = burst
	}
}

// New creates a server with all routes. webFS holds the static client.
func New(registry *game.Registry, manager *session.Manager, store *storage.Store, webFS fs.FS, opts ...Option) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		registry: registry,
		manager:  manager,
		store:    store,
		webFS:    webFS,
		msgRate:  defaultMessageRate,
		msgBurst: defaultMessageBurst,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	// API routes
	s.mux.HandleFunc("GET /api/games", s.handleListGames)
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("POST /api/matchmake", s.handleMatchmake)
	s.mux.HandleFunc("GET /api/sessions/{code}", s.handleGetSession)
	s.mux.HandleFunc("GET /api/sessions/{code}/view", s.handleGetView)
	s.mux.HandleFunc("GET /api/sessions/{code}/ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/players/{id}/stats", s.handlePlayerStats)
	s.mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)

	// Static files
	s.mux.Handle("/", http.FileServer(http.FS(s.webFS)))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.List())
}

type createSessionRequest struct {
	GameType string `json:"gameType"`
	PlayerID string `json:"playerId"`
}

type createSessionResponse struct {
	Code string `json:"code"`
}

func decodeSessionRequest(w http.ResponseWriter, r *http.Request) (createSessionRequest, bool) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	req.GameType = strings.TrimSpace(req.GameType)
	req.PlayerID = strings.TrimSpace(req.PlayerID)
	if req.GameType == "" || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "gameType and playerId required")
		return req, false
	}
	return req, true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSessionRequest(w, r)
	if !ok {
		return
	}

	sess, err := s.manager.Create(req.GameType)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if _, err := s.manager.Join(r.Context(), sess.Code, req.PlayerID); err != nil {
		s.manager.Remove(sess.Code)
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{Code: sess.Code})
}

func (s *Server) handleMatchmake(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSessionRequest(w, r)
	if !ok {
		return
	}

	sess, err := s.manager.Matchmake(r.Context(), req.GameType, req.PlayerID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.broadcastState(r.Context(), sess)
	writeJSON(w, http.StatusOK, createSessionResponse{Code: sess.Code})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	sess, ok := s.manager.Get(code)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

// handleGetView returns the snapshot one viewer would receive over the
// websocket. Without ?player= the caller is treated as a spectator.
func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	sess, ok := s.manager.Get(code)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	viewer := strings.TrimSpace(r.URL.Query().Get("player"))
	snap, err := sess.Snapshot(r.Context(), viewer)
	if err != nil {
		log.Error("server [handleGetView]", "code", code, "player", viewer, "err", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

var historyStatuses = map[string]bool{
	"":                      true,
	storage.StatusWaiting:   true,
	storage.StatusPlaying:   true,
	storage.StatusFinished:  true,
	storage.StatusAbandoned: true,
}

// handleHistory lists stored sessions, newest first, optionally filtered
// by ?status=.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if !historyStatuses[status] {
		writeError(w, http.StatusBadRequest, "unknown status: "+status)
		return
	}
	rows, err := s.store.ListSessions(status)
	if err != nil {
		log.Error("server [handleHistory]", "status", status, "err", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if rows == nil {
		rows = []storage.SessionRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

type statsResponse struct {
	storage.PlayerStats
	LastPlayed string `json:"lastPlayed"`
}

func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, err := s.store.Stats(id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		writeJSON(w, http.StatusOK, statsResponse{
			PlayerStats: storage.PlayerStats{PlayerID: id},
			LastPlayed:  "never",
		})
	case err != nil:
		log.Error("server [handlePlayerStats]", "player", id, "err", err)
		writeError(w, http.StatusInternalServerError, "stats unavailable")
	default:
		writeJSON(w, http.StatusOK, statsResponse{
			PlayerStats: *st,
			LastPlayed:  humanize.Time(st.LastPlayed),
		})
	}
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLeaderboardSize)
	}
	board, err := s.store.Leaderboard(limit)
	if err != nil {
		log.Error("server [handleLeaderboard]", "err", err)
		writeError(w, http.StatusInternalServerError, "leaderboard unavailable")
		return
	}
	if board == nil {
		board = []storage.PlayerStats{}
	}
	writeJSON(w, http.StatusOK, board)
}

// statusFor maps a manager error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrUnknownGame):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrMatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
