package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"navalcombat/internal/game"
	"navalcombat/internal/game/naval"
	"navalcombat/internal/session"
	"navalcombat/internal/storage"
)

func TestListGames(t *testing.T) {
	env := setupTestEnv(t)

	var games []game.GameInfo
	resp := getJSON(t, env.ts.URL+"/api/games", &games)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, games, 1)
	assert.Equal(t, naval.Name, games[0].Name)
	assert.Equal(t, 2, games[0].MaxPlayers)
}

func TestCreateSessionValid(t *testing.T) {
	env := setupTestEnv(t)

	code := createSessionViaAPI(t, env.ts, naval.Name, "alice")
	assert.Len(t, code, 4)
	sess, ok := env.mgr.Get(code)
	require.True(t, ok, "session should be in the manager")
	assert.Equal(t, []string{"alice"}, sess.PlayerIDs(), "creator holds a seat")

	row, err := env.store.GetSession(code)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusWaiting, row.Status)
}

func TestCreateSessionRejects(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing fields", `{"gameType":"","playerId":""}`, http.StatusBadRequest},
		{"blank player", `{"gameType":"naval","playerId":"   "}`, http.StatusBadRequest},
		{"invalid body", "not json", http.StatusBadRequest},
		{"unknown game", `{"gameType":"chess","playerId":"alice"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, env.ts.URL+"/api/sessions", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
	assert.Empty(t, env.mgr.List(), "rejected requests leave no sessions behind")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown game", fmt.Errorf("%w: %q", game.ErrUnknownGame, "chess"), http.StatusBadRequest},
		{"missing session", session.ErrMatchNotFound, http.StatusNotFound},
		{"closed session", session.ErrClosed, http.StatusGone},
		{"panic in match", fmt.Errorf("%w: boom", session.ErrInternal), http.StatusInternalServerError},
		{"cancelled", context.Canceled, http.StatusInternalServerError},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestListSessions(t *testing.T) {
	env := setupTestEnv(t)

	first := createSessionViaAPI(t, env.ts, naval.Name, "alice")
	second := createSessionViaAPI(t, env.ts, naval.Name, "bob")

	var infos []session.Info
	resp := getJSON(t, env.ts.URL+"/api/sessions", &infos)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, infos, 2)
	assert.Equal(t, first, infos[0].Code, "oldest first")
	assert.Equal(t, second, infos[1].Code)
}

func TestMatchmake(t *testing.T) {
	env := setupTestEnv(t)

	matchmake := func(playerID string) string {
		t.Helper()
		resp := postJSON(t, env.ts.URL+"/api/matchmake", `{"gameType":"naval","playerId":"`+playerID+`"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var result createSessionResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		return result.Code
	}

	a := matchmake("alice")
	b := matchmake("bob")
	assert.Equal(t, a, b, "bob is paired into alice's session")
	c := matchmake("carol")
	assert.NotEqual(t, a, c, "a full session is skipped")

	sess, _ := env.mgr.Get(a)
	assert.Equal(t, session.StatusPlaying, sess.Status())
}

func TestMatchmakeUnknownGame(t *testing.T) {
	env := setupTestEnv(t)

	resp := postJSON(t, env.ts.URL+"/api/matchmake", `{"gameType":"chess","playerId":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSessionFound(t *testing.T) {
	env := setupTestEnv(t)
	code := createSessionViaAPI(t, env.ts, naval.Name, "alice")

	var info session.Info
	resp := getJSON(t, env.ts.URL+"/api/sessions/"+code, &info)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, code, info.Code)
	assert.Equal(t, naval.Name, info.GameType)
	assert.Equal(t, "alice", info.HostID)
	assert.Len(t, info.Players, 1)
	assert.Empty(t, info.Connected)
}

func TestGetSessionNotFound(t *testing.T) {
	env := setupTestEnv(t)

	resp := getJSON(t, env.ts.URL+"/api/sessions/ZZZZ", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetView(t *testing.T) {
	env := setupTestEnv(t)
	ctx := timeoutCtx(t)
	code, conns := startMatch(t, env)
	play(t, ctx, conns, "alice", makeAction(t, naval.ActionPlaceShip, map[string]any{
		"type": naval.Carrier, "x": 0, "y": 0, "horizontal": true,
	}))

	var own navalSnapshot
	resp := getJSON(t, env.ts.URL+"/api/sessions/"+code+"/view?player=alice", &own)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", own.State.Viewer)
	require.Len(t, own.State.Players["alice"].Ships, 1)
	assert.Len(t, own.State.Players["alice"].Ships[0].Cells, 5)
	assert.NotEmpty(t, own.ValidActions)
	assert.Equal(t, code, own.SessionInfo.Code)

	var rival navalSnapshot
	resp = getJSON(t, env.ts.URL+"/api/sessions/"+code+"/view?player=bob", &rival)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	seen := rival.State.Players["alice"]
	require.Len(t, seen.Ships, 1)
	assert.Empty(t, seen.Ships[0].Cells, "bob sees a redacted carrier")
	assert.Equal(t, naval.MarkHidden, seen.Grid[0][0])

	var spectator navalSnapshot
	resp = getJSON(t, env.ts.URL+"/api/sessions/"+code+"/view", &spectator)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, spectator.ValidActions)
	assert.Empty(t, spectator.State.Players["alice"].Ships[0].Cells)

	resp = getJSON(t, env.ts.URL+"/api/sessions/ZZZZ/view?player=alice", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistory(t *testing.T) {
	env := setupTestEnv(t)
	ctx := timeoutCtx(t)

	waiting := createSessionViaAPI(t, env.ts, naval.Name, "alice")
	_, conns := startMatch(t, env)
	play(t, ctx, conns, "bob", makeAction(t, naval.ActionForfeit, nil))

	var all []storage.SessionRow
	resp := getJSON(t, env.ts.URL+"/api/history", &all)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, all, 2)

	var open []storage.SessionRow
	resp = getJSON(t, env.ts.URL+"/api/history?status="+storage.StatusWaiting, &open)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, open, 1)
	assert.Equal(t, waiting, open[0].Code)
	assert.Equal(t, naval.Name, open[0].GameType)

	var finished []storage.SessionRow
	getJSON(t, env.ts.URL+"/api/history?status="+storage.StatusFinished, &finished)
	require.Len(t, finished, 1)
	assert.Equal(t, storage.StatusFinished, finished[0].Status)

	resp, err := http.Get(env.ts.URL + "/api/history?status=" + storage.StatusAbandoned)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "[]", strings.TrimSpace(string(body)))

	resp = getJSON(t, env.ts.URL+"/api/history?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPlayerStats(t *testing.T) {
	env := setupTestEnv(t)
	require.NoError(t, env.store.RecordWin("alice"))
	require.NoError(t, env.store.RecordLoss("alice"))

	var got statsResponse
	resp := getJSON(t, env.ts.URL+"/api/players/alice/stats", &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", got.PlayerID)
	assert.Equal(t, 1, got.Wins)
	assert.Equal(t, 1, got.Losses)
	assert.NotEmpty(t, got.LastPlayed)
	assert.NotEqual(t, "never", got.LastPlayed)
}

func TestPlayerStatsUnknown(t *testing.T) {
	env := setupTestEnv(t)

	var got statsResponse
	resp := getJSON(t, env.ts.URL+"/api/players/nobody/stats", &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nobody", got.PlayerID)
	assert.Zero(t, got.Wins)
	assert.Zero(t, got.Losses)
	assert.Equal(t, "never", got.LastPlayed)
}

func TestLeaderboard(t *testing.T) {
	env := setupTestEnv(t)
	for _, id := range []string{"alice", "alice", "bob", "carol"} {
		require.NoError(t, env.store.RecordWin(id))
	}
	require.NoError(t, env.store.RecordLoss("bob"))

	var board []storage.PlayerStats
	resp := getJSON(t, env.ts.URL+"/api/leaderboard?limit=2", &board)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, board, 2)
	assert.Equal(t, "alice", board[0].PlayerID)
	assert.Equal(t, "carol", board[1].PlayerID)
}

func TestLeaderboardEmptyAndInvalid(t *testing.T) {
	env := setupTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/api/leaderboard")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "[]", strings.TrimSpace(string(body)))

	for _, limit := range []string{"0", "-3", "ten"} {
		resp := getJSON(t, env.ts.URL+"/api/leaderboard?limit="+limit, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "limit=%s", limit)
	}
}

func TestStaticFiles(t *testing.T) {
	env := setupTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "test")
}
