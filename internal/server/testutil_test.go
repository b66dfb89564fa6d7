package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"navalcombat/internal/game"
	"navalcombat/internal/game/naval"
	"navalcombat/internal/session"
	"navalcombat/internal/storage"
)

// --- Test environment ---

type testEnv struct {
	ts    *httptest.Server
	mgr   *session.Manager
	store *storage.Store
}

func setupTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	store, err := storage.New(":memory:")
	require.NoError(t, err, "open db")
	t.Cleanup(func() { store.Close() })

	reg := game.NewRegistry()
	reg.Register(naval.Naval{})
	mgr := session.NewManager(reg, store)
	t.Cleanup(mgr.Shutdown)

	webFS := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html><body>test</body></html>")},
	}
	srv := New(reg, mgr, store, webFS, opts...)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, mgr: mgr, store: store}
}

// --- Context helpers ---

func timeoutCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// --- REST API helpers ---

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err, "POST %s", url)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err, "GET %s", url)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v), "decode %s", url)
	}
	return resp
}

func createSessionViaAPI(t *testing.T, ts *httptest.Server, gameType, playerID string) string {
	t.Helper()
	body := fmt.Sprintf(`{"gameType":%q,"playerId":%q}`, gameType, playerID)
	resp := postJSON(t, ts.URL+"/api/sessions", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result createSessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result.Code
}

// --- WebSocket helpers ---

func wsURL(ts *httptest.Server, code string) string {
	return strings.Replace(ts.URL, "http://", "ws://", 1) + "/api/sessions/" + code + "/ws"
}

// wsDial opens a WebSocket without joining. The connection is closed on cleanup.
func wsDial(t *testing.T, ctx context.Context, ts *httptest.Server, code string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, wsURL(ts, code), nil)
	require.NoError(t, err, "ws dial")
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

// wsConnect dials, joins as playerID and consumes the state sent on join.
func wsConnect(t *testing.T, ctx context.Context, ts *httptest.Server, code, playerID string) *websocket.Conn {
	t.Helper()
	conn := wsDial(t, ctx, ts, code)
	wsSend(t, ctx, conn, msgJoin, joinPayload{PlayerID: playerID})
	readState(t, ctx, conn)
	return conn
}

func wsSend(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, encodeWS(msgType, payload)), "ws write")
}

func wsRead(t *testing.T, ctx context.Context, conn *websocket.Conn) WSMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err, "ws read")
	var msg WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// navalSnapshot mirrors session.Snapshot with the naval view decoded.
type navalSnapshot struct {
	State        naval.View          `json:"state"`
	ValidActions []game.Action       `json:"validActions"`
	SessionInfo  session.Info        `json:"sessionInfo"`
	Results      []game.PlayerResult `json:"results"`
}

// readState reads a WebSocket message and expects it to be a "state" message.
func readState(t *testing.T, ctx context.Context, conn *websocket.Conn) navalSnapshot {
	t.Helper()
	msg := wsRead(t, ctx, conn)
	require.Equal(t, msgState, msg.Type, "payload: %s", msg.Payload)
	var snap navalSnapshot
	require.NoError(t, json.Unmarshal(msg.Payload, &snap))
	return snap
}

// readError reads a WebSocket message and expects it to be an "error" message.
func readError(t *testing.T, ctx context.Context, conn *websocket.Conn) string {
	t.Helper()
	msg := wsRead(t, ctx, conn)
	require.Equal(t, msgError, msg.Type, "payload: %s", msg.Payload)
	var ep errorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &ep))
	return ep.Message
}

// --- Game helpers ---

func makeAction(t *testing.T, typ string, payload any) actionPayload {
	t.Helper()
	a := game.Action{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		a.Payload = raw
	}
	return actionPayload{Action: a}
}

type placement struct {
	typ        naval.ShipType
	x, y       int
	horizontal bool
}

// Both players use this fleet; it covers rows 0 to 2 from column 0.
var testFleet = []placement{
	{naval.Carrier, 0, 0, true},
	{naval.Battleship, 0, 1, true},
	{naval.Corvette, 0, 2, true},
}

// deploymentActions lays testFleet, two mines in mineRow and readies up.
func deploymentActions(t *testing.T, mineRow int) []actionPayload {
	t.Helper()
	var actions []actionPayload
	for _, p := range testFleet {
		actions = append(actions, makeAction(t, naval.ActionPlaceShip, map[string]any{
			"type": p.typ, "x": p.x, "y": p.y, "horizontal": p.horizontal,
		}))
	}
	for _, x := range []int{3, 4} {
		actions = append(actions, makeAction(t, naval.ActionPlaceMine, map[string]int{"x": x, "y": mineRow}))
	}
	return append(actions, makeAction(t, naval.ActionReady, nil))
}

func attack(t *testing.T, x, y int) actionPayload {
	t.Helper()
	return makeAction(t, naval.ActionAttack, map[string]int{"x": x, "y": y})
}

// play sends one accepted action and returns the state every connection
// receives for it, keyed like conns.
func play(t *testing.T, ctx context.Context, conns map[string]*websocket.Conn, playerID string, a actionPayload) map[string]navalSnapshot {
	t.Helper()
	wsSend(t, ctx, conns[playerID], msgAction, a)
	snaps := make(map[string]navalSnapshot, len(conns))
	for id, conn := range conns {
		snaps[id] = readState(t, ctx, conn)
	}
	return snaps
}
