package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"

	"navalcombat/internal/game"
	"navalcombat/internal/session"
)

// Message types on the websocket.
const (
	msgJoin   = "join"
	msgAction = "action"
	msgLeave  = "leave"
	msgState  = "state"
	msgError  = "error"
)

// WSMessage is the JSON envelope for WebSocket messages.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	PlayerID string `json:"playerId"`
}

type actionPayload struct {
	Action game.Action `json:"action"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if _, ok := s.manager.Get(code); !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // allow any origin for dev
	})
	if err != nil {
		log.Error("server [handleWebSocket] accept", "err", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()

	// First message must be a join
	_, data, err := conn.Read(ctx)
	if err != nil {
		return
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != msgJoin {
		sendWSError(ctx, conn, "first message must be a join")
		return
	}
	var join joinPayload
	if err := json.Unmarshal(msg.Payload, &join); err != nil || join.PlayerID == "" {
		sendWSError(ctx, conn, "invalid join payload")
		return
	}
	playerID := join.PlayerID

	// Joining a seat the player already holds is a reconnect
	sess, err := s.manager.Join(ctx, code, playerID)
	if err != nil {
		sendWSError(ctx, conn, err.Error())
		return
	}
	send := make(chan []byte, 64)
	sess.ConnectPlayer(playerID, send)
	log.Info("server [handleWebSocket] connected", "code", code, "player", playerID)

	defer func() {
		s.manager.Leave(code, playerID, send)
		s.broadcastState(context.Background(), sess)
	}()

	// Notify all players about the roster change
	s.broadcastState(ctx, sess)

	// Writer goroutine: send messages from the channel to the websocket
	go func() {
		for msg := range send {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}()

	limiter := rate.NewLimiter(s.msgRate, s.msgBurst)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		if !limiter.Allow() {
			sendWSMsg(sess, playerID, send, msgError, errorPayload{Message: "rate limit exceeded"})
			continue
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sendWSMsg(sess, playerID, send, msgError, errorPayload{Message: "invalid message"})
			continue
		}
		if !s.handleMessage(ctx, sess, playerID, send, msg) {
			break
		}
	}
	log.Info("server [handleWebSocket] disconnected", "code", code, "player", playerID)
}

// handleMessage processes one inbound message and reports whether the
// connection should keep reading.
func (s *Server) handleMessage(ctx context.Context, sess *session.Session, playerID string, send chan []byte, msg WSMessage) bool {
	switch msg.Type {
	case msgAction:
		var ap actionPayload
		if err := json.Unmarshal(msg.Payload, &ap); err != nil || ap.Action.Type == "" {
			sendWSMsg(sess, playerID, send, msgError, errorPayload{Message: "invalid action payload"})
			return true
		}
		if _, err := s.manager.Apply(ctx, sess.Code, playerID, ap.Action); err != nil {
			log.Debug("server [handleMessage] rejected", "code", sess.Code, "player", playerID, "action", ap.Action.Type, "err", err)
			sendWSMsg(sess, playerID, send, msgError, errorPayload{Message: err.Error()})
			return true
		}
		s.broadcastState(ctx, sess)
		return true

	case msgLeave:
		return false

	default:
		sendWSMsg(sess, playerID, send, msgError, errorPayload{Message: "unknown message type: " + msg.Type})
		return true
	}
}

// broadcastState pushes each connected player their own view of the match.
func (s *Server) broadcastState(ctx context.Context, sess *session.Session) {
	snaps, err := sess.Snapshots(ctx)
	if err != nil {
		log.Error("server [broadcastState]", "code", sess.Code, "err", err)
		return
	}
	sess.Broadcast(func(playerID string) []byte {
		snap, ok := snaps[playerID]
		if !ok {
			return nil
		}
		return encodeWS(msgState, snap)
	})
}

func encodeWS(msgType string, payload any) []byte {
	p, _ := json.Marshal(payload)
	msg, _ := json.Marshal(WSMessage{Type: msgType, Payload: p})
	return msg
}

func sendWSMsg(sess *session.Session, playerID string, send chan []byte, msgType string, payload any) {
	sess.SendTo(playerID, send, encodeWS(msgType, payload))
}

func sendWSError(ctx context.Context, conn *websocket.Conn, message string) {
	conn.Write(ctx, websocket.MessageText, encodeWS(msgError, errorPayload{Message: message}))
}
