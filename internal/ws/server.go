// Package ws is the realtime transport: one bidirectional event stream per
// authenticated websocket connection. Authentication happens exactly once,
// at handshake time, before the upgrade; every frame on the connection is
// then attributed to the resolved identity.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/aurorahq/aurora/internal/auth"
	"github.com/aurorahq/aurora/internal/logger"
	"github.com/aurorahq/aurora/internal/orchestrator"
)

// Pipeline is what the transport hands inbound messages to. Satisfied by
// *orchestrator.Orchestrator.
type Pipeline interface {
	Handle(ctx context.Context, sess orchestrator.Session, conversationID uuid.UUID, content string)
}

type Server struct {
	gate     *auth.Gate
	pipeline Pipeline
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewServer(gate *auth.Gate, pipeline Pipeline, log *logger.Logger) *Server {
	return &Server{
		gate:     gate,
		pipeline: pipeline,
		log:      log.With("component", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The bearer token is the access control; origin checks stay
			// permissive so non-browser clients can connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP authenticates the handshake and, on success, upgrades and runs
// the connection's read loop until the peer goes away. A missing or invalid
// token refuses the connection before any event is processed.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := s.gate.Authenticate(extractToken(r))
	if err != nil {
		s.log.Debug("handshake refused", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Debug("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := newConn(wsConn, identity, s.log)
	s.log.Info("connected", "user_id", identity.UserID.String(), "remote", r.RemoteAddr)
	defer func() {
		conn.close()
		s.log.Info("disconnected", "user_id", identity.UserID.String())
	}()

	done := make(chan struct{})
	defer close(done)
	go s.keepalive(conn, done)

	s.readLoop(r.Context(), conn)
}

// readLoop decodes frames and feeds them to the pipeline. Handle persists
// synchronously before returning, so messages from one connection reach the
// log in arrival order; replies come back asynchronously through the Conn.
func (s *Server) readLoop(ctx context.Context, conn *Conn) {
	conn.ws.SetReadLimit(maxFrameSize)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				conn.log.Debug("read loop ended", "error", err)
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			conn.log.Warn("malformed frame skipped", "error", err)
			continue
		}
		if env.Event != eventMessage {
			conn.log.Warn("unknown event skipped", "event", env.Event)
			continue
		}

		var payload messagePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			conn.log.Warn("malformed message payload skipped", "error", err)
			continue
		}
		if payload.ConversationID == uuid.Nil || strings.TrimSpace(payload.Content) == "" {
			conn.log.Warn("incomplete message payload skipped")
			continue
		}

		s.pipeline.Handle(ctx, conn, payload.ConversationID, payload.Content)
	}
}

func (s *Server) keepalive(conn *Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// extractToken pulls the bearer token from the handshake: query parameter,
// Authorization header, then cookie.
func extractToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:]
	}
	if c, err := r.Cookie("token"); err == nil {
		return c.Value
	}
	return ""
}
