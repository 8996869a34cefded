package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/aurorahq/aurora/internal/auth"
	"github.com/aurorahq/aurora/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 64 << 10
)

// envelope is the wire frame: every event in either direction is
// {"event": ..., "data": ...} as a JSON text frame.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Event names.
const (
	eventMessage = "message" // inbound user message
	eventReply   = "reply"   // outbound generated reply
	eventTitle   = "title"   // outbound derived conversation title
)

type messagePayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Content        string    `json:"content"`
}

type replyPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Content        string    `json:"content"`
}

type titlePayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Title          string    `json:"title"`
}

// Conn is one authenticated websocket connection. It implements the
// orchestrator's Session: the identity resolved at handshake time plus the
// two outbound emissions. gorilla allows a single concurrent writer, so all
// writes go through one mutex.
type Conn struct {
	ws       *websocket.Conn
	identity auth.Identity
	log      *logger.Logger

	writeMu sync.Mutex
	closed  bool
}

func newConn(ws *websocket.Conn, identity auth.Identity, log *logger.Logger) *Conn {
	return &Conn{
		ws:       ws,
		identity: identity,
		log:      log.With("user_id", identity.UserID.String()),
	}
}

func (c *Conn) Identity() auth.Identity {
	return c.identity
}

// EmitReply sends the generated (or placeholder) reply. A write failure
// means the peer went away mid-run; it is logged and swallowed.
func (c *Conn) EmitReply(conversationID uuid.UUID, content string) {
	c.emit(eventReply, replyPayload{ConversationID: conversationID, Content: content})
}

// EmitTitle notifies the client of a newly derived conversation title.
func (c *Conn) EmitTitle(conversationID uuid.UUID, title string) {
	c.emit(eventTitle, titlePayload{ConversationID: conversationID, Title: title})
}

func (c *Conn) emit(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("marshal outbound event", "event", event, "error", err)
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		c.log.Debug("dropping event for closed connection", "event", event)
		return
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(envelope{Event: event, Data: data}); err != nil {
		c.log.Debug("emit failed, peer likely gone", "event", event, "error", err)
	}
}

func (c *Conn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *Conn) close() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.ws.Close()
}
