package chessserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/chessd/internal/broadcast"
)

const (
	// writeWait bounds a single outbound frame write.
	writeWait = 10 * time.Second
	// pongWait is how long a connection may stay silent before it is
	// considered dead.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize bounds inbound command frames.
	maxMessageSize = 1024
)

// Inbound command actions.
const (
	ActionJoin  = "session.join"
	ActionLeave = "session.leave"
	ActionMove  = "session.move"
)

// Command is the inbound client message.
type Command struct {
	Action      string `json:"action"`
	Participant string `json:"participant,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
	Move        string `json:"move,omitempty"`
}

// Gateway upgrades HTTP requests to WebSocket connections and bridges them
// onto the coordinating service. Each connection gets one outbox; a closed
// socket triggers the same cleanup as an explicit leave.
type Gateway struct {
	logger       *zap.Logger
	service      *Service
	outboxBuffer int
	upgrader     websocket.Upgrader
}

// NewGateway creates a WebSocket gateway.
//
// Precondition: logger and service must be non-nil; outboxBuffer must be
// positive.
func NewGateway(logger *zap.Logger, service *Service, outboxBuffer int) *Gateway {
	return &Gateway{
		logger:       logger,
		service:      service,
		outboxBuffer: outboxBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and runs the connection until it closes.
func (gw *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := gw.upgrader.Upgrade(w, r, nil)
	if err != nil {
		gw.logger.Warn("websocket upgrade failed",
			zap.String("remote", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := &connection{
		gw:     gw,
		conn:   conn,
		outbox: broadcast.NewOutbox(uuid.NewString(), gw.outboxBuffer),
	}
	gw.service.Router().Subscribe(broadcast.LobbyChannel, c.outbox)

	go c.writePump()
	c.readPump()
}

// connection is one client socket. participant and sessionID are set by the
// first successful join and only touched from the readPump goroutine.
type connection struct {
	gw     *Gateway
	conn   *websocket.Conn
	outbox *broadcast.Outbox

	participant string
	sessionID   string
}

// readPump consumes inbound commands until the socket dies, then runs
// disconnect cleanup for the bound participant.
func (c *connection) readPump() {
	defer func() {
		c.gw.service.Router().Drop(c.outbox)
		_ = c.conn.Close()
		if c.participant != "" {
			c.gw.service.Disconnect(c.participant)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.gw.logger.Debug("websocket read error",
					zap.String("subscriber", c.outbox.ID()),
					zap.Error(err),
				)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.send(errEnvelope("", "", CodeBadRequest, "malformed command"))
			continue
		}
		c.dispatch(cmd)
	}
}

// dispatch routes one inbound command onto the service.
func (c *connection) dispatch(cmd Command) {
	switch cmd.Action {
	case ActionJoin:
		g, err := c.gw.service.Join(cmd.Participant)
		if err != nil {
			c.send(errEnvelope(cmd.SessionID, cmd.Participant, ErrorCode(err), err.Error()))
			return
		}
		c.participant = cmd.Participant
		c.sessionID = g.ID
		c.gw.service.Router().Subscribe(broadcast.SessionChannel(g.ID), c.outbox)
		c.send(stateEnvelope(broadcast.KindJoined, g, cmd.Participant))

	case ActionLeave:
		id, name := c.resolve(cmd)
		g, err := c.gw.service.Leave(id, name)
		if err != nil {
			c.gw.service.PublishError(id, name, err)
			return
		}
		c.gw.service.Router().Unsubscribe(broadcast.SessionChannel(g.ID), c.outbox)
		c.participant = ""
		c.sessionID = ""

	case ActionMove:
		id, name := c.resolve(cmd)
		if _, err := c.gw.service.Move(id, name, cmd.Move); err != nil {
			c.gw.service.PublishError(id, name, err)
		}

	default:
		c.send(errEnvelope(cmd.SessionID, cmd.Participant, CodeBadRequest, "unknown action "+cmd.Action))
	}
}

// resolve fills a command's session and participant from the connection
// binding when the client omitted them.
func (c *connection) resolve(cmd Command) (id, name string) {
	id = cmd.SessionID
	if id == "" {
		id = c.sessionID
	}
	name = cmd.Participant
	if name == "" {
		name = c.participant
	}
	return id, name
}

// send delivers an envelope to this connection only.
func (c *connection) send(e broadcast.Envelope) {
	if err := c.outbox.Push(e); err != nil {
		c.gw.logger.Warn("direct delivery failed",
			zap.String("subscriber", c.outbox.ID()),
			zap.Error(err),
		)
	}
}

// writePump drains the outbox onto the socket and keeps the connection
// alive with pings.
func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case e, ok := <-c.outbox.C():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func errEnvelope(sessionID, sender, code, content string) broadcast.Envelope {
	return broadcast.Envelope{
		Kind:      broadcast.KindError,
		SessionID: sessionID,
		Sender:    sender,
		Code:      code,
		Content:   content,
	}
}
