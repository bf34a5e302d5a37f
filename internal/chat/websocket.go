// Package chat serves the live-chat websocket channel: each frame a client
// sends is one turn, each frame it receives is that turn's result.
package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"maitred/internal/conversation"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 16
)

// TurnHandler runs turns
type TurnHandler interface {
	HandleTurn(ctx context.Context, in conversation.Turn) (*conversation.TurnResult, error)
}

// Inbound is one client frame
type Inbound struct {
	Customer conversation.Customer `json:"customer"`
	Event    conversation.Event    `json:"event"`
}

// Outbound is one server frame
type Outbound struct {
	Result *conversation.TurnResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

// Handler upgrades chat connections
type Handler struct {
	turns    TurnHandler
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHandler creates a websocket handler. allowedOrigins empty accepts any origin.
func NewHandler(turns TurnHandler, allowedOrigins []string, log zerolog.Logger) *Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Handler{
		turns: turns,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return len(origins) == 0 || origins[r.Header.Get("Origin")]
			},
		},
		log: log.With().Str("component", "chat").Logger(),
	}
}

// Register mounts the websocket route behind the given middleware
func (h *Handler) Register(r gin.IRouter, middleware ...gin.HandlerFunc) {
	handlers := append(middleware, h.serve)
	r.GET("/ws/tenants/:tenant/conversations/:conversation", handlers...)
}

// connection is one websocket client bound to a conversation
type connection struct {
	conn           *websocket.Conn
	send           chan []byte
	turns          TurnHandler
	tenantID       string
	conversationID string
	log            zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func (h *Handler) serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to upgrade connection")
		return
	}

	ws := &connection{
		conn:           conn,
		send:           make(chan []byte, sendBuffer),
		turns:          h.turns,
		tenantID:       c.Param("tenant"),
		conversationID: c.Param("conversation"),
		log: h.log.With().
			Str("tenant", c.Param("tenant")).
			Str("conversation", c.Param("conversation")).
			Logger(),
		done: make(chan struct{}),
	}
	ws.log.Debug().Msg("chat connected")

	go ws.writePump()
	go ws.readPump()
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump handles frames in arrival order so turns of one client never overlap
func (c *connection) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.close()
		c.conn.Close()
		c.log.Debug().Msg("chat disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}
		c.handleMessage(ctx, message)
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *connection) handleMessage(ctx context.Context, message []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("turn panicked")
			c.push(Outbound{Error: "internal error"})
		}
	}()

	var in Inbound
	decodeErr := json.Unmarshal(message, &in)
	if decodeErr != nil {
		// the turn still runs so the customer gets the clarifying reply for their step
		in.Event = conversation.Event{}
	}

	result, err := c.turns.HandleTurn(ctx, conversation.Turn{
		TenantID:       c.tenantID,
		ConversationID: c.conversationID,
		Customer:       in.Customer,
		Event:          in.Event,
	})
	out := Outbound{Result: result}
	switch {
	case decodeErr != nil:
		out.Error = "invalid message: " + decodeErr.Error()
	case err != nil:
		c.log.Warn().Err(err).Str("event", string(in.Event.Kind)).Msg("turn failed")
		out.Error = err.Error()
	}
	c.push(out)
}

// push queues a frame, dropping it if the client stopped reading
func (c *connection) push(out Outbound) {
	data, err := json.Marshal(out)
	if err != nil {
		c.log.Error().Err(err).Msg("marshal outbound frame")
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.log.Warn().Msg("websocket buffer full, dropping message")
	}
}
