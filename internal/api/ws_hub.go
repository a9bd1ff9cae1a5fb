package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"curve-launchpad/internal/observability"
)

// WSMessage is a JSON message pushed to websocket subscribers on every
// committed trade and every graduation.
type WSMessage struct {
	Type          string `json:"type"` // trade | graduation
	MintID        string `json:"mint_id"`
	Kind          string `json:"kind,omitempty"` // buy | sell
	TokenAmount   int64  `json:"token_amount,omitempty"`
	SolAmount     int64  `json:"sol_amount,omitempty"`
	SolReserves   int64  `json:"sol_reserves,omitempty"`
	TokenReserves int64  `json:"token_reserves,omitempty"`
	PoolReference string `json:"pool_reference,omitempty"`
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

// wsClient pairs a connection with its outbound queue. All writes to the
// connection happen on the writePump goroutine; gorilla/websocket allows at
// most one concurrent writer per conn.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WSHub manages websocket connections and fans out curve updates.
// The clients map is owned by the Run goroutine; everyone else talks to it
// through the register/unregister/broadcast channels.
type WSHub struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	logger     *log.Logger
	count      atomic.Int64
}

// NewWSHub creates a new websocket hub.
func NewWSHub(logger *log.Logger) *WSHub {
	if logger == nil {
		logger = log.Default()
	}
	return &WSHub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		logger:     logger,
	}
}

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.setCount(len(h.clients))
			h.logger.Printf("ws client connected, total=%d", len(h.clients))

		case client := <-h.unregister:
			h.drop(client)

		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow consumer; closing send stops its writePump.
					h.drop(client)
				}
			}
		}
	}
}

// drop removes a client and closes its outbound queue exactly once.
// Only called from the Run goroutine.
func (h *WSHub) drop(client *wsClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.setCount(len(h.clients))
}

func (h *WSHub) setCount(n int) {
	h.count.Store(int64(n))
	observability.DefaultMetrics.WSConnections.Set(float64(n))
}

// ClientCount reports how many clients are currently registered.
func (h *WSHub) ClientCount() int {
	return int(h.count.Load())
}

// Broadcast sends a message to all connected clients. Drops the message
// if the buffer is full rather than blocking trade execution.
func (h *WSHub) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles websocket upgrade requests at GET /api/v1/ws.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("ws upgrade failed: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 64)}
	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

// readPump keeps the connection alive and detects disconnects. Closing the
// conn on exit also terminates the writePump.
func (c *wsClient) readPump(h *WSHub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the single writer for the connection: it drains the send
// queue and keeps the connection alive through proxies with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				// Hub dropped this client.
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
