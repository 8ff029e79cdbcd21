package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/mcp-training/pushmo/game/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// AllRuns subscribes a client to events from every run.
	AllRuns = "*"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message represents a WebSocket message
type Message struct {
	RunID string      `json:"run_id"`
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Client represents a WebSocket client
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	runID string
}

type countRequest struct {
	runID string
	reply chan int
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by run ID
	runs map[string]map[*Client]bool

	// Outbound messages for clients
	broadcast chan *Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	counts chan countRequest
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		runs:       make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		counts:     make(chan countRequest),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case req := <-h.counts:
			req.reply <- len(h.runs[req.runID])
		}
	}
}

// ServeWS upgrades the request and subscribes the client to runID
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, runID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, 256),
		runID: runID,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// BroadcastToRun queues an event for the clients watching runID. It never
// blocks; events are dropped when the queue is full.
func (h *Hub) BroadcastToRun(runID, event string, data interface{}) {
	message := &Message{
		RunID: runID,
		Event: event,
		Data:  data,
	}

	select {
	case h.broadcast <- message:
	default:
		log.Printf("WebSocket broadcast queue full, dropping %s for run %s", event, runID)
	}
}

// PublishProgress forwards a solver progress event; it satisfies service.ProgressFunc
func (h *Hub) PublishProgress(ev service.ProgressEvent) {
	h.BroadcastToRun(ev.RunID, ev.Type, ev)
}

// ClientCount returns the number of clients subscribed to runID. The hub
// must be running.
func (h *Hub) ClientCount(runID string) int {
	reply := make(chan int, 1)
	h.counts <- countRequest{runID: runID, reply: reply}
	return <-reply
}

// registerClient adds a client to a run
func (h *Hub) registerClient(client *Client) {
	if h.runs[client.runID] == nil {
		h.runs[client.runID] = make(map[*Client]bool)
	}
	h.runs[client.runID][client] = true

	log.Printf("Client registered for run %s (total clients: %d)",
		client.runID, len(h.runs[client.runID]))
}

// unregisterClient removes a client from a run
func (h *Hub) unregisterClient(client *Client) {
	if clients, ok := h.runs[client.runID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)

			if len(clients) == 0 {
				delete(h.runs, client.runID)
			}

			log.Printf("Client unregistered from run %s (remaining clients: %d)",
				client.runID, len(clients))
		}
	}
}

// broadcastMessage sends a message to the run's clients and to AllRuns subscribers
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal broadcast message: %v", err)
		return
	}

	h.deliver(h.runs[message.RunID], data)
	if message.RunID != AllRuns {
		h.deliver(h.runs[AllRuns], data)
	}
}

func (h *Hub) deliver(clients map[*Client]bool, data []byte) {
	for client := range clients {
		select {
		case client.send <- data:
		default:
			// Client's send channel is full, close it
			h.unregisterClient(client)
		}
	}
}

// readPump keeps the connection alive and detects disconnects
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// Incoming messages are ignored
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
