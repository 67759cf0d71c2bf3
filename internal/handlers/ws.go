package handlers

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jiuwen-dev/agent-studio/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// WorkflowEvent is pushed to connected clients whenever a workflow changes
// state (started, updated, deleted).
type WorkflowEvent struct {
	Type        string `json:"type"`
	WorkflowID  uint   `json:"workflow_id"`
	Status      string `json:"status,omitempty"`
	ExecutionID string `json:"execution_id,omitempty"`
}

// wsClient serializes writes to one connection. Broadcasts and pings arrive
// from different goroutines and the connection allows a single writer.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) writeJSON(value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return c.conn.WriteJSON(value)
}

func (c *wsClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

type EventHub struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool
}

func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[*wsClient]bool)}
}

func (hub *EventHub) Broadcast(event WorkflowEvent) {
	hub.mu.RLock()
	clients := make([]*wsClient, 0, len(hub.clients))
	for client := range hub.clients {
		clients = append(clients, client)
	}
	hub.mu.RUnlock()

	for _, client := range clients {
		if err := client.writeJSON(event); err != nil {
			log.Printf("Failed to broadcast workflow event: %v", err)
			hub.remove(client)
			client.conn.Close()
		}
	}
}

func (hub *EventHub) add(client *wsClient) {
	hub.mu.Lock()
	hub.clients[client] = true
	hub.mu.Unlock()
}

func (hub *EventHub) remove(client *wsClient) {
	hub.mu.Lock()
	delete(hub.clients, client)
	hub.mu.Unlock()
}

// WebSocket upgrades the request and keeps the connection subscribed to
// workflow events until the client goes away.
func (hub *EventHub) WebSocket(c *gin.Context) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			for _, allowed := range types.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Failed to set initial read deadline: %v", err)
		conn.Close()
		return
	}
	conn.SetPongHandler(func(string) error {
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Failed to set read deadline in pong handler: %v", err)
		}
		return nil
	})

	client := &wsClient{conn: conn}

	hub.add(client)

	defer func() {
		hub.remove(client)
		conn.Close()
		log.Printf("WebSocket connection closed")
	}()

	if err := client.writeJSON(map[string]string{
		"type":    "connected",
		"message": "WebSocket connection established",
	}); err != nil {
		log.Printf("Failed to send welcome message: %v", err)
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	go func() {
		for range ticker.C {
			if err := client.ping(); err != nil {
				return
			}
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			break
		}

		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}
