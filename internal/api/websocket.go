package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local analyst tool, origin enforced at the CORS layer
	},
}

// Hub maintains the set of active websocket clients and pushes pipeline
// events to all of them.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			// Write deadline keeps one stuck client from blocking the hub.
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[Stream] Write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades the connection and registers the client.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[Stream] Upgrade failed: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.mutex.Unlock()
	log.Printf("[Stream] Client connected, %d total", total)

	// The hub only pushes; the read loop exists to notice disconnects.
	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[Stream] Read error: %v", err)
				}
				return
			}
		}
	}()
}

// Broadcast sends raw JSON to every connected client.
func (h *Hub) Broadcast(data []byte) {
	h.broadcast <- data
}

// BroadcastProgress publishes one pipeline stage transition.
func (h *Hub) BroadcastProgress(caseID, stage string, elapsed time.Duration) {
	payload, _ := json.Marshal(gin.H{
		"type":       "progress",
		"caseId":     caseID,
		"stage":      stage,
		"elapsedSec": elapsed.Seconds(),
	})
	h.Broadcast(payload)
}

// BroadcastResult publishes the final outcome of an analysis run.
func (h *Hub) BroadcastResult(caseID string, riskScore, alertCount int, status string) {
	payload, _ := json.Marshal(gin.H{
		"type":       "result",
		"caseId":     caseID,
		"status":     status,
		"riskScore":  riskScore,
		"alertCount": alertCount,
	})
	h.Broadcast(payload)
}
