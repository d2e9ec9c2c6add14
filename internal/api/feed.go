package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"comanda/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // kitchen monitor runs on the local network
	},
}

// Feed broadcasts kitchen queue changes to connected monitor clients.
// It satisfies the kitchen package's Broadcaster interface.
type Feed struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
	log     zerolog.Logger
}

// feedEvent is the wire format of one monitor update.
type feedEvent struct {
	Event string               `json:"event"`
	Order *models.KitchenOrder `json:"order"`
}

// NewFeed creates an empty monitor feed.
func NewFeed(log zerolog.Logger) *Feed {
	return &Feed{
		clients: make(map[*websocket.Conn]chan []byte),
		log:     log.With().Str("component", "monitor-feed").Logger(),
	}
}

// Broadcast fans an event out to every connected client. Slow clients
// drop messages rather than blocking the caller.
func (f *Feed) Broadcast(event string, order *models.KitchenOrder) {
	payload, err := json.Marshal(feedEvent{Event: event, Order: order})
	if err != nil {
		f.log.Error().Err(err).Msg("marshal feed event")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for conn, send := range f.clients {
		select {
		case send <- payload:
		default:
			f.log.Warn().Msg("dropping slow monitor client")
			close(send)
			delete(f.clients, conn)
			conn.Close()
		}
	}
}

// Handle upgrades the request and streams queue events until the
// client disconnects.
func (f *Feed) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		f.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	send := make(chan []byte, 256)
	f.mu.Lock()
	f.clients[conn] = send
	f.mu.Unlock()

	go f.writePump(conn, send)
	go f.readPump(conn)
}

func (f *Feed) writePump(conn *websocket.Conn, send chan []byte) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case payload, ok := <-send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				f.disconnect(conn)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				f.disconnect(conn)
				return
			}
		}
	}
}

// readPump discards inbound frames; the monitor is read-only. Its job
// is detecting the disconnect.
func (f *Feed) readPump(conn *websocket.Conn) {
	defer f.disconnect(conn)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *Feed) disconnect(conn *websocket.Conn) {
	f.mu.Lock()
	if send, ok := f.clients[conn]; ok {
		close(send)
		delete(f.clients, conn)
	}
	f.mu.Unlock()
	conn.Close()
}
