package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event is one pipeline update pushed to dashboard clients
type Event struct {
	Type          string                 `json:"type"` // opportunity_status, negotiation_stage, execution_step
	OpportunityID string                 `json:"opportunity_id,omitempty"`
	EntityID      string                 `json:"entity_id,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

// Manager handles WebSocket connections and event broadcast
type Manager struct {
	connections map[string]*connection
	mu          sync.RWMutex
	hub         *hub
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

type connection struct {
	id   string
	conn *websocket.Conn
	send chan Event
}

// hub manages the broadcast of events to connections
type hub struct {
	connections map[*connection]bool
	broadcast   chan Event
	register    chan *connection
	unregister  chan *connection
	stop        chan struct{}
}

// NewManager creates a new WebSocket manager
func NewManager(logger *zap.Logger) *Manager {
	h := &hub{
		connections: make(map[*connection]bool),
		broadcast:   make(chan Event, 256),
		register:    make(chan *connection),
		unregister:  make(chan *connection),
		stop:        make(chan struct{}),
	}
	go h.run()

	return &Manager{
		connections: make(map[string]*connection),
		hub:         h,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// origin checking is handled by the CORS layer in front
				return true
			},
		},
	}
}

func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			h.connections[c] = true
		case c := <-h.unregister:
			if _, ok := h.connections[c]; ok {
				delete(h.connections, c)
				close(c.send)
			}
		case event := <-h.broadcast:
			for c := range h.connections {
				select {
				case c.send <- event:
				default:
					// slow consumer, drop it
					delete(h.connections, c)
					close(c.send)
				}
			}
		case <-h.stop:
			// closing send lets each writePump close its connection
			for c := range h.connections {
				delete(h.connections, c)
				close(c.send)
			}
			return
		}
	}
}

// Publish broadcasts an event to every connected client. Non-blocking;
// events are dropped when the hub buffer is full.
func (m *Manager) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case m.hub.broadcast <- event:
	default:
		m.logger.Warn("Event hub buffer full, dropping event", zap.String("type", event.Type))
	}
}

// HandleConnection upgrades an HTTP request to a WebSocket subscription
func (m *Manager) HandleConnection(c *gin.Context) {
	ws, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		m.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	conn := &connection{
		id:   uuid.New().String(),
		conn: ws,
		send: make(chan Event, 64),
	}

	select {
	case m.hub.register <- conn:
	case <-m.hub.stop:
		// hub already shut down, refuse the subscription
		ws.Close()
		return
	}

	m.mu.Lock()
	m.connections[conn.id] = conn
	m.mu.Unlock()

	go m.writePump(conn)
	go m.readPump(conn)
}

func (m *Manager) writePump(c *connection) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (m *Manager) readPump(c *connection) {
	defer func() {
		select {
		case m.hub.unregister <- c:
		case <-m.hub.stop:
		}
		m.mu.Lock()
		delete(m.connections, c.id)
		m.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close shuts down the hub
func (m *Manager) Close() {
	close(m.hub.stop)
}
