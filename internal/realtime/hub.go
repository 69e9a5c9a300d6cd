package realtime

import (
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/comanda/internal/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Hub serves the change feed to terminals over websockets. A terminal
// authenticates with its token and receives every event of its own
// restaurant.
type Hub struct {
	bus      Bus
	secret   string
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]utils.TerminalIdentity
}

func NewHub(bus Bus, secret string) *Hub {
	return &Hub{
		bus:    bus,
		secret: secret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*websocket.Conn]utils.TerminalIdentity),
	}
}

func tokenFrom(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := utils.ParseTerminalToken(h.secret, tokenFrom(r))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Realtime] upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = identity
	h.mu.Unlock()
	log.Printf("[Realtime] terminal %s connected for restaurant %s", identity.TerminalID, identity.RestaurantID)

	events, cancel := h.bus.Subscribe(identity.RestaurantID)
	done := make(chan struct{})

	go h.readPump(conn, done)
	h.writePump(conn, identity, events, done)

	cancel()
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
	log.Printf("[Realtime] terminal %s disconnected", identity.TerminalID)
}

// readPump only exists to process pongs and notice the peer going away.
func (h *Hub) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, identity utils.TerminalIdentity, events <-chan Event, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	// A fresh connection may have missed anything; start with a full refresh.
	hello := Event{RestaurantID: identity.RestaurantID, Op: OpResync, At: time.Now().UTC()}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(hello); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Clients reports how many terminals are connected.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
