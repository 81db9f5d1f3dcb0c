package events

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	clientBuffer = 32
	writeWait    = 2 * time.Second
)

// Hub fans events out to every connected WebSocket client. Clients that
// connected over a unix socket may also publish by sending event packets;
// packets from other clients are ignored.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn      *websocket.Conn
	send      chan Packet
	publisher bool
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// Tiles are served with permissive CORS, events follow suit.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[*client]struct{}{},
	}
}

// Publish queues ev for every client. Slow clients drop events.
func (h *Hub) Publish(ev Event) {
	packet, err := NewPacket(ev)
	if err != nil {
		slog.Warn("failed to encode event", "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- packet:
		default:
			slog.Debug("dropping event for slow client", "remote", c.conn.RemoteAddr())
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan Packet, clientBuffer), publisher: fromUnixSocket(r)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	go h.writeLoop(c, done)
	h.readLoop(c)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(done)
}

func (h *Hub) readLoop(c *client) {
	defer c.conn.Close()
	for {
		var packet Packet
		if err := c.conn.ReadJSON(&packet); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("ws read error", "error", err)
			}
			return
		}
		if !c.publisher {
			slog.Debug("ignoring packet from subscriber", "remote", c.conn.RemoteAddr())
			continue
		}
		ev, err := packet.Decode()
		if err != nil {
			slog.Debug("ignoring packet", "error", err)
			continue
		}
		slog.Info("tile event", "type", ev.Type, "layer", ev.Layer, "zoom", ev.Zoom)
		h.Publish(ev)
	}
}

func (h *Hub) writeLoop(c *client, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case packet := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(packet); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

func fromUnixSocket(r *http.Request) bool {
	addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr)
	return ok && addr.Network() == "unix"
}
