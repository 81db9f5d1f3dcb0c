// Package events carries tiling progress from pipeline runs to a running
// tile server over a WebSocket on a unix socket.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"tilepipe/pkg/logging"
)

// PacketType tags tiling events on the wire.
const PacketType = "tile_event"

type Type string

const (
	ZoomStarted  Type = "zoom_started"
	ZoomFinished Type = "zoom_finished"
	ZoomFailed   Type = "zoom_failed"
)

type Event struct {
	Type  Type      `json:"type"`
	Layer string    `json:"layer"`
	Zoom  int       `json:"zoom"`
	Error string    `json:"error,omitempty"`
	Time  time.Time `json:"time"`
}

// Packet is the envelope of every WebSocket message.
type Packet struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func NewPacket(ev Event) (Packet, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Packet{}, err
	}
	return Packet{Type: PacketType, Payload: payload}, nil
}

// Decode returns the event inside p.
func (p Packet) Decode() (Event, error) {
	if p.Type != PacketType {
		return Event{}, fmt.Errorf("unexpected packet type %q", p.Type)
	}
	var ev Event
	err := json.Unmarshal(p.Payload, &ev)
	return ev, err
}

// Dial opens the event WebSocket of the server listening on socketPath.
func Dial(ctx context.Context, socketPath string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			d := net.Dialer{Timeout: 200 * time.Millisecond}
			return d.DialContext(ctx, "unix", socketPath)
		},
		HandshakeTimeout: time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, "ws://localhost/ws", nil)
	return conn, err
}

// Send delivers ev to the server listening on socketPath.
func Send(ctx context.Context, socketPath string, ev Event) error {
	conn, err := Dial(ctx, socketPath)
	if err != nil {
		return err // Return error so caller can fallback
	}
	defer conn.Close()

	packet, err := NewPacket(ev)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(500 * time.Millisecond))
	if err := conn.WriteJSON(packet); err != nil {
		return err
	}
	return conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(500*time.Millisecond))
}

// Notifier forwards generation progress to a running server. Delivery is
// best effort: without a server the events are dropped.
type Notifier struct {
	Socket string
	now    func() time.Time
}

func (n *Notifier) ZoomStarted(ctx context.Context, layer string, zoom int) {
	n.send(ctx, Event{Type: ZoomStarted, Layer: layer, Zoom: zoom})
}

func (n *Notifier) ZoomFinished(ctx context.Context, layer string, zoom int, err error) {
	ev := Event{Type: ZoomFinished, Layer: layer, Zoom: zoom}
	if err != nil {
		ev.Type = ZoomFailed
		ev.Error = err.Error()
	}
	n.send(ctx, ev)
}

func (n *Notifier) send(ctx context.Context, ev Event) {
	now := time.Now
	if n.now != nil {
		now = n.now
	}
	ev.Time = now().UTC()
	if err := Send(context.WithoutCancel(ctx), n.Socket, ev); err != nil {
		logging.GetLogger(ctx).Debug("event not delivered", "type", ev.Type, "socket", n.Socket, "error", err)
	}
}
