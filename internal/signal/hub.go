// Package signal relays WebRTC signaling messages between browser peers
// over WebSocket. Peers are told their id on connect; a message carrying a
// "to" id goes to that peer only, anything else is broadcast to all others.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

const (
	maxMessageBytes = 1 << 20
	writeTimeout    = 5 * time.Second
	sendQueueSize   = 32
)

type outbound struct {
	typ  websocket.MessageType
	data []byte
}

// peer owns one connection. Only writeLoop writes to conn after the
// greeting, so a slow reader stalls its own queue and nobody else's.
type peer struct {
	id   string
	conn *websocket.Conn
	send chan outbound
	done chan struct{}
}

func newPeer(conn *websocket.Conn) *peer {
	return &peer{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan outbound, sendQueueSize),
		done: make(chan struct{}),
	}
}

// enqueue never blocks; a full queue drops the message.
func (p *peer) enqueue(typ websocket.MessageType, data []byte) bool {
	select {
	case p.send <- outbound{typ: typ, data: data}:
		return true
	default:
		return false
	}
}

func (p *peer) writeLoop() {
	for {
		select {
		case <-p.done:
			return
		case msg := <-p.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := p.conn.Write(ctx, msg.typ, msg.data)
			cancel()
			if err != nil {
				slog.Warn("websocket write failed", "peer", p.id, "error", err)
				p.conn.CloseNow()
				return
			}
		}
	}
}

// Hub tracks connected peers. The zero value is not usable; call NewHub.
type Hub struct {
	mu             sync.RWMutex
	peers          map[string]*peer
	closed         bool
	originPatterns []string
}

// NewHub accepts browser connections from the given origin patterns;
// an empty list only allows same-origin clients.
func NewHub(originPatterns []string) *Hub {
	return &Hub{
		peers:          make(map[string]*peer),
		originPatterns: originPatterns,
	}
}

type idAssigned struct {
	Type   string `json:"type"`
	UserID string `json:"userID"`
}

type envelope struct {
	To string `json:"to"`
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.isClosed() {
		http.Error(w, "signaling server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxMessageBytes)

	p := newPeer(conn)
	ctx := r.Context()

	if err := wsjson.Write(ctx, conn, idAssigned{Type: "id-assigned", UserID: p.id}); err != nil {
		slog.Warn("failed to send peer id", "error", err)
		return
	}

	if !h.add(p) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.remove(p)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.writeLoop()
	}()
	defer func() {
		close(p.done)
		wg.Wait()
	}()
	slog.Info("peer connected", "peer", p.id, "peers", h.Len())

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				slog.Warn("websocket read failed", "peer", p.id, "error", err)
			}
			break
		}
		h.route(p, typ, data)
	}

	slog.Info("peer disconnected", "peer", p.id)
	conn.Close(websocket.StatusNormalClosure, "")
}

// Len reports how many peers are connected.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Close disconnects every peer with StatusGoingAway and refuses new ones.
// Hijacked websocket connections are not tracked by http.Server, so call
// Close before Shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	peers := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range peers {
		wg.Add(1)
		go func(p *peer) {
			defer wg.Done()
			p.conn.Close(websocket.StatusGoingAway, "server shutting down")
		}(p)
	}
	wg.Wait()
}

func (h *Hub) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

func (h *Hub) add(p *peer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.peers[p.id] = p
	return true
}

func (h *Hub) remove(p *peer) {
	h.mu.Lock()
	delete(h.peers, p.id)
	h.mu.Unlock()
}

func (h *Hub) route(from *peer, typ websocket.MessageType, data []byte) {
	var env envelope
	if typ == websocket.MessageText && json.Unmarshal(data, &env) == nil && env.To != "" {
		h.mu.RLock()
		to, ok := h.peers[env.To]
		h.mu.RUnlock()
		if !ok {
			slog.Info("dropping message for unknown peer", "from", from.id, "to", env.To)
			return
		}
		out, err := withFrom(data, from.id)
		if err != nil {
			slog.Warn("failed to tag message", "from", from.id, "error", err)
			return
		}
		h.send(to, typ, out)
		return
	}

	h.mu.RLock()
	targets := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		if p != from {
			targets = append(targets, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range targets {
		h.send(p, typ, data)
	}
}

func (h *Hub) send(p *peer, typ websocket.MessageType, data []byte) {
	if !p.enqueue(typ, data) {
		slog.Warn("send queue full, dropping message", "peer", p.id)
	}
}

// withFrom sets the "from" field of a JSON object message.
func withFrom(data []byte, from string) ([]byte, error) {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	id, err := json.Marshal(from)
	if err != nil {
		return nil, err
	}
	msg["from"] = id
	return json.Marshal(msg)
}
