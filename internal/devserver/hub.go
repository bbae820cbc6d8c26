package devserver

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/syllabus-go/internal/channel"
)

const (
	outboundBuffer = 16
	writeWait      = 5 * time.Second
)

// peer is one connected realtime client.
type peer struct {
	id       string
	conn     *websocket.Conn
	outbound chan channel.Frame
	done     chan struct{}
	once     sync.Once
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

// Hub tracks realtime clients by channel id.
type Hub struct {
	upgrader  websocket.Upgrader
	heartbeat time.Duration
	logger    *slog.Logger

	mu    sync.RWMutex
	peers map[string]*peer
}

// NewHub creates an empty hub. A zero heartbeat disables pings.
func NewHub(heartbeat time.Duration, logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// Local development only.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		heartbeat: heartbeat,
		logger:    logger.With("component", "hub"),
		peers:     make(map[string]*peer),
	}
}

// ServeHTTP upgrades the request and assigns the client a fresh channel id.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	p := &peer{
		id:       uuid.NewString(),
		conn:     conn,
		outbound: make(chan channel.Frame, outboundBuffer),
		done:     make(chan struct{}),
	}
	h.add(p)
	defer h.remove(p)

	hello, err := channel.NewFrame(channel.EventConnect, channel.ConnectData{ID: p.id})
	if err != nil {
		h.logger.Error("encode connect frame", "error", err)
		return
	}
	p.outbound <- hello

	go h.readLoop(p)
	h.writeLoop(p)
}

// readLoop discards client messages and notices disconnects.
func (h *Hub) readLoop(p *peer) {
	defer p.close()
	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			h.logger.Debug("client gone", "channel", p.id, "error", err)
			return
		}
	}
}

func (h *Hub) writeLoop(p *peer) {
	defer p.close()

	var tick <-chan time.Time
	if h.heartbeat > 0 {
		t := time.NewTicker(h.heartbeat)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-p.done:
			return
		case <-tick:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case f := <-p.outbound:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteJSON(f); err != nil {
				h.logger.Warn("write frame", "channel", p.id, "error", err)
				return
			}
		}
	}
}

func (h *Hub) add(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[p.id] = p
	h.logger.Debug("client connected", "channel", p.id, "clients", len(h.peers))
}

func (h *Hub) remove(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, p.id)
	h.logger.Debug("client disconnected", "channel", p.id, "clients", len(h.peers))
}

// Has reports whether a client with the channel id is connected.
func (h *Hub) Has(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.peers[id]
	return ok
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Send queues an event for the client with the channel id. It reports false
// when the client is unknown or its buffer is full.
func (h *Hub) Send(id, event string, data any) bool {
	f, err := channel.NewFrame(event, data)
	if err != nil {
		h.logger.Error("encode frame", "event", event, "error", err)
		return false
	}

	h.mu.RLock()
	p, ok := h.peers[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	select {
	case p.outbound <- f:
		return true
	case <-p.done:
		return false
	default:
		h.logger.Warn("dropping frame; outbound buffer full", "channel", id, "event", event)
		return false
	}
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	peers := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()

	for _, p := range peers {
		p.close()
	}
}
