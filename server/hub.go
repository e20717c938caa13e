package main

import (
	"log/slog"
	"sync"
)

// HubLimits bounds connections and inbound traffic
type HubLimits struct {
	MaxConnsPerIP     int
	MaxTotalConns     int
	MaxMessagesPerSec int
}

// Hub tracks live websocket clients and hands them to the dispatcher
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	dispatcher *Dispatcher
	limits     HubLimits
	logger     *slog.Logger
	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int
}

// NewHub creates a Hub
func NewHub(d *Dispatcher, limits HubLimits, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		dispatcher: d,
		limits:     limits,
		logger:     logger,
		ipConns:    make(map[string]int),
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= h.limits.MaxTotalConns {
		return false
	}
	if h.ipConns[ip] >= h.limits.MaxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Attach registers the client and joins it to a room before its pumps start,
// so nothing the client sends first can arrive ahead of the join.
func (h *Hub) Attach(c *Client) error {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	if err := h.dispatcher.Connect(c.session); err != nil {
		h.Detach(c)
		return err
	}
	h.logger.Info("client connected", "conn_id", c.session.ID, "ip", c.remoteAddr, "codec", c.codec.Name())
	return nil
}

// Detach runs the leave path once per client
func (h *Hub) Detach(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if !ok {
		return
	}

	h.dispatcher.Disconnect(c.session)
	h.TrackDisconnect(c.remoteAddr)
	c.close()
	h.logger.Info("client disconnected", "conn_id", c.session.ID)
}

// CloseAll drops every client, used on shutdown
func (h *Hub) CloseAll() {
	h.mu.RLock()
	list := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		list = append(list, c)
	}
	h.mu.RUnlock()

	for _, c := range list {
		h.Detach(c)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
