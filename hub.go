package main

import "sync"

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// Hub tracks connected clients and owns the shared services they use
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}

	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int

	cfg    Config
	rooms  *RoomManager
	ledger Ledger
	writer *LedgerWriter
	auth   *Auth // nil without a database
}

// NewHub creates a hub. db may be nil, in which case accounts live in
// memory and registration is disabled.
func NewHub(cfg Config, db *DB) *Hub {
	var ledger Ledger
	var auth *Auth
	if db != nil {
		ledger = db
		auth = NewAuth(db, cfg.JWTSecret)
	} else {
		ledger = NewMemLedger(cfg.StartBalance)
	}
	writer := NewLedgerWriter(ledger)
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		quit:       make(chan struct{}),
		ipConns:    make(map[string]int),
		cfg:        cfg,
		rooms:      NewRoomManager(writer),
		ledger:     ledger,
		writer:     writer,
		auth:       auth,
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
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

// Run processes register/unregister events until Shutdown
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			if client.room != nil {
				client.room.Leave(client.tankID)
			}

		case <-h.quit:
			return
		}
	}
}

// Shutdown stops every room and flushes pending ledger writes
func (h *Hub) Shutdown() {
	close(h.quit)
	h.rooms.StopAll()
	h.writer.Stop()
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
