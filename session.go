package main

import (
	"errors"
	"sort"
	"sync"
	"time"
)

const (
	maxRooms   = 100
	DefaultMap = "classic-1"
)

var ErrTooManyRooms = errors.New("too many active rooms")

// RoomManager owns the running rooms. There is at most one live room per
// map id; it is created on first join and dropped when it closes.
type RoomManager struct {
	mu     sync.Mutex
	byMap  map[string]*Room
	byID   map[string]*Room
	ledger *LedgerWriter
	seed   func() int64
}

// NewRoomManager creates a manager. ledger may be nil.
func NewRoomManager(ledger *LedgerWriter) *RoomManager {
	return &RoomManager{
		byMap:  make(map[string]*Room),
		byID:   make(map[string]*Room),
		ledger: ledger,
		seed:   func() int64 { return time.Now().UnixNano() },
	}
}

// JoinMap places a player into the room of req.Map, creating it if needed
func (m *RoomManager) JoinMap(req JoinRequest, conn Broadcaster) (*Room, JoinedMsg, error) {
	if req.Map == "" {
		req.Map = DefaultMap
	}
	def, err := GenerateMap(req.Map)
	if err != nil {
		return nil, JoinedMsg{}, err
	}
	// a room may close between lookup and join; retry once with a new one
	for attempt := 0; attempt < 2; attempt++ {
		r, created, err := m.roomFor(def, req.Bots)
		if err != nil {
			return nil, JoinedMsg{}, err
		}
		msg, err := r.Join(req, conn)
		if errors.Is(err, ErrRoomClosed) {
			continue
		}
		if err != nil && created && r.Humans() == 0 {
			r.Stop()
		}
		return r, msg, err
	}
	return nil, JoinedMsg{}, ErrRoomClosed
}

func (m *RoomManager) roomFor(def *MapDef, bots int) (*Room, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.byMap[def.ID]; ok {
		return r, false, nil
	}
	if len(m.byID) >= maxRooms {
		return nil, false, ErrTooManyRooms
	}
	r := NewRoom(GenerateUUID(), def, bots, m.ledger, m.seed(), time.Now())
	r.onClose = m.remove
	m.byMap[def.ID] = r
	m.byID[r.ID] = r
	go r.Run()
	return r, true, nil
}

// Get returns a room by id
func (m *RoomManager) Get(id string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	return r, ok
}

// List returns a summary of every live room ordered by map id
func (m *RoomManager) List() []RoomInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]RoomInfo, 0, len(m.byID))
	for _, r := range m.byID {
		list = append(list, r.Info())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Map < list[j].Map })
	return list
}

// Metrics returns per-room counters keyed by room id
func (m *RoomManager) Metrics() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]any, len(m.byID))
	for id, r := range m.byID {
		snap := r.Metrics.Snapshot()
		snap["map"] = r.MapID
		snap["players"] = r.Humans()
		out[id] = snap
	}
	return out
}

// StopAll stops every room and waits for their loops to exit
func (m *RoomManager) StopAll() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.byID))
	for _, r := range m.byID {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	for _, r := range rooms {
		r.Stop()
		<-r.Done()
	}
}

func (m *RoomManager) remove(r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byMap[r.MapID] == r {
		delete(m.byMap, r.MapID)
	}
	delete(m.byID, r.ID)
}
