package main

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const roomInboxSize = 256

var (
	ErrRoomFull   = errors.New("room full")
	ErrRoomClosed = errors.New("room closed")
)

// Broadcaster sends messages to one connected player. Both calls must not
// block and report false when the message was dropped.
type Broadcaster interface {
	SendJSON(msg interface{}) bool
	SendBinary(data []byte) bool
}

// JoinRequest describes a player entering a room
type JoinRequest struct {
	Name       string
	Map        string
	Color      int // -1 picks from the palette
	Team       int
	Bots       int // -1 uses the mode default; only read when the room is created
	AccountKey string
	Balance    int
}

type joinCmd struct {
	req   JoinRequest
	conn  Broadcaster
	reply chan joinResult
}

type joinResult struct {
	msg JoinedMsg
	err error
}

type leaveCmd struct {
	tankID string
}

type inputCmd struct {
	tankID string
	input  Input
}

// notifyCmd runs on the room goroutine
type notifyCmd func(r *Room)

// RoomInfo is the public summary of a room
type RoomInfo struct {
	ID      string `json:"id"`
	Map     string `json:"map"`
	Mode    string `json:"mode"`
	Players int    `json:"players"`
}

// Room runs one World on its own goroutine. All world access happens
// there; other goroutines talk to it through the inbox.
type Room struct {
	ID      string
	MapID   string
	Metrics *RoomMetrics

	world   *World
	index   *IndexMap
	clients map[string]Broadcaster
	ledger  *LedgerWriter
	nextID  int
	clock   func() time.Time

	inbox    chan any
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	humans   atomic.Int32

	onClose func(r *Room)
}

// NewRoom creates a room for def and spawns its bots. bots < 0 uses the
// mode default.
func NewRoom(id string, def *MapDef, bots int, ledger *LedgerWriter, seed int64, now time.Time) *Room {
	r := &Room{
		ID:      id,
		MapID:   def.ID,
		Metrics: &RoomMetrics{},
		world:   NewWorld(def, seed, now),
		index:   NewIndexMap(),
		clients: make(map[string]Broadcaster),
		ledger:  ledger,
		clock:   time.Now,
		inbox:   make(chan any, roomInboxSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if bots < 0 {
		bots = r.world.Config.DefaultBots
	}
	bots = min(bots, MaxBots)
	for _, t := range r.world.AddBots(bots, now) {
		r.index.Acquire(t.ID)
	}
	if b, ok := r.world.Boss(); ok {
		r.index.Acquire(b.Tank.ID)
	}
	Log.Infow("room created", "room", id, "map", def.ID, "mode", def.Mode.String(), "bots", bots)
	return r
}

// Run is the room loop. It returns after Stop or game over.
func (r *Room) Run() {
	defer func() {
		if r.onClose != nil {
			r.onClose(r)
		}
		close(r.done)
		Log.Infow("room closed", "room", r.ID, "ticks", r.world.Tick())
	}()

	ticker := time.NewTicker(TickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case cmd := <-r.inbox:
			r.handleCommand(cmd)
		case <-ticker.C:
			r.tick(r.clock())
		}
	}
}

// Stop terminates the room loop. Safe to call more than once.
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Done is closed once the loop has exited
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// Join adds a player and waits for the room to accept it
func (r *Room) Join(req JoinRequest, conn Broadcaster) (JoinedMsg, error) {
	reply := make(chan joinResult, 1)
	select {
	case r.inbox <- joinCmd{req: req, conn: conn, reply: reply}:
	case <-r.done:
		return JoinedMsg{}, ErrRoomClosed
	}
	select {
	case res := <-reply:
		return res.msg, res.err
	case <-r.done:
		return JoinedMsg{}, ErrRoomClosed
	}
}

// Leave removes a player
func (r *Room) Leave(tankID string) {
	select {
	case r.inbox <- leaveCmd{tankID: tankID}:
	case <-r.done:
	}
}

// Input queues the newest input of a player without blocking
func (r *Room) Input(tankID string, in Input) {
	select {
	case r.inbox <- inputCmd{tankID: tankID, input: in}:
	default:
		r.Metrics.IncInputDropped()
	}
}

// Post runs fn on the room goroutine
func (r *Room) Post(fn func(r *Room)) {
	select {
	case r.inbox <- notifyCmd(fn):
	case <-r.done:
	}
}

// Humans returns the number of human players, safe from any goroutine
func (r *Room) Humans() int {
	return int(r.humans.Load())
}

// Info returns the public summary of the room
func (r *Room) Info() RoomInfo {
	return RoomInfo{ID: r.ID, Map: r.MapID, Mode: r.world.Map.Mode.String(), Players: r.Humans()}
}

func (r *Room) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case joinCmd:
		msg, err := r.join(c.req, c.conn)
		c.reply <- joinResult{msg: msg, err: err}
	case leaveCmd:
		r.leave(c.tankID)
	case inputCmd:
		if _, ok := r.clients[c.tankID]; !ok {
			return
		}
		r.world.QueueInput(c.tankID, c.input)
		r.Metrics.IncAccepted()
	case notifyCmd:
		c(r)
	}
}

func (r *Room) join(req JoinRequest, conn Broadcaster) (JoinedMsg, error) {
	w := r.world
	select {
	case <-r.stop:
		return JoinedMsg{}, ErrRoomClosed
	default:
	}
	if w.Phase() == PhaseGameOver {
		return JoinedMsg{}, ErrRoomClosed
	}
	if w.HumanCount() >= w.Config.MaxPlayers {
		return JoinedMsg{}, ErrRoomFull
	}
	r.nextID++
	id := fmt.Sprintf("p%d", r.nextID)
	name := req.Name
	if name == "" {
		name = fmt.Sprintf("Tank %d", r.nextID)
	}
	t := w.AddTank(TankSpec{
		ID:         id,
		Name:       name,
		Color:      req.Color,
		Team:       w.AssignTeam(req.Team),
		AccountKey: req.AccountKey,
	}, r.clock())
	idx, err := r.index.Acquire(id)
	if err != nil {
		w.RemoveTank(id)
		return JoinedMsg{}, err
	}
	r.clients[id] = conn
	r.humans.Store(int32(w.HumanCount()))
	r.Metrics.IncJoin()

	joined := Participant{ID: id, Name: name, Index: idx, Team: t.Team}
	for other, c := range r.clients {
		if other != id {
			c.SendJSON(Envelope{T: MsgPlayerJoined, Data: joined})
		}
	}
	Log.Infow("player joined", "room", r.ID, "id", id, "name", name, "team", t.Team)

	return JoinedMsg{
		Room:         r.ID,
		ID:           id,
		Map:          w.Map.ID,
		Mode:         w.Map.Mode.String(),
		Width:        w.Width,
		Height:       w.Height,
		Terrain:      CompressMap(w.Terrain.All()),
		Index:        idx,
		Team:         t.Team,
		Stars:        w.StarLayout(),
		Participants: r.participants(),
		Balance:      req.Balance,
	}, nil
}

func (r *Room) participants() []Participant {
	tanks := r.world.Tanks()
	out := make([]Participant, 0, len(tanks))
	for _, t := range tanks {
		idx, ok := r.index.Index(t.ID)
		if !ok {
			continue
		}
		out = append(out, Participant{ID: t.ID, Name: t.Name, Index: idx, Team: t.Team, Bot: t.IsBot || t.IsBoss})
	}
	return out
}

func (r *Room) leave(id string) {
	if _, ok := r.clients[id]; !ok {
		return
	}
	delete(r.clients, id)
	r.world.RemoveTank(id)
	r.index.Release(id)
	r.humans.Store(int32(r.world.HumanCount()))
	r.Metrics.IncLeave()
	for _, c := range r.clients {
		c.SendJSON(Envelope{T: MsgPlayerLeft, Data: map[string]string{"id": id}})
	}
	Log.Infow("player left", "room", r.ID, "id", id)
	if r.world.HumanCount() == 0 {
		r.Stop()
	}
}

// tick advances the world and publishes the result
func (r *Room) tick(now time.Time) {
	start := time.Now()
	for _, ev := range r.world.Step(now) {
		r.handleEvent(ev)
	}
	r.broadcastState(now)
	r.Metrics.AddTick(time.Since(start).Nanoseconds())
	if r.world.Phase() == PhaseGameOver {
		r.Stop()
	}
}

func (r *Room) broadcast(env Envelope) {
	for _, c := range r.clients {
		c.SendJSON(env)
	}
}

func (r *Room) sendTo(id string, env Envelope) {
	if c, ok := r.clients[id]; ok {
		c.SendJSON(env)
	}
}

func (r *Room) handleEvent(ev Event) {
	switch ev.Kind {
	case EventKill:
		r.Metrics.IncKill()
		r.broadcast(Envelope{T: MsgKill, Data: KillMsg{
			KillerID:   ev.OtherID,
			KillerName: ev.OtherName,
			VictimID:   ev.TankID,
			VictimName: ev.TankName,
		}})
		r.submit(LedgerOp{Kind: opDeath, Key: ev.AccountKey})
		r.submit(LedgerOp{Kind: opKill, Key: ev.OtherKey})
	case EventPortalExit:
		r.broadcast(Envelope{T: MsgPortalExit, Data: PortalExitMsg{ID: ev.TankID, Name: ev.TankName, Stars: ev.Stars}})
		if ev.Stars > 0 {
			id := ev.TankID
			r.submit(LedgerOp{Kind: opCredit, Key: ev.AccountKey, Amount: ev.Stars, Done: func(balance int, err error) {
				if err != nil {
					return
				}
				r.Post(func(r *Room) {
					r.sendTo(id, Envelope{T: MsgPortalExit, Data: PortalExitMsg{ID: id, Stars: ev.Stars, Balance: balance}})
				})
			}})
		}
		Log.Infow("portal exit", "room", r.ID, "id", ev.TankID, "stars", ev.Stars)
	case EventCapture:
		msg := CaptureMsg{ID: ev.TankID, Name: ev.TankName, Team: ev.Team}
		if ctf, ok := r.world.CTF(); ok {
			msg.Score = [2]int{ctf.Scores[TeamRed], ctf.Scores[TeamBlue]}
		}
		r.broadcast(Envelope{T: MsgCapture, Data: msg})
	case EventGameOver:
		r.broadcast(Envelope{T: MsgGameOver, Data: GameOverMsg{Winners: ev.Winners, Standings: ev.Standings}})
		for _, key := range ev.WinnerKeys {
			r.submit(LedgerOp{Kind: opWin, Key: key})
		}
		Log.Infow("game over", "room", r.ID, "winners", ev.Winners, "elapsed", r.world.Elapsed())
	case EventRejected:
		r.sendTo(ev.TankID, errorEnvelope(ev.Msg))
	}
}

func (r *Room) submit(op LedgerOp) {
	if r.ledger == nil || op.Key == "" {
		return
	}
	if !r.ledger.Submit(op) {
		r.Metrics.IncLedgerDropped()
	}
}

func (r *Room) broadcastState(now time.Time) {
	if len(r.clients) == 0 {
		return
	}
	snap := r.world.Snapshot(now)
	frame, err := EncodeFrame(&snap, r.index)
	if err != nil {
		r.Metrics.IncEncodeFailure()
		Log.Errorw("state encode failed", "room", r.ID, "tick", snap.Tick, "err", err)
		return
	}
	r.Metrics.AddFrame(frame[0])
	var dropped int64
	for _, c := range r.clients {
		if !c.SendBinary(frame) {
			dropped++
		}
	}
	if dropped > 0 {
		r.Metrics.AddBroadcastDrop(dropped)
	}
}
