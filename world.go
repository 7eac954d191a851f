package main

import (
	"math/rand"
	"sort"
	"time"
)

const (
	TickRate     = 20 // simulation ticks per second
	TickDuration = time.Second / TickRate
)

// EventKind identifies a world event produced during a tick
type EventKind uint8

const (
	EventKill EventKind = iota + 1
	EventPortalExit
	EventCapture
	EventGameOver
	EventRejected // a player action was refused
)

// Event is something the room must tell clients or persist
type Event struct {
	Kind       EventKind
	TankID     string
	TankName   string
	AccountKey string
	OtherID    string
	OtherName  string
	OtherKey   string
	Stars      int
	Team       int
	Msg        string
	Winners    []string // tank ids
	WinnerKeys []string // account keys of Winners
	Standings  []Standing
}

// Standing is one leaderboard line
type Standing struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stars int    `json:"stars"`
	Kills int    `json:"kills"`
}

// Input is the latest control state sent by a player
type Input struct {
	Tick    uint32
	Seq     uint32
	Move    *float64
	Aim     float64
	Fire    bool
	Shop    string
	Unstick bool
}

// stage is one step of the tick pipeline
type stage struct {
	name string
	run  func(w *World, now time.Time)
}

// tickPipeline is the fixed per-tick order. Snapshot assembly and
// broadcast happen in the room after Step returns.
var tickPipeline = []stage{
	{"input", (*World).applyInputs},
	{"bot-steer", (*World).steerBots},
	{"bot-unstick", (*World).unstickBots},
	{"bot-fire", (*World).botsFire},
	{"boss", (*World).updateBoss},
	{"projectiles", (*World).stepProjectiles},
	{"ctf", (*World).stepCTF},
	{"pickups", (*World).stepPickups},
	{"zone", (*World).stepZone},
	{"portals", (*World).updatePortals},
	{"game-over", (*World).checkGameOver},
	{"phase", (*World).stepPhase},
}

// StageNames returns the pipeline stage names in execution order
func StageNames() []string {
	names := make([]string, len(tickPipeline))
	for i, s := range tickPipeline {
		names[i] = s.name
	}
	return names
}

// World owns every entity of one room. It is not safe for concurrent use;
// the room goroutine is its only caller.
type World struct {
	Map     *MapDef
	Config  ModeConfig
	Width   int
	Height  int
	Terrain *SpatialIndex

	rng *rand.Rand
	dt  float64

	tanks []*Tank
	byID  map[string]*Tank

	bullets  []*Bullet
	stars    []*Star
	powerUps []*PowerUp
	portals  []*Portal

	zone *Zone
	ctf  *CTF
	boss *BossState

	phase     MatchPhase
	startedAt time.Time
	now       time.Time
	elapsed   time.Duration
	tick      uint32

	nextBulletID  uint32
	nextPowerUpID uint32
	nextPortalID  uint32
	nextSpawn     int
	nextTeamSpawn [3]int
	nextColor     int
	nextBot       int
	nextPowerUpAt time.Time
	nextPortalAt  time.Time

	inputs map[string]Input
	events []Event

	stageHook func(name string)
}

// NewWorld builds a world for def. seed drives every random choice.
func NewWorld(def *MapDef, seed int64, now time.Time) *World {
	cfg := ConfigForMode(def.Mode)
	w := &World{
		Map:           def,
		Config:        cfg,
		Width:         def.Width,
		Height:        def.Height,
		Terrain:       NewSpatialIndex(),
		rng:           rand.New(rand.NewSource(seed)),
		dt:            TickDuration.Seconds(),
		byID:          make(map[string]*Tank),
		zone:          NewZone(def.Width, def.Height, cfg.ZoneEnabled),
		phase:         PhasePlaying,
		startedAt:     now,
		now:           now,
		nextPowerUpAt: now.Add(PowerUpSpawnInterval),
		inputs:        make(map[string]Input),
	}
	for i := range def.Obstacles {
		o := def.Obstacles[i]
		w.Terrain.Add(&o)
	}
	w.seedStars(def.Stars)
	if cfg.Mode == ModeCTF {
		w.ctf = newCTF(w, def, now)
	}
	if cfg.Boss {
		w.boss = w.spawnBoss(now)
	}
	return w
}

// QueueInput stores the newest input of a player; older unapplied input
// is discarded
func (w *World) QueueInput(id string, in Input) {
	w.inputs[id] = in
}

// Step runs one tick of the pipeline and returns the events it produced
func (w *World) Step(now time.Time) []Event {
	if w.phase == PhaseGameOver {
		return nil
	}
	w.now = now
	w.tick++
	w.elapsed = now.Sub(w.startedAt)
	w.events = nil
	for _, s := range tickPipeline {
		if w.stageHook != nil {
			w.stageHook(s.name)
		}
		s.run(w, now)
	}
	return w.events
}

func (w *World) emit(ev Event) {
	w.events = append(w.events, ev)
}

// Tick returns the number of completed ticks
func (w *World) Tick() uint32 {
	return w.tick
}

// Phase returns the match phase
func (w *World) Phase() MatchPhase {
	return w.phase
}

// Zone returns the safe zone
func (w *World) Zone() *Zone {
	return w.zone
}

// CTF returns the flag controller in CTF mode
func (w *World) CTF() (*CTF, bool) {
	return w.ctf, w.ctf != nil
}

// Elapsed returns match time at the last tick
func (w *World) Elapsed() time.Duration {
	return w.elapsed
}

func (w *World) applyInputs(now time.Time) {
	for _, t := range w.tanks {
		in, ok := w.inputs[t.ID]
		if !ok || t.IsBot || t.IsBoss {
			continue
		}
		if !t.Alive {
			continue
		}
		w.MoveTank(t, in.Move, now)
		if validAngle(in.Aim) {
			t.TurretAngle = NormalizeAngle(in.Aim)
		}
		if in.Fire {
			w.TryFire(t, now)
		}
		if in.Shop != "" {
			w.applyPurchase(t, in.Shop, now)
		}
		if in.Unstick && !w.Unstick(t, now) {
			w.emit(Event{Kind: EventRejected, TankID: t.ID, Msg: "unstick not available"})
		}
	}
	clear(w.inputs)
}

func (w *World) applyPurchase(t *Tank, code string, now time.Time) {
	e, err := ParsePurchase(code)
	if err == nil {
		err = w.Purchase(t, e, now)
	}
	if err != nil {
		w.emit(Event{Kind: EventRejected, TankID: t.ID, Msg: err.Error()})
	}
}

func (w *World) stepProjectiles(now time.Time) {
	w.resolveHits(w.AdvanceBullets(now), now)
}

func (w *World) stepCTF(now time.Time) {
	if w.ctf != nil {
		w.ctf.Update(now)
	}
}

func (w *World) stepPickups(now time.Time) {
	w.updateStars(now)
	w.updatePowerUps(now)
	w.updateTankTimers(now)
}

func (w *World) stepZone(now time.Time) {
	w.zone.Update(w.elapsed, now, w.dt)
	w.applyZoneDamage(now)
}

// checkGameOver ends the match when the zone collapsed, nobody is left
// alive after respawns stopped, or a CTF limit was hit
func (w *World) checkGameOver(now time.Time) {
	over := false
	switch {
	case w.zone.Collapsed():
		over = true
	case w.ctf != nil && w.ctf.Finished(now):
		over = true
	case !w.respawnsAllowed() && w.aliveCount() == 0:
		over = true
	}
	if !over {
		return
	}
	w.phase = PhaseGameOver
	ev := Event{Kind: EventGameOver, Standings: w.Standings(0)}
	for _, t := range w.winners() {
		ev.Winners = append(ev.Winners, t.ID)
		if t.AccountKey != "" {
			ev.WinnerKeys = append(ev.WinnerKeys, t.AccountKey)
		}
	}
	w.emit(ev)
}

func (w *World) stepPhase(now time.Time) {
	if w.phase == PhasePlaying && w.Config.ZoneEnabled && w.elapsed >= ZoneStartAfter {
		w.phase = PhaseShrinking
	}
}

// aliveCount counts living non-boss tanks
func (w *World) aliveCount() int {
	n := 0
	for _, t := range w.tanks {
		if t.Alive && !t.IsBoss {
			n++
		}
	}
	return n
}

// winners returns the humans who won the match: the leading team in CTF,
// otherwise the survivors, otherwise the human with the most stars
func (w *World) winners() []*Tank {
	var out []*Tank
	if w.ctf != nil {
		team := w.ctf.Leader()
		for _, t := range w.tanks {
			if team != TeamNone && t.Team == team && !t.IsBot {
				out = append(out, t)
			}
		}
		return out
	}
	for _, t := range w.tanks {
		if t.Alive && !t.IsBot && !t.IsBoss {
			out = append(out, t)
		}
	}
	if len(out) > 0 {
		return out
	}
	var best *Tank
	for _, t := range w.tanks {
		if t.IsBot || t.IsBoss {
			continue
		}
		if best == nil || t.Stars > best.Stars {
			best = t
		}
	}
	if best != nil {
		out = append(out, best)
	}
	return out
}

// Standings ranks tanks by stars then kills. n <= 0 returns all.
func (w *World) Standings(n int) []Standing {
	list := make([]Standing, 0, len(w.tanks))
	for _, t := range w.tanks {
		if t.IsBoss {
			continue
		}
		list = append(list, Standing{ID: t.ID, Name: t.Name, Stars: t.Stars, Kills: t.Kills})
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Stars != list[j].Stars {
			return list[i].Stars > list[j].Stars
		}
		return list[i].Kills > list[j].Kills
	})
	if n > 0 && len(list) > n {
		list = list[:n]
	}
	return list
}

// HumanCount counts non-bot participants, including spectators
func (w *World) HumanCount() int {
	n := 0
	for _, t := range w.tanks {
		if !t.IsBot && !t.IsBoss {
			n++
		}
	}
	return n
}
