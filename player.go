package main

import (
	"math"
	"time"
)

const (
	TankSpeed       = 5.0 // cells/s
	BotSpeed        = 4.0
	RespawnDelay    = 3 * time.Second
	RegenDelay      = 30 * time.Second
	RegenInterval   = 3 * time.Second
	UnstickCooldown = 10 * time.Second
	UnstickRadius   = 4.0
	BotKillBonus    = 1
	PaletteSize     = 8
)

// Tank is a player, bot or boss vehicle
type Tank struct {
	ID          string
	Name        string
	Color       int
	Team        int
	X, Y        float64
	HullAngle   float64
	TurretAngle float64
	HP          int
	MaxHP       int
	Stars       int
	PeakStars   int
	Kills       int
	Deaths      int
	Alive       bool
	Exited      bool // left through a portal
	IsBot       bool
	IsBoss      bool
	AccountKey  string

	PowerUp      PowerUpKind
	PowerUpUntil time.Time
	LastFire     time.Time
	BaseSpeed    float64
	Speed        float64
	Radius       float64
	LastDamage   time.Time
	NextRegen    time.Time
	InBush       bool
	SlowUntil    time.Time
	CarryingFlag int // team whose flag is carried
	RespawnAt    time.Time
	UnstickAt    time.Time

	zoneDebt    float64
	laserDebt   float64
	contactDebt float64
	brain       *botBrain
}

// TankSpec describes a tank to add to the world
type TankSpec struct {
	ID         string
	Name       string
	Color      int // -1 picks from the palette
	Team       int
	IsBot      bool
	AccountKey string
}

// Point is a position in cell units
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned area in cell units
type Rect struct {
	X1, Y1, X2, Y2 float64
}

// Contains reports whether the point lies inside r
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X1 && x <= r.X2 && y >= r.Y1 && y <= r.Y2
}

// Center returns the middle of r
func (r Rect) Center() Point {
	return Point{(r.X1 + r.X2) / 2, (r.Y1 + r.Y2) / 2}
}

// AddTank places a new tank at the next spawn point
func (w *World) AddTank(spec TankSpec, now time.Time) *Tank {
	tier := TierFor(0)
	t := &Tank{
		ID:           spec.ID,
		Name:         spec.Name,
		Color:        spec.Color,
		Team:         spec.Team,
		IsBot:        spec.IsBot,
		AccountKey:   spec.AccountKey,
		HP:           tier.MaxHP,
		MaxHP:        tier.MaxHP,
		Radius:       tier.Radius,
		BaseSpeed:    TankSpeed,
		Alive:        true,
		LastDamage:   now,
		CarryingFlag: TeamNone,
	}
	if t.IsBot {
		t.BaseSpeed = BotSpeed
		t.brain = w.newBotBrain(t, now)
	}
	t.Speed = t.BaseSpeed
	if t.Color < 0 || t.Color >= PaletteSize {
		t.Color = w.nextColor % PaletteSize
		w.nextColor++
	}
	p := w.nextSpawnPoint(t.Team)
	t.X, t.Y = p.X, p.Y
	w.clampToMap(t)

	w.tanks = append(w.tanks, t)
	w.byID[t.ID] = t
	return t
}

// RemoveTank drops a tank from the world. A carried flag is dropped first.
func (w *World) RemoveTank(id string) {
	t, ok := w.byID[id]
	if !ok {
		return
	}
	if w.ctf != nil {
		w.ctf.OnTankKilled(t, w.now)
	}
	delete(w.byID, id)
	for i, e := range w.tanks {
		if e == t {
			w.tanks = append(w.tanks[:i], w.tanks[i+1:]...)
			break
		}
	}
	delete(w.inputs, id)
}

// Tank looks up a tank by id
func (w *World) Tank(id string) (*Tank, bool) {
	t, ok := w.byID[id]
	return t, ok
}

// Tanks returns tanks in join order. The slice must not be modified.
func (w *World) Tanks() []*Tank {
	return w.tanks
}

// nextSpawnPoint returns spawn points round-robin, from the team set in
// team modes
func (w *World) nextSpawnPoint(team int) Point {
	if team != TeamNone && len(w.Map.TeamSpawns[team]) > 0 {
		set := w.Map.TeamSpawns[team]
		p := set[w.nextTeamSpawn[team]%len(set)]
		w.nextTeamSpawn[team]++
		return p
	}
	if len(w.Map.Spawns) == 0 {
		return Point{float64(w.Width) / 2, float64(w.Height) / 2}
	}
	p := w.Map.Spawns[w.nextSpawn%len(w.Map.Spawns)]
	w.nextSpawn++
	return p
}

// DamageTank subtracts HP and reports whether the tank is now at 0.
// Shielded and dead tanks take no damage.
func (w *World) DamageTank(t *Tank, dmg int, now time.Time) bool {
	if !t.Alive || dmg <= 0 {
		return false
	}
	if t.PowerUp == PowerUpShield && now.Before(t.PowerUpUntil) {
		return false
	}
	t.HP -= dmg
	t.LastDamage = now
	t.NextRegen = time.Time{}
	if t.HP <= 0 {
		t.HP = 0
		return true
	}
	return false
}

// KillTank marks the victim dead and settles its stars. It returns the
// number of stars the victim lost.
func (w *World) KillTank(victim, killer *Tank, now time.Time) int {
	if !victim.Alive {
		return 0
	}
	victim.Alive = false
	victim.HP = 0
	victim.Deaths++
	victim.zoneDebt = 0
	victim.laserDebt = 0
	victim.contactDebt = 0
	victim.RespawnAt = now.Add(RespawnDelay)
	if w.ctf != nil {
		w.ctf.OnTankKilled(victim, now)
	}

	ev := Event{Kind: EventKill, TankID: victim.ID, TankName: victim.Name, AccountKey: victim.AccountKey}
	if killer != nil && killer != victim {
		ev.OtherID = killer.ID
		ev.OtherName = killer.Name
		ev.OtherKey = killer.AccountKey
	}

	if victim.IsBoss {
		victim.RespawnAt = now.Add(BossRespawnDelay)
		if killer != nil && killer != victim {
			killer.Kills++
			addStars(killer, BossKillReward)
			ev.Stars = BossKillReward
		}
		w.emit(ev)
		return 0
	}

	dropped := victim.Stars
	victim.Stars = 0
	if killer != nil && killer != victim && !killer.IsBoss {
		killer.Kills++
		bonus := 0
		if victim.IsBot {
			bonus = BotKillBonus
		}
		addStars(killer, dropped+bonus)
		ev.Stars = dropped + bonus
	} else if dropped > 0 {
		w.DropStars(victim.X, victim.Y, dropped, now)
	}
	w.emit(ev)
	return dropped
}

// RespawnTank revives a tank at a spawn point, preferring points inside the
// safe zone. Stars are kept.
func (w *World) RespawnTank(t *Tank, now time.Time) {
	p := w.pickRespawnPoint(t)
	t.X, t.Y = p.X, p.Y
	w.clampToMap(t)
	tier := TierFor(t.PeakStars)
	if tier.Radius > t.Radius {
		t.Radius = tier.Radius
	}
	if !t.IsBoss && tier.MaxHP > t.MaxHP {
		t.MaxHP = tier.MaxHP
	}
	t.HP = t.MaxHP
	t.HullAngle = 0
	t.TurretAngle = 0
	t.Alive = true
	t.Exited = false
	t.RespawnAt = time.Time{}
	t.LastDamage = now
	t.NextRegen = time.Time{}
	t.PowerUp = PowerUpNone
	t.PowerUpUntil = time.Time{}
	t.SlowUntil = time.Time{}
	t.InBush = false
	t.zoneDebt = 0
	t.laserDebt = 0
	t.contactDebt = 0
	t.Speed = t.BaseSpeed
	if t.brain != nil {
		t.brain.reset(t, now)
	}
}

func (w *World) pickRespawnPoint(t *Tank) Point {
	if t.IsBoss {
		return w.Map.BossSpawn
	}
	set := w.Map.Spawns
	if t.Team != TeamNone && len(w.Map.TeamSpawns[t.Team]) > 0 {
		set = w.Map.TeamSpawns[t.Team]
	}
	if len(set) == 0 {
		return w.nextSpawnPoint(t.Team)
	}
	start := w.rng.Intn(len(set))
	for i := range set {
		p := set[(start+i)%len(set)]
		if w.zone.Contains(p.X, p.Y) && w.spotFree(t, p.X, p.Y) {
			return p
		}
	}
	for i := range set {
		p := set[(start+i)%len(set)]
		if w.spotFree(t, p.X, p.Y) {
			return p
		}
	}
	return set[start]
}

func (w *World) spotFree(self *Tank, x, y float64) bool {
	for _, o := range w.tanks {
		if o == self || !o.Alive {
			continue
		}
		if CheckCollision(x, y, self.Radius, o.X, o.Y, o.Radius) {
			return false
		}
	}
	return true
}

// regen restores 1 HP after RegenDelay without damage, then every
// RegenInterval
func (w *World) regen(t *Tank, now time.Time) {
	if !t.Alive || t.HP >= t.MaxHP || t.IsBoss {
		return
	}
	if now.Sub(t.LastDamage) < RegenDelay {
		return
	}
	if !t.NextRegen.IsZero() && now.Before(t.NextRegen) {
		return
	}
	t.HP++
	t.NextRegen = now.Add(RegenInterval)
}

// Unstick teleports a tank to a nearby walkable cell. It is rate limited
// by UnstickCooldown.
func (w *World) Unstick(t *Tank, now time.Time) bool {
	if !t.Alive || now.Before(t.UnstickAt) {
		return false
	}
	p, ok := w.randomFreeSpotNear(t, t.X, t.Y, UnstickRadius)
	if !ok {
		return false
	}
	t.X, t.Y = p.X, p.Y
	t.UnstickAt = now.Add(UnstickCooldown)
	return true
}

// randomFreeSpotNear samples cell centres within radius of (x,y) where the
// tank fits
func (w *World) randomFreeSpotNear(t *Tank, x, y, radius float64) (Point, bool) {
	for i := 0; i < 40; i++ {
		a := w.rng.Float64() * 2 * math.Pi
		d := 1 + w.rng.Float64()*(radius-1)
		cx, cy := cellOf(x+math.Sin(a)*d, y-math.Cos(a)*d)
		px, py := float64(cx)+0.5, float64(cy)+0.5
		if !w.fits(t, px, py) {
			continue
		}
		return Point{px, py}, true
	}
	return Point{}, false
}

// randomWalkableCell returns the centre of a random cell free of terrain
func (w *World) randomWalkableCell() (Point, bool) {
	for i := 0; i < 60; i++ {
		cx := w.rng.Intn(w.Width)
		cy := w.rng.Intn(w.Height)
		if w.Terrain.Walkable(cx, cy) {
			if o, ok := w.Terrain.At(cx, cy); ok && o.Kind == ObstacleQuicksand {
				continue
			}
			return Point{float64(cx) + 0.5, float64(cy) + 0.5}, true
		}
	}
	return Point{}, false
}

func (w *World) fits(t *Tank, x, y float64) bool {
	r := t.Radius
	if x < r || y < r || x > float64(w.Width)-r || y > float64(w.Height)-r {
		return false
	}
	if CircleHitsTerrain(w.Terrain, x, y, r) {
		return false
	}
	return w.spotFree(t, x, y)
}

func (w *World) clampToMap(t *Tank) {
	t.X = Clamp(t.X, t.Radius, float64(w.Width)-t.Radius)
	t.Y = Clamp(t.Y, t.Radius, float64(w.Height)-t.Radius)
}
