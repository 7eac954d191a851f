package main

import "time"

// Tank flag bits in TankState.Flags
const (
	TankAlive   uint8 = 1 << 0
	TankBot     uint8 = 1 << 1
	TankBoss    uint8 = 1 << 2
	TankInBush  uint8 = 1 << 3
	TankExited  uint8 = 1 << 4
	TankCarrier uint8 = 1 << 5
	TankSlowed  uint8 = 1 << 6
)

// LeaderboardSize is the number of leaderboard lines per snapshot
const LeaderboardSize = 10

// StarLayout returns the positions of the active stars
func (w *World) StarLayout() []StarState {
	out := make([]StarState, 0, len(w.stars))
	for _, st := range w.stars {
		if st.Active {
			out = append(out, StarState{float32(st.X), float32(st.Y)})
		}
	}
	return out
}

// Snapshot is a value copy of a world at the end of a tick. Floats are
// float32 to match the wire format.
type Snapshot struct {
	Tick        uint32         `msgpack:"tk"`
	Timestamp   int64          `msgpack:"ts"` // unix ms
	Phase       uint8          `msgpack:"ph"`
	Alive       uint8          `msgpack:"al"`
	Elapsed     uint32         `msgpack:"el"` // ms
	Zone        ZoneState      `msgpack:"z"`
	Stars       []StarState    `msgpack:"s"`
	Bullets     []BulletState  `msgpack:"b"`
	PowerUps    []PowerUpState `msgpack:"pu"`
	Portals     []PortalState  `msgpack:"po"`
	Tanks       []TankState    `msgpack:"t"`
	Leaderboard []LeaderState  `msgpack:"lb"`
	Boss        *BossSnapshot  `msgpack:"bo,omitempty"`
	CTF         *CTFSnapshot   `msgpack:"ctf,omitempty"`
}

type ZoneState struct {
	CX     float32 `msgpack:"cx"`
	CY     float32 `msgpack:"cy"`
	Radius float32 `msgpack:"r"`
	Target float32 `msgpack:"tr"`
	Phase  uint8   `msgpack:"p"`
}

type StarState struct {
	X float32 `msgpack:"x" json:"x"`
	Y float32 `msgpack:"y" json:"y"`
}

type BulletState struct {
	ID     uint32  `msgpack:"id"`
	Owner  string  `msgpack:"o"`
	X      float32 `msgpack:"x"`
	Y      float32 `msgpack:"y"`
	Angle  float32 `msgpack:"a"`
	Rocket bool    `msgpack:"rk"`
	Mine   bool    `msgpack:"mn"`
}

type PowerUpState struct {
	ID   uint32  `msgpack:"id"`
	Kind uint8   `msgpack:"k"`
	X    float32 `msgpack:"x"`
	Y    float32 `msgpack:"y"`
}

type PortalState struct {
	ID  uint32  `msgpack:"id"`
	X   float32 `msgpack:"x"`
	Y   float32 `msgpack:"y"`
	TTL uint16  `msgpack:"ttl"` // ms left
}

type TankState struct {
	ID      string  `msgpack:"id"`
	X       float32 `msgpack:"x"`
	Y       float32 `msgpack:"y"`
	Hull    float32 `msgpack:"h"`
	Turret  float32 `msgpack:"tu"`
	Radius  float32 `msgpack:"r"`
	HP      uint16  `msgpack:"hp"`
	MaxHP   uint16  `msgpack:"mhp"`
	Stars   uint16  `msgpack:"s"`
	Kills   uint16  `msgpack:"k"`
	Team    uint8   `msgpack:"tm"`
	Color   uint8   `msgpack:"c"`
	PowerUp uint8   `msgpack:"pw"`
	Flags   uint8   `msgpack:"f"`
}

// Alive reports the alive flag
func (t TankState) Alive() bool {
	return t.Flags&TankAlive != 0
}

type LeaderState struct {
	ID    string `msgpack:"id"`
	Stars uint16 `msgpack:"s"`
}

type BossSnapshot struct {
	ID         string  `msgpack:"id"`
	Attack     uint8   `msgpack:"a"`
	Phase      uint8   `msgpack:"p"`
	LaserAngle float32 `msgpack:"la"`
}

type FlagSnapshot struct {
	X       float32 `msgpack:"x"`
	Y       float32 `msgpack:"y"`
	State   uint8   `msgpack:"s"`
	Carrier string  `msgpack:"c"`
}

type CTFSnapshot struct {
	Red       FlagSnapshot `msgpack:"rf"`
	Blue      FlagSnapshot `msgpack:"bf"`
	RedScore  uint8        `msgpack:"rs"`
	BlueScore uint8        `msgpack:"bs"`
	Remaining uint32       `msgpack:"rem"` // ms
}

func clampU16(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

func clampU8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 0xFF {
		return 0xFF
	}
	return uint8(v)
}

func durMs32(d time.Duration) uint32 {
	if d < 0 {
		return 0
	}
	return uint32(d / time.Millisecond)
}

// Snapshot copies the world state into wire values
func (w *World) Snapshot(now time.Time) Snapshot {
	z := w.zone
	s := Snapshot{
		Tick:      w.tick,
		Timestamp: now.UnixMilli(),
		Phase:     uint8(w.phase),
		Alive:     clampU8(w.aliveCount()),
		Elapsed:   durMs32(w.elapsed),
		Zone: ZoneState{
			CX:     float32(z.CenterX),
			CY:     float32(z.CenterY),
			Radius: float32(z.Radius),
			Target: float32(z.TargetRadius),
			Phase:  uint8(z.Phase),
		},
		Stars:       w.StarLayout(),
		Bullets:     make([]BulletState, 0, len(w.bullets)),
		PowerUps:    make([]PowerUpState, 0, len(w.powerUps)),
		Portals:     make([]PortalState, 0, len(w.portals)),
		Tanks:       make([]TankState, 0, len(w.tanks)),
		Leaderboard: make([]LeaderState, 0, LeaderboardSize),
	}
	for _, b := range w.bullets {
		s.Bullets = append(s.Bullets, BulletState{
			ID:     b.ID,
			Owner:  b.OwnerID,
			X:      float32(b.X),
			Y:      float32(b.Y),
			Angle:  float32(b.Angle),
			Rocket: b.Rocket,
			Mine:   b.Mine,
		})
	}
	for _, p := range w.powerUps {
		s.PowerUps = append(s.PowerUps, PowerUpState{p.ID, uint8(p.Kind), float32(p.X), float32(p.Y)})
	}
	for _, p := range w.portals {
		ttl := p.ExpiresAt.Sub(now)
		s.Portals = append(s.Portals, PortalState{p.ID, float32(p.X), float32(p.Y), clampU16(int(ttl / time.Millisecond))})
	}
	for _, t := range w.tanks {
		var flags uint8
		if t.Alive {
			flags |= TankAlive
		}
		if t.IsBot {
			flags |= TankBot
		}
		if t.IsBoss {
			flags |= TankBoss
		}
		if t.InBush {
			flags |= TankInBush
		}
		if t.Exited {
			flags |= TankExited
		}
		if t.CarryingFlag != TeamNone {
			flags |= TankCarrier
		}
		if now.Before(t.SlowUntil) {
			flags |= TankSlowed
		}
		pw := PowerUpNone
		if now.Before(t.PowerUpUntil) {
			pw = t.PowerUp
		}
		s.Tanks = append(s.Tanks, TankState{
			ID:      t.ID,
			X:       float32(t.X),
			Y:       float32(t.Y),
			Hull:    float32(t.HullAngle),
			Turret:  float32(t.TurretAngle),
			Radius:  float32(t.Radius),
			HP:      clampU16(t.HP),
			MaxHP:   clampU16(t.MaxHP),
			Stars:   clampU16(t.Stars),
			Kills:   clampU16(t.Kills),
			Team:    uint8(t.Team),
			Color:   clampU8(t.Color),
			PowerUp: uint8(pw),
			Flags:   flags,
		})
	}
	for _, st := range w.Standings(LeaderboardSize) {
		s.Leaderboard = append(s.Leaderboard, LeaderState{ID: st.ID, Stars: clampU16(st.Stars)})
	}
	if w.boss != nil {
		s.Boss = &BossSnapshot{
			ID:         w.boss.Tank.ID,
			Attack:     uint8(w.boss.Attack),
			Phase:      uint8(w.boss.Phase),
			LaserAngle: float32(w.boss.LaserAngle),
		}
	}
	if w.ctf != nil {
		flag := func(f *Flag) FlagSnapshot {
			return FlagSnapshot{X: float32(f.X), Y: float32(f.Y), State: uint8(f.State), Carrier: f.CarrierID}
		}
		s.CTF = &CTFSnapshot{
			Red:       flag(w.ctf.Flags[TeamRed]),
			Blue:      flag(w.ctf.Flags[TeamBlue]),
			RedScore:  clampU8(w.ctf.Scores[TeamRed]),
			BlueScore: clampU8(w.ctf.Scores[TeamBlue]),
			Remaining: durMs32(w.ctf.EndsAt.Sub(now)),
		}
	}
	return s
}

// TankByID finds a tank in the snapshot
func (s *Snapshot) TankByID(id string) (TankState, bool) {
	for _, t := range s.Tanks {
		if t.ID == id {
			return t, true
		}
	}
	return TankState{}, false
}
