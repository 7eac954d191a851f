package main

import (
	"math"
	"strconv"
	"time"
)

const (
	BotSeparation      = 2.0
	BotZoneMargin      = 4.0
	BotDetectRange     = 12.0
	BotBushRange       = 3.0 // bushes hide tanks further away than this
	BotStandoff        = 3.0
	BotFireRange       = 10.0
	BotFireArc         = 0.25 // rad
	BotTurretTurnRate  = 4.0  // rad/s
	BotWaypointReached = 1.5
	BotWaypointTimeout = 8 * time.Second
	BotStallWindow     = 2 * time.Second
	BotStallDistance   = 0.5
	BotStallTeleport   = 4.0
	MaxBots            = 12
)

// goldenAngle spreads patrol waypoints of consecutive bots around the map
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// botBrain is the per-bot steering memory
type botBrain struct {
	index      int
	wpX, wpY   float64
	wpSet      bool
	wpSetAt    time.Time
	path       []Cell
	lastAim    float64
	hasAim     bool
	anchorX    float64
	anchorY    float64
	anchorAt   time.Time
	wantsMove  bool
	lastTarget string
}

func (w *World) newBotBrain(t *Tank, now time.Time) *botBrain {
	b := &botBrain{index: w.nextBot}
	w.nextBot++
	b.anchorAt = now
	return b
}

func (b *botBrain) reset(t *Tank, now time.Time) {
	b.wpSet = false
	b.path = nil
	b.hasAim = false
	b.anchorX, b.anchorY = t.X, t.Y
	b.anchorAt = now
}

// isOpponent applies the bot targeting rule: team modes fight the other
// team, free-for-all modes only hunt humans
func (w *World) isOpponent(self, o *Tank) bool {
	if o == self || !o.Alive || o.IsBoss {
		return false
	}
	if w.Config.Teams {
		return o.Team != TeamNone && o.Team != self.Team
	}
	return !o.IsBot
}

// botTarget returns the nearest visible opponent within maxRange
func (w *World) botTarget(t *Tank, maxRange float64) (*Tank, float64, bool) {
	var best *Tank
	bestD := math.MaxFloat64
	for _, o := range w.tanks {
		if !w.isOpponent(t, o) {
			continue
		}
		d := Distance(t.X, t.Y, o.X, o.Y)
		if d > maxRange || (o.InBush && d > BotBushRange) {
			continue
		}
		if d < bestD {
			best, bestD = o, d
		}
	}
	return best, bestD, best != nil
}

// steerBots picks a move for every living bot by priority and turns the
// turret toward the nearest opponent
func (w *World) steerBots(now time.Time) {
	for _, t := range w.tanks {
		if !t.IsBot || !t.Alive || t.brain == nil {
			continue
		}
		angle, move := w.botSteer(t, now)
		t.brain.wantsMove = move
		if move {
			w.MoveTank(t, &angle, now)
		}
		w.botAim(t)
	}
}

func (w *World) botSteer(t *Tank, now time.Time) (float64, bool) {
	// separation
	var sx, sy float64
	for _, o := range w.tanks {
		if o == t || !o.IsBot || !o.Alive {
			continue
		}
		d := Distance(t.X, t.Y, o.X, o.Y)
		if d >= BotSeparation || d == 0 {
			continue
		}
		sx += (t.X - o.X) / d
		sy += (t.Y - o.Y) / d
	}
	if math.Hypot(sx, sy) > 1e-6 {
		return AngleTo(0, 0, sx, sy), true
	}

	// zone edge
	z := w.zone
	if z.Enabled && z.Phase > 0 {
		if Distance(t.X, t.Y, z.CenterX, z.CenterY) > z.Radius-BotZoneMargin {
			return AngleTo(t.X, t.Y, z.CenterX, z.CenterY), true
		}
	}

	// chase
	if target, d, ok := w.botTarget(t, BotDetectRange); ok {
		t.brain.lastTarget = target.ID
		if d <= BotStandoff {
			return 0, false
		}
		return AngleTo(t.X, t.Y, target.X, target.Y), true
	}

	return w.botPatrol(t, now)
}

// botPatrol walks toward the bot's waypoint, following an A* path when
// one exists
func (w *World) botPatrol(t *Tank, now time.Time) (float64, bool) {
	b := t.brain
	if !b.wpSet || Distance(t.X, t.Y, b.wpX, b.wpY) < BotWaypointReached || now.Sub(b.wpSetAt) > BotWaypointTimeout {
		w.retargetWaypoint(t, now)
	}
	for len(b.path) > 0 {
		next := b.path[0]
		nx, ny := float64(next.X)+0.5, float64(next.Y)+0.5
		if Distance(t.X, t.Y, nx, ny) < 0.5 {
			b.path = b.path[1:]
			continue
		}
		return AngleTo(t.X, t.Y, nx, ny), true
	}
	return AngleTo(t.X, t.Y, b.wpX, b.wpY), true
}

func (w *World) retargetWaypoint(t *Tank, now time.Time) {
	b := t.brain
	size := math.Min(float64(w.Width), float64(w.Height))
	a := float64(b.index) * goldenAngle
	r := (0.2 + w.rng.Float64()*0.25) * size
	hx, hy := Heading(a)
	b.wpX = Clamp(float64(w.Width)/2+hx*r, 1, float64(w.Width)-1)
	b.wpY = Clamp(float64(w.Height)/2+hy*r, 1, float64(w.Height)-1)
	b.wpSet = true
	b.wpSetAt = now

	sx, sy := cellOf(t.X, t.Y)
	gx, gy := cellOf(b.wpX, b.wpY)
	if path, ok := FindPath(w.Terrain, w.Width, w.Height, Cell{sx, sy}, Cell{gx, gy}); ok {
		b.path = path
	} else {
		b.path = nil
	}
}

// botAim turns the turret toward the nearest opponent, else keeps the last
// known aim, else follows the hull
func (w *World) botAim(t *Tank) {
	b := t.brain
	desired := t.HullAngle
	if target, _, ok := w.botTarget(t, BotDetectRange); ok {
		desired = AngleTo(t.X, t.Y, target.X, target.Y)
		b.lastAim = desired
		b.hasAim = true
	} else if b.hasAim {
		desired = b.lastAim
	}
	diff := NormalizeAngle(desired - t.TurretAngle)
	maxTurn := BotTurretTurnRate * w.dt
	if diff > maxTurn {
		diff = maxTurn
	} else if diff < -maxTurn {
		diff = -maxTurn
	}
	t.TurretAngle = NormalizeAngle(t.TurretAngle + diff)
}

// unstickBots teleports bots that tried to move but stayed in place for
// BotStallWindow
func (w *World) unstickBots(now time.Time) {
	for _, t := range w.tanks {
		if !t.IsBot || !t.Alive || t.brain == nil {
			continue
		}
		b := t.brain
		if !b.wantsMove {
			b.anchorX, b.anchorY = t.X, t.Y
			b.anchorAt = now
			continue
		}
		if now.Sub(b.anchorAt) < BotStallWindow {
			continue
		}
		if Distance(t.X, t.Y, b.anchorX, b.anchorY) < BotStallDistance {
			if p, ok := w.randomFreeSpotNear(t, t.X, t.Y, BotStallTeleport); ok {
				t.X, t.Y = p.X, p.Y
				b.path = nil
				b.wpSet = false
			}
		}
		b.anchorX, b.anchorY = t.X, t.Y
		b.anchorAt = now
	}
}

// botsFire shoots at the nearest opponent when it is in range and the
// turret faces it
func (w *World) botsFire(now time.Time) {
	for _, t := range w.tanks {
		if !t.IsBot || !t.Alive {
			continue
		}
		target, _, ok := w.botTarget(t, BotFireRange)
		if !ok {
			continue
		}
		want := AngleTo(t.X, t.Y, target.X, target.Y)
		if math.Abs(NormalizeAngle(want-t.TurretAngle)) > BotFireArc {
			continue
		}
		w.TryFire(t, now)
	}
}

// AddBots adds n bots, balancing teams in team modes
func (w *World) AddBots(n int, now time.Time) []*Tank {
	var out []*Tank
	for i := 0; i < n; i++ {
		team := TeamNone
		if w.Config.Teams {
			team = w.AssignTeam(TeamNone)
		}
		id := "bot-" + strconv.Itoa(w.nextBot+1)
		out = append(out, w.AddTank(TankSpec{
			ID:    id,
			Name:  botNames[w.nextBot%len(botNames)],
			Color: -1,
			Team:  team,
			IsBot: true,
		}, now))
	}
	return out
}

var botNames = []string{"Rusty", "Bolt", "Tracker", "Havoc", "Nova", "Grinder", "Vex", "Brick", "Sable", "Moss", "Flint", "Echo"}
