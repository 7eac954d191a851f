package main

import "time"

const (
	FlagPickupRadius  = 1.5
	CarrierMaxHP      = 60
	CaptureStarReward = 2
	FlagReturnAfter   = 30 * time.Second
	CTFTimeLimit      = 5 * time.Minute
	CTFScoreLimit     = 3
)

// FlagState is where a flag currently is
type FlagState uint8

const (
	FlagHome FlagState = iota
	FlagCarried
	FlagDropped
)

// Flag belongs to Team and must be carried to the enemy base
type Flag struct {
	Team         int
	HomeX, HomeY float64
	X, Y         float64
	State        FlagState
	CarrierID    string
	DroppedAt    time.Time
}

// CTF tracks both flags, bases and scores
type CTF struct {
	Flags  [3]*Flag // indexed by team, [0] unused
	Scores [3]int
	Bases  [3]Rect
	EndsAt time.Time
	w      *World
}

func newCTF(w *World, def *MapDef, now time.Time) *CTF {
	c := &CTF{Bases: def.Bases, EndsAt: now.Add(CTFTimeLimit), w: w}
	for _, team := range []int{TeamRed, TeamBlue} {
		home := def.FlagHomes[team]
		c.Flags[team] = &Flag{Team: team, HomeX: home.X, HomeY: home.Y, X: home.X, Y: home.Y}
	}
	return c
}

func otherTeam(team int) int {
	switch team {
	case TeamRed:
		return TeamBlue
	case TeamBlue:
		return TeamRed
	}
	return TeamNone
}

func (c *CTF) sendHome(f *Flag) {
	f.State = FlagHome
	f.X, f.Y = f.HomeX, f.HomeY
	f.CarrierID = ""
	f.DroppedAt = time.Time{}
}

// releaseCarrier lifts the carrier HP cap
func releaseCarrier(t *Tank) {
	t.CarryingFlag = TeamNone
	tier := TierFor(t.PeakStars)
	if tier.MaxHP > t.MaxHP {
		t.MaxHP = tier.MaxHP
	}
}

// OnTankKilled drops a flag carried by t at its position
func (c *CTF) OnTankKilled(t *Tank, now time.Time) {
	if t.CarryingFlag == TeamNone {
		return
	}
	f := c.Flags[t.CarryingFlag]
	releaseCarrier(t)
	if f == nil || f.CarrierID != t.ID {
		return
	}
	f.State = FlagDropped
	f.CarrierID = ""
	f.X, f.Y = t.X, t.Y
	f.DroppedAt = now
}

// Update moves carried flags, handles pickups, returns and captures
func (c *CTF) Update(now time.Time) {
	w := c.w
	for _, team := range []int{TeamRed, TeamBlue} {
		f := c.Flags[team]
		switch f.State {
		case FlagDropped:
			if now.Sub(f.DroppedAt) >= FlagReturnAfter {
				c.sendHome(f)
			}
		case FlagCarried:
			carrier, ok := w.byID[f.CarrierID]
			if !ok || !carrier.Alive {
				// carrier vanished without a kill; drop where the flag was
				f.State = FlagDropped
				f.CarrierID = ""
				f.DroppedAt = now
				if ok {
					releaseCarrier(carrier)
				}
				continue
			}
			f.X, f.Y = carrier.X, carrier.Y
		}
	}

	for _, t := range w.tanks {
		if !t.Alive || t.Team == TeamNone {
			continue
		}
		for _, team := range []int{TeamRed, TeamBlue} {
			f := c.Flags[team]
			if Distance(t.X, t.Y, f.X, f.Y) > FlagPickupRadius {
				continue
			}
			if f.Team == t.Team {
				if f.State == FlagDropped {
					c.sendHome(f)
				}
				continue
			}
			if f.State != FlagCarried && t.CarryingFlag == TeamNone {
				f.State = FlagCarried
				f.CarrierID = t.ID
				f.DroppedAt = time.Time{}
				t.CarryingFlag = f.Team
				if t.MaxHP > CarrierMaxHP {
					t.MaxHP = CarrierMaxHP
				}
				if t.HP > t.MaxHP {
					t.HP = t.MaxHP
				}
			}
		}
	}

	for _, team := range []int{TeamRed, TeamBlue} {
		f := c.Flags[team]
		if f.State != FlagCarried {
			continue
		}
		carrier := w.byID[f.CarrierID]
		if !c.Bases[carrier.Team].Contains(carrier.X, carrier.Y) {
			continue
		}
		c.Scores[carrier.Team]++
		releaseCarrier(carrier)
		c.sendHome(f)
		for _, mate := range w.tanks {
			if mate.Team == carrier.Team && !mate.Exited {
				addStars(mate, CaptureStarReward)
			}
		}
		w.emit(Event{Kind: EventCapture, TankID: carrier.ID, TankName: carrier.Name, Team: carrier.Team})
	}
}

// Finished reports whether the time or score limit was reached
func (c *CTF) Finished(now time.Time) bool {
	if !now.Before(c.EndsAt) {
		return true
	}
	return c.Scores[TeamRed] >= CTFScoreLimit || c.Scores[TeamBlue] >= CTFScoreLimit
}

// Leader returns the team with the higher score, or TeamNone on a tie
func (c *CTF) Leader() int {
	switch {
	case c.Scores[TeamRed] > c.Scores[TeamBlue]:
		return TeamRed
	case c.Scores[TeamBlue] > c.Scores[TeamRed]:
		return TeamBlue
	}
	return TeamNone
}

// Carriers counts tanks holding each team's flag
func (c *CTF) Carriers(team int) int {
	n := 0
	for _, t := range c.w.tanks {
		if t.CarryingFlag == team {
			n++
		}
	}
	return n
}
