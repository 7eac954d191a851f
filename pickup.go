package main

import (
	"math"
	"time"
)

const (
	StarMagnetRadius   = 1.0
	MagnetPowerRadius  = 3.0
	StarRespawnDelay   = 10 * time.Second
	starDropRingRadius = 1.2
)

// Star is a collectable star slot. Layout slots respawn at their home
// position; slots created by drops vanish once collected.
type Star struct {
	ID           int
	X, Y         float64
	HomeX, HomeY float64
	Active       bool
	RespawnAt    time.Time
	temp         bool
}

// Stars returns every star slot, active or not
func (w *World) Stars() []*Star {
	return w.stars
}

func (w *World) seedStars(layout []Point) {
	for i, p := range layout {
		w.stars = append(w.stars, &Star{ID: i, X: p.X, Y: p.Y, HomeX: p.X, HomeY: p.Y, Active: true})
	}
}

// magnetRadius returns the star pickup radius for a tank
func magnetRadius(t *Tank, now time.Time) float64 {
	if t.PowerUp == PowerUpMagnet && now.Before(t.PowerUpUntil) {
		return MagnetPowerRadius
	}
	return StarMagnetRadius
}

// updateStars respawns layout stars and lets living human tanks collect
// active ones
func (w *World) updateStars(now time.Time) {
	for _, s := range w.stars {
		if !s.Active && !s.temp && !s.RespawnAt.IsZero() && !now.Before(s.RespawnAt) {
			s.X, s.Y = s.HomeX, s.HomeY
			s.Active = true
			s.RespawnAt = time.Time{}
		}
	}
	for _, t := range w.tanks {
		if !t.Alive || t.IsBot || t.IsBoss {
			continue
		}
		r := magnetRadius(t, now) + t.Radius
		for _, s := range w.stars {
			if !s.Active {
				continue
			}
			if DistanceSq(t.X, t.Y, s.X, s.Y) <= r*r {
				s.Active = false
				if s.temp {
					s.RespawnAt = time.Time{}
				} else {
					s.RespawnAt = now.Add(StarRespawnDelay)
				}
				addStars(t, 1)
			}
		}
	}
}

// DropStars scatters n stars on a jittered ring around (x,y). Inactive
// temporary slots are reused before new ones are allocated.
func (w *World) DropStars(x, y float64, n int, now time.Time) {
	if n <= 0 {
		return
	}
	base := w.rng.Float64() * 2 * math.Pi
	for i := 0; i < n; i++ {
		a := base + float64(i)*2*math.Pi/float64(n) + (w.rng.Float64()-0.5)*0.4
		d := starDropRingRadius * (0.6 + w.rng.Float64()*0.8)
		sx := Clamp(x+math.Sin(a)*d, 0.5, float64(w.Width)-0.5)
		sy := Clamp(y-math.Cos(a)*d, 0.5, float64(w.Height)-0.5)
		if cx, cy := cellOf(sx, sy); w.Terrain.Blocking(cx, cy) {
			sx, sy = x, y
		}
		s := w.freeStarSlot()
		s.X, s.Y = sx, sy
		s.Active = true
		s.RespawnAt = time.Time{}
	}
}

func (w *World) freeStarSlot() *Star {
	for _, s := range w.stars {
		if s.temp && !s.Active {
			return s
		}
	}
	s := &Star{ID: len(w.stars), temp: true}
	w.stars = append(w.stars, s)
	return s
}
