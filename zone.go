package main

import (
	"math"
	"time"
)

const (
	ZonePhases          = 5
	ZoneStartAfter      = 60 * time.Second
	ZoneShrinkDuration  = 20 * time.Second
	ZonePause           = 15 * time.Second
	ZoneDamagePerSecond = 10.0
)

// ZonePhaseFractions are the target sizes per phase as a fraction of the
// initial diameter
var ZonePhaseFractions = [ZonePhases]float64{0.35, 0.25, 0.15, 0.07, 0}

// Zone is the shrinking safe circle
type Zone struct {
	CenterX, CenterY float64
	InitialRadius    float64
	Radius           float64
	TargetRadius     float64
	Phase            int
	ShrinkRate       float64 // cells/s
	ShrinkUntil      time.Time
	NextShrinkAt     time.Time
	Enabled          bool
	shrinking        bool
}

// NewZone creates a zone covering the whole w x h map
func NewZone(w, h int, enabled bool) *Zone {
	r := math.Hypot(float64(w), float64(h)) / 2
	return &Zone{
		CenterX:       float64(w) / 2,
		CenterY:       float64(h) / 2,
		InitialRadius: r,
		Radius:        r,
		TargetRadius:  r,
		Enabled:       enabled,
	}
}

// Contains reports whether a point is inside the safe area. A disabled
// zone contains everything.
func (z *Zone) Contains(x, y float64) bool {
	if !z.Enabled {
		return true
	}
	return DistanceSq(x, y, z.CenterX, z.CenterY) <= z.Radius*z.Radius
}

// Collapsed reports whether the zone reached its terminal radius
func (z *Zone) Collapsed() bool {
	return z.Enabled && z.Phase == ZonePhases && !z.shrinking && z.Radius == 0
}

// Shrinking reports whether the radius is currently moving
func (z *Zone) Shrinking() bool {
	return z.shrinking
}

// Update advances phases and the radius. elapsed is match time.
func (z *Zone) Update(elapsed time.Duration, now time.Time, dt float64) {
	if !z.Enabled {
		return
	}
	switch {
	case z.shrinking:
		z.Radius -= z.ShrinkRate * dt
		if z.Radius <= z.TargetRadius || !now.Before(z.ShrinkUntil) {
			z.Radius = z.TargetRadius
			z.shrinking = false
			if z.Phase < ZonePhases {
				z.NextShrinkAt = now.Add(ZonePause)
			}
		}
	case z.Phase == 0:
		if elapsed >= ZoneStartAfter {
			z.beginPhase(now)
		}
	case z.Phase < ZonePhases && !z.NextShrinkAt.IsZero() && !now.Before(z.NextShrinkAt):
		z.beginPhase(now)
	}
}

func (z *Zone) beginPhase(now time.Time) {
	z.Phase++
	target := 2 * z.InitialRadius * ZonePhaseFractions[z.Phase-1]
	if target > z.Radius {
		target = z.Radius
	}
	z.TargetRadius = target
	z.ShrinkRate = (z.Radius - target) / ZoneShrinkDuration.Seconds()
	z.ShrinkUntil = now.Add(ZoneShrinkDuration)
	z.NextShrinkAt = time.Time{}
	z.shrinking = true
}

// applyZoneDamage hurts living tanks outside the safe area. Damage is
// accumulated fractionally per tank.
func (w *World) applyZoneDamage(now time.Time) {
	if !w.zone.Enabled || w.zone.Phase == 0 {
		return
	}
	for _, t := range w.tanks {
		if !t.Alive || t.IsBoss {
			continue
		}
		if w.zone.Contains(t.X, t.Y) {
			t.zoneDebt = 0
			continue
		}
		t.zoneDebt += ZoneDamagePerSecond * w.dt
		whole := int(t.zoneDebt)
		if whole == 0 {
			continue
		}
		t.zoneDebt -= float64(whole)
		if w.DamageTank(t, whole, now) {
			w.KillTank(t, nil, now)
		}
	}
}
