package main

import "time"

const (
	CarrierSpeedFactor = 0.7
	QuicksandFactor    = 0.5
	QuicksandDuration  = 10 * time.Second
	SpeedPowerFactor   = 1.5
)

// MoveTank advances a tank one tick along moveAngle. A nil angle means no
// movement. Blocked moves slide along X or Y before giving up.
func (w *World) MoveTank(t *Tank, moveAngle *float64, now time.Time) {
	if moveAngle == nil || !t.Alive || !validAngle(*moveAngle) {
		return
	}
	speed := t.Speed
	if t.CarryingFlag != TeamNone {
		speed *= CarrierSpeedFactor
	}
	t.X, t.Y = slideMove(t.X, t.Y, t.Radius, *moveAngle, speed*w.dt, w.Width, w.Height, func(x, y float64) bool {
		return w.canOccupy(t, x, y)
	})
	t.HullAngle = NormalizeAngle(*moveAngle)
	w.applyTerrain(t, now)
}

// slideMove returns the position after a step along angle. It tries the
// full move, then X only, then Y only, and stays put if all are blocked.
func slideMove(x, y, r, angle, step float64, width, height int, free func(x, y float64) bool) (float64, float64) {
	hx, hy := Heading(angle)
	tx := Clamp(x+hx*step, r, float64(width)-r)
	ty := Clamp(y+hy*step, r, float64(height)-r)
	switch {
	case free(tx, ty):
		return tx, ty
	case free(tx, y):
		return tx, y
	case free(x, ty):
		return x, ty
	}
	return x, y
}

func (w *World) canOccupy(t *Tank, x, y float64) bool {
	if CircleHitsTerrain(w.Terrain, x, y, t.Radius) {
		return false
	}
	for _, o := range w.tanks {
		if o == t || !o.Alive {
			continue
		}
		if CheckCollision(x, y, t.Radius, o.X, o.Y, o.Radius) {
			// already overlapping tanks may separate
			if !CheckCollision(t.X, t.Y, t.Radius, o.X, o.Y, o.Radius) ||
				DistanceSq(x, y, o.X, o.Y) < DistanceSq(t.X, t.Y, o.X, o.Y) {
				return false
			}
		}
	}
	return true
}

// applyTerrain updates bush concealment and quicksand slow for the cell
// under the tank centre
func (w *World) applyTerrain(t *Tank, now time.Time) {
	cx, cy := cellOf(t.X, t.Y)
	t.InBush = false
	if o, ok := w.Terrain.At(cx, cy); ok {
		switch o.Kind {
		case ObstacleBush:
			t.InBush = true
		case ObstacleQuicksand:
			t.SlowUntil = now.Add(QuicksandDuration)
		}
	}
	w.recomputeSpeed(t, now)
}

// recomputeSpeed derives the current speed from base speed and active
// modifiers
func (w *World) recomputeSpeed(t *Tank, now time.Time) {
	s := t.BaseSpeed
	if t.PowerUp == PowerUpSpeed && now.Before(t.PowerUpUntil) {
		s *= SpeedPowerFactor
	}
	if now.Before(t.SlowUntil) {
		s *= QuicksandFactor
	}
	t.Speed = s
}
