package main

import "time"

const (
	MaxPowerUps          = 5
	PowerUpSpawnInterval = 12 * time.Second
	PowerUpLifetime      = 30 * time.Second
	PowerUpDuration      = 10 * time.Second
	PowerUpPickupRadius  = 0.5
)

// PowerUpKind is the closed set of power-up effects
type PowerUpKind uint8

const (
	PowerUpNone PowerUpKind = iota
	PowerUpSpeed
	PowerUpRapidFire
	PowerUpShield
	PowerUpMagnet
	PowerUpRocket
	powerUpCount
)

func (k PowerUpKind) String() string {
	switch k {
	case PowerUpSpeed:
		return "speed"
	case PowerUpRapidFire:
		return "rapid"
	case PowerUpShield:
		return "shield"
	case PowerUpMagnet:
		return "magnet"
	case PowerUpRocket:
		return "rocket"
	}
	return "none"
}

// Valid reports whether k is a grantable effect
func (k PowerUpKind) Valid() bool {
	return k > PowerUpNone && k < powerUpCount
}

// PowerUp is a pickup lying on the map
type PowerUp struct {
	ID        uint32
	Kind      PowerUpKind
	X, Y      float64
	ExpiresAt time.Time
}

// PowerUps returns the pickups on the map
func (w *World) PowerUps() []*PowerUp {
	return w.powerUps
}

// GrantPowerUp replaces any active effect with kind for PowerUpDuration
func (w *World) GrantPowerUp(t *Tank, kind PowerUpKind, now time.Time) {
	if !kind.Valid() {
		return
	}
	t.PowerUp = kind
	t.PowerUpUntil = now.Add(PowerUpDuration)
	w.recomputeSpeed(t, now)
}

// updatePowerUps expires old pickups, spawns new ones on schedule and
// grants pickups to overlapping tanks
func (w *World) updatePowerUps(now time.Time) {
	n := 0
	for _, p := range w.powerUps {
		if now.Before(p.ExpiresAt) {
			w.powerUps[n] = p
			n++
		}
	}
	w.powerUps = w.powerUps[:n]

	if !now.Before(w.nextPowerUpAt) {
		w.nextPowerUpAt = now.Add(PowerUpSpawnInterval)
		if len(w.powerUps) < MaxPowerUps {
			if pt, ok := w.randomWalkableCell(); ok {
				w.nextPowerUpID++
				w.powerUps = append(w.powerUps, &PowerUp{
					ID:        w.nextPowerUpID,
					Kind:      PowerUpKind(1 + w.rng.Intn(int(powerUpCount)-1)),
					X:         pt.X,
					Y:         pt.Y,
					ExpiresAt: now.Add(PowerUpLifetime),
				})
			}
		}
	}

	n = 0
	for _, p := range w.powerUps {
		taken := false
		for _, t := range w.tanks {
			if !t.Alive || t.IsBoss {
				continue
			}
			if CheckCollision(t.X, t.Y, t.Radius, p.X, p.Y, PowerUpPickupRadius) {
				w.GrantPowerUp(t, p.Kind, now)
				taken = true
				break
			}
		}
		if !taken {
			w.powerUps[n] = p
			n++
		}
	}
	for i := n; i < len(w.powerUps); i++ {
		w.powerUps[i] = nil
	}
	w.powerUps = w.powerUps[:n]
}

// updateTankTimers rolls back lapsed power-ups and slows, applies regen
// and revives tanks whose respawn delay passed
func (w *World) updateTankTimers(now time.Time) {
	for _, t := range w.tanks {
		if t.PowerUp != PowerUpNone && !now.Before(t.PowerUpUntil) {
			t.PowerUp = PowerUpNone
			t.PowerUpUntil = time.Time{}
		}
		if t.Alive {
			w.recomputeSpeed(t, now)
			w.regen(t, now)
			continue
		}
		if t.Exited || t.RespawnAt.IsZero() || now.Before(t.RespawnAt) {
			continue
		}
		if t.IsBoss || w.respawnsAllowed() {
			w.RespawnTank(t, now)
		}
	}
}
