package main

import "time"

const (
	PortalStartAfter = 60 * time.Second
	PortalInterval   = 25 * time.Second
	PortalLifetime   = 20 * time.Second
	PortalRadius     = 0.5
)

// Portal lets a tank leave the match keeping its stars
type Portal struct {
	ID        uint32
	X, Y      float64
	ExpiresAt time.Time
}

// Portals returns the open portals
func (w *World) Portals() []*Portal {
	return w.portals
}

// updatePortals expires portals, opens new ones once the match is old
// enough and processes exits
func (w *World) updatePortals(now time.Time) {
	n := 0
	for _, p := range w.portals {
		if now.Before(p.ExpiresAt) {
			w.portals[n] = p
			n++
		}
	}
	w.portals = w.portals[:n]

	if w.elapsed >= PortalStartAfter {
		if w.nextPortalAt.IsZero() {
			w.nextPortalAt = now
		}
		if !now.Before(w.nextPortalAt) {
			w.nextPortalAt = now.Add(PortalInterval)
			if pt, ok := w.randomWalkableCell(); ok {
				w.nextPortalID++
				w.portals = append(w.portals, &Portal{
					ID:        w.nextPortalID,
					X:         pt.X,
					Y:         pt.Y,
					ExpiresAt: now.Add(PortalLifetime),
				})
			}
		}
	}

	for _, p := range w.portals {
		for _, t := range w.tanks {
			if !t.Alive || t.IsBoss {
				continue
			}
			if CheckCollision(t.X, t.Y, t.Radius, p.X, p.Y, PortalRadius) {
				w.exitThroughPortal(t, now)
			}
		}
	}
}

// exitThroughPortal removes a tank from play. Humans cash out their stars
// and spectate; bots drop their stars and come back later.
func (w *World) exitThroughPortal(t *Tank, now time.Time) {
	if w.ctf != nil {
		w.ctf.OnTankKilled(t, now)
	}
	stars := t.Stars
	t.Alive = false
	t.Stars = 0
	if t.IsBot {
		w.DropStars(t.X, t.Y, stars, now)
		t.RespawnAt = now.Add(RespawnDelay)
		return
	}
	t.Exited = true
	t.RespawnAt = time.Time{}
	w.emit(Event{
		Kind:       EventPortalExit,
		TankID:     t.ID,
		TankName:   t.Name,
		AccountKey: t.AccountKey,
		Stars:      stars,
	})
}
