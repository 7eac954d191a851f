package main

import "time"

// resolveHits applies bullet damage in hit order and settles kills
func (w *World) resolveHits(hits []Hit, now time.Time) {
	for _, h := range hits {
		victim, ok := w.byID[h.TargetID]
		if !ok || !victim.Alive {
			continue
		}
		if w.DamageTank(victim, h.Damage, now) {
			killer := w.byID[h.OwnerID]
			w.KillTank(victim, killer, now)
		}
	}
}
