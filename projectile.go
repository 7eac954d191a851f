package main

import (
	"math"
	"time"
)

const (
	BulletSpeed    = 20.0 // cells/s
	BulletRange    = 12.0
	BulletDamage   = 20
	BulletRadius   = 0.15
	RocketRadius   = 0.35
	RocketDamageX  = 2
	HitBuffer      = 0.1
	FireCooldown   = 500 * time.Millisecond
	MineRadius     = 0.5
	MaxBulletsRoom = 600
)

// Bullet is a projectile or a stationary mine
type Bullet struct {
	ID        uint32
	OwnerID   string
	X, Y      float64
	Angle     float64
	Speed     float64
	Range     float64
	Distance  float64
	Rocket    bool
	Damage    int
	Mine      bool
	ExpiresAt time.Time
	dead      bool
}

// hitRadius is the collision radius of the bullet body
func (b *Bullet) hitRadius() float64 {
	switch {
	case b.Mine:
		return MineRadius
	case b.Rocket:
		return RocketRadius
	}
	return BulletRadius
}

// Hit records a bullet striking a tank during a tick
type Hit struct {
	BulletID uint32
	OwnerID  string
	TargetID string
	Damage   int
	X, Y     float64
}

// fireCooldown returns the cooldown for a tank, halved under rapid-fire
func fireCooldown(t *Tank, now time.Time) time.Duration {
	if t.PowerUp == PowerUpRapidFire && now.Before(t.PowerUpUntil) {
		return FireCooldown / 2
	}
	return FireCooldown
}

// TryFire spawns a bullet from the turret muzzle if the cooldown elapsed
func (w *World) TryFire(t *Tank, now time.Time) (*Bullet, bool) {
	if !t.Alive || now.Sub(t.LastFire) < fireCooldown(t, now) {
		return nil, false
	}
	if len(w.bullets) >= MaxBulletsRoom {
		return nil, false
	}
	t.LastFire = now
	rocket := t.PowerUp == PowerUpRocket && now.Before(t.PowerUpUntil)
	hx, hy := Heading(t.TurretAngle)
	off := t.Radius + 0.1
	dmg := BulletDamage
	if rocket {
		dmg *= RocketDamageX
	}
	b := w.spawnBullet(t.ID, t.X+hx*off, t.Y+hy*off, t.TurretAngle, BulletSpeed, BulletRange, dmg)
	b.Rocket = rocket
	return b, true
}

func (w *World) spawnBullet(owner string, x, y, angle, speed, rng float64, dmg int) *Bullet {
	w.nextBulletID++
	b := &Bullet{
		ID:      w.nextBulletID,
		OwnerID: owner,
		X:       x,
		Y:       y,
		Angle:   angle,
		Speed:   speed,
		Range:   rng,
		Damage:  dmg,
	}
	w.bullets = append(w.bullets, b)
	return b
}

func (w *World) spawnMine(owner string, x, y float64, dmg int, expires time.Time) *Bullet {
	b := w.spawnBullet(owner, x, y, 0, 0, 0, dmg)
	b.Mine = true
	b.ExpiresAt = expires
	return b
}

// AdvanceBullets moves every bullet in unit sub-steps and returns the tank
// hits of this tick. A bullet despawns on leaving the map, exhausting its
// range, striking a blocking cell or striking a tank.
func (w *World) AdvanceBullets(now time.Time) []Hit {
	var hits []Hit
	for _, b := range w.bullets {
		if b.Mine {
			if !now.Before(b.ExpiresAt) {
				b.dead = true
				continue
			}
			if h, ok := w.bulletHitsTank(b); ok {
				hits = append(hits, h)
				b.dead = true
			}
			continue
		}

		travel := b.Speed * w.dt
		steps := int(math.Ceil(travel))
		if steps < 1 {
			steps = 1
		}
		stepLen := travel / float64(steps)
		hx, hy := Heading(b.Angle)

		for i := 0; i < steps && !b.dead; i++ {
			if b.Distance >= b.Range {
				b.dead = true
				break
			}
			d := math.Min(stepLen, b.Range-b.Distance)
			b.X += hx * d
			b.Y += hy * d
			b.Distance += d
			if b.Distance > b.Range {
				b.Distance = b.Range
			}

			if !inBounds(b.X, b.Y, w.Width, w.Height) {
				b.dead = true
				break
			}
			cx, cy := cellOf(b.X, b.Y)
			if o, ok := w.Terrain.At(cx, cy); ok && o.BlocksBullets() {
				w.damageObstacle(o, b)
				b.dead = true
				break
			}
			if h, ok := w.bulletHitsTank(b); ok {
				hits = append(hits, h)
				b.dead = true
				break
			}
		}
		if b.Distance >= b.Range {
			b.dead = true
		}
	}
	w.sweepBullets()
	return hits
}

func (w *World) damageObstacle(o *Obstacle, b *Bullet) {
	if o.Kind != ObstacleBrick {
		return
	}
	dmg := 1
	if b.Rocket {
		dmg = 2
	}
	o.HP -= dmg
	if o.HP <= 0 {
		w.Terrain.Remove(o)
	}
}

func (w *World) bulletHitsTank(b *Bullet) (Hit, bool) {
	owner := w.byID[b.OwnerID]
	for _, t := range w.tanks {
		if !t.Alive || t.ID == b.OwnerID {
			continue
		}
		if w.Config.Teams && owner != nil && owner.Team != TeamNone && owner.Team == t.Team {
			continue
		}
		if CheckCollision(b.X, b.Y, b.hitRadius(), t.X, t.Y, t.Radius+HitBuffer) {
			return Hit{BulletID: b.ID, OwnerID: b.OwnerID, TargetID: t.ID, Damage: b.Damage, X: b.X, Y: b.Y}, true
		}
	}
	return Hit{}, false
}

func (w *World) sweepBullets() {
	n := 0
	for _, b := range w.bullets {
		if !b.dead {
			w.bullets[n] = b
			n++
		}
	}
	for i := n; i < len(w.bullets); i++ {
		w.bullets[i] = nil
	}
	w.bullets = w.bullets[:n]
}

// Bullets returns the live bullets. The slice must not be modified.
func (w *World) Bullets() []*Bullet {
	return w.bullets
}
