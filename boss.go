package main

import (
	"math"
	"time"
)

const (
	BossRadius         = 1.5
	BossMaxHP          = 2000
	BossSpeed          = 1.5
	BossAttackCooldown = 2 * time.Second
	BossAttackDuration = 3 * time.Second
	BossLaserDuration  = 6 * time.Second
	BossRageDuration   = 5 * time.Second
	BossRespawnDelay   = 20 * time.Second
	BossKillReward     = 10
	BossBulletSpeed    = 9.0
	BossBulletRange    = 16.0
	BossBulletDamage   = 15
	BossMineDamage     = 30
	BossMineLifetime   = 10 * time.Second
	BossKeepDistance   = 6.0
	LaserSweepSpeed    = 1.2 // rad/s
	LaserRange         = 14.0
	LaserTolerance     = 0.08 // rad
	LaserDamagePerSec  = 40.0
	BossContactDPS     = 30.0
	BossRageSpeed      = BossBulletSpeed * 1.5
)

// BossAttack is one of the boss attack patterns
type BossAttack uint8

const (
	BossIdle BossAttack = iota
	BossRing
	BossFan
	BossSpiral
	BossTriple
	BossExplosion
	BossMines
	BossWaves
	BossRandom
	BossRage
	BossLaser
	bossAttackCount
)

var bossAttackNames = [...]string{"idle", "ring", "fan", "spiral", "triple", "explosion", "mines", "waves", "random", "rage", "laser"}

func (a BossAttack) String() string {
	if int(a) < len(bossAttackNames) {
		return bossAttackNames[a]
	}
	return "unknown"
}

// burstInterval is the time between volleys. Zero means a single volley.
func (a BossAttack) burstInterval() time.Duration {
	switch a {
	case BossRing:
		return 600 * time.Millisecond
	case BossFan:
		return 400 * time.Millisecond
	case BossSpiral:
		return 100 * time.Millisecond
	case BossTriple:
		return 300 * time.Millisecond
	case BossWaves:
		return 350 * time.Millisecond
	case BossRandom:
		return 150 * time.Millisecond
	case BossRage:
		return 200 * time.Millisecond
	}
	return 0
}

func (a BossAttack) duration() time.Duration {
	switch a {
	case BossLaser:
		return BossLaserDuration
	case BossRage:
		return BossRageDuration
	}
	return BossAttackDuration
}

// BossState is the attack state machine of the boss tank
type BossState struct {
	Tank         *Tank
	Attack       BossAttack
	AttackStart  time.Time
	AttackEnds   time.Time
	NextAttackAt time.Time
	LastBurst    time.Time
	Phase        int
	LaserAngle   float64
	SpiralAngle  float64
	WaveIndex    int
	fired        bool
}

// spawnBoss adds the boss tank at the map's boss spawn
func (w *World) spawnBoss(now time.Time) *BossState {
	t := &Tank{
		ID:           "boss",
		Name:         "Boss",
		Color:        PaletteSize - 1,
		X:            w.Map.BossSpawn.X,
		Y:            w.Map.BossSpawn.Y,
		HP:           BossMaxHP,
		MaxHP:        BossMaxHP,
		Radius:       BossRadius,
		BaseSpeed:    BossSpeed,
		Speed:        BossSpeed,
		Alive:        true,
		IsBoss:       true,
		LastDamage:   now,
		CarryingFlag: TeamNone,
	}
	w.clampToMap(t)
	w.tanks = append(w.tanks, t)
	w.byID[t.ID] = t
	return &BossState{Tank: t, NextAttackAt: now.Add(BossAttackCooldown)}
}

// updatePhase derives the phase from lost HP deciles
func (b *BossState) updatePhase() {
	t := b.Tank
	lost := t.MaxHP - t.HP
	p := lost * 10 / t.MaxHP
	if p > 9 {
		p = 9
	}
	if p < 0 {
		p = 0
	}
	b.Phase = p
}

// interval scales a burst interval down by 5% per phase
func (b *BossState) interval(a BossAttack) time.Duration {
	base := a.burstInterval()
	return time.Duration(float64(base) * (1 - 0.05*float64(b.Phase)))
}

// bossTarget returns the closest living non-boss tank
func (w *World) bossTarget(b *BossState) (*Tank, bool) {
	var best *Tank
	bestD := math.MaxFloat64
	for _, t := range w.tanks {
		if !t.Alive || t.IsBoss {
			continue
		}
		d := DistanceSq(b.Tank.X, b.Tank.Y, t.X, t.Y)
		if d < bestD {
			best, bestD = t, d
		}
	}
	return best, best != nil
}

// updateBoss drifts the boss toward its target and runs the attack cycle
func (w *World) updateBoss(now time.Time) {
	b := w.boss
	if b == nil || !b.Tank.Alive {
		return
	}
	boss := b.Tank
	b.updatePhase()

	target, hasTarget := w.bossTarget(b)
	if hasTarget {
		aim := AngleTo(boss.X, boss.Y, target.X, target.Y)
		boss.TurretAngle = aim
		if Distance(boss.X, boss.Y, target.X, target.Y) > BossKeepDistance {
			w.MoveTank(boss, &aim, now)
		}
	}
	w.bossContact(b, now)

	if b.Attack == BossIdle {
		if now.Before(b.NextAttackAt) {
			return
		}
		b.startAttack(BossAttack(1+w.rng.Intn(int(bossAttackCount)-1)), boss.TurretAngle, now)
	}
	if !now.Before(b.AttackEnds) {
		b.Attack = BossIdle
		b.NextAttackAt = now.Add(BossAttackCooldown)
		return
	}

	if b.Attack == BossLaser {
		w.sweepLaser(b)
		return
	}
	iv := b.interval(b.Attack)
	if iv == 0 {
		if !b.fired {
			w.bossVolley(b, target, now)
			b.fired = true
		}
		return
	}
	if b.LastBurst.IsZero() || now.Sub(b.LastBurst) >= iv {
		w.bossVolley(b, target, now)
		b.LastBurst = now
	}
}

func (b *BossState) startAttack(a BossAttack, aim float64, now time.Time) {
	b.Attack = a
	b.AttackStart = now
	b.AttackEnds = now.Add(a.duration())
	b.LastBurst = time.Time{}
	b.fired = false
	b.WaveIndex = 0
	b.LaserAngle = aim
}

// bossVolley fires one volley of the current attack
func (w *World) bossVolley(b *BossState, target *Tank, now time.Time) {
	boss := b.Tank
	aim := boss.TurretAngle
	if target != nil {
		aim = AngleTo(boss.X, boss.Y, target.X, target.Y)
	}
	shoot := func(angle, speed, rng float64) {
		hx, hy := Heading(angle)
		off := boss.Radius + 0.2
		w.spawnBullet(boss.ID, boss.X+hx*off, boss.Y+hy*off, angle, speed, rng, BossBulletDamage)
	}
	ring := func(n int, offset, speed, rng float64) {
		for i := 0; i < n; i++ {
			shoot(offset+float64(i)*2*math.Pi/float64(n), speed, rng)
		}
	}

	switch b.Attack {
	case BossRing:
		ring(16, 0, BossBulletSpeed, BossBulletRange)
	case BossFan:
		for i := -2; i <= 2; i++ {
			shoot(aim+float64(i)*0.25, BossBulletSpeed, BossBulletRange)
		}
	case BossSpiral:
		shoot(b.SpiralAngle, BossBulletSpeed, BossBulletRange)
		shoot(b.SpiralAngle+math.Pi, BossBulletSpeed, BossBulletRange)
		b.SpiralAngle = NormalizeAngle(b.SpiralAngle + 0.35)
	case BossTriple:
		for i := -1; i <= 1; i++ {
			shoot(aim+float64(i)*0.15, BossBulletSpeed*1.3, BossBulletRange)
		}
	case BossExplosion:
		ring(32, w.rng.Float64()*math.Pi, BossBulletSpeed*0.7, BossBulletRange*0.6)
	case BossMines:
		for i := 0; i < 6; i++ {
			a := float64(i) * math.Pi / 3
			d := 3 + w.rng.Float64()*3
			mx := Clamp(boss.X+math.Sin(a)*d, 0.5, float64(w.Width)-0.5)
			my := Clamp(boss.Y-math.Cos(a)*d, 0.5, float64(w.Height)-0.5)
			w.spawnMine(boss.ID, mx, my, BossMineDamage, now.Add(BossMineLifetime))
		}
	case BossWaves:
		step := 2 * math.Pi / 12
		ring(12, float64(b.WaveIndex%2)*step/2, BossBulletSpeed*0.8, BossBulletRange)
		b.WaveIndex++
	case BossRandom:
		for i := 0; i < 3; i++ {
			shoot(w.rng.Float64()*2*math.Pi, BossBulletSpeed, BossBulletRange)
		}
	case BossRage:
		for _, t := range w.bossVisible(b) {
			shoot(AngleTo(boss.X, boss.Y, t.X, t.Y), BossRageSpeed, BossBulletRange)
		}
	}
}

// bossVisible lists the living tanks the boss can see within bullet range.
// Tanks in bushes are only seen up close.
func (w *World) bossVisible(b *BossState) []*Tank {
	var out []*Tank
	for _, t := range w.tanks {
		if !t.Alive || t.IsBoss {
			continue
		}
		d := Distance(b.Tank.X, b.Tank.Y, t.X, t.Y)
		if d > BossBulletRange || (t.InBush && d > BotBushRange) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// bossContact burns every living tank touching the boss hull
func (w *World) bossContact(b *BossState, now time.Time) {
	boss := b.Tank
	for _, t := range w.tanks {
		if !t.Alive || t.IsBoss {
			continue
		}
		if Distance(boss.X, boss.Y, t.X, t.Y) > boss.Radius+t.Radius {
			t.contactDebt = 0
			continue
		}
		t.contactDebt += BossContactDPS * w.dt
		whole := int(t.contactDebt)
		if whole == 0 {
			continue
		}
		t.contactDebt -= float64(whole)
		if w.DamageTank(t, whole, now) {
			w.KillTank(t, boss, now)
		}
	}
}

// sweepLaser rotates the beam and burns every living tank inside it
func (w *World) sweepLaser(b *BossState) {
	boss := b.Tank
	b.LaserAngle = NormalizeAngle(b.LaserAngle + LaserSweepSpeed*w.dt)
	for _, t := range w.tanks {
		if !t.Alive || t.IsBoss {
			continue
		}
		if Distance(boss.X, boss.Y, t.X, t.Y) > LaserRange {
			continue
		}
		diff := math.Abs(NormalizeAngle(AngleTo(boss.X, boss.Y, t.X, t.Y) - b.LaserAngle))
		if diff > LaserTolerance {
			continue
		}
		t.laserDebt += LaserDamagePerSec * w.dt
		whole := int(t.laserDebt)
		if whole == 0 {
			continue
		}
		t.laserDebt -= float64(whole)
		if w.DamageTank(t, whole, w.now) {
			w.KillTank(t, boss, w.now)
		}
	}
}

// Boss returns the boss state in boss mode
func (w *World) Boss() (*BossState, bool) {
	return w.boss, w.boss != nil
}
