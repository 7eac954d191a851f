package main

import (
	"math"
	"time"
)

const (
	SnapThreshold      = 1.5 // cells of divergence before the predictor snaps
	InterpDelay        = 100 * time.Millisecond
	MaxExtrapolation   = 0.5 // fraction of the last snapshot interval
	TeleportThreshold  = 3.0
	SnapshotBufferSize = 8
	CameraSmoothing    = 10.0 // 1/s
	ClockSmoothing     = 8    // samples
)

// Predictor runs the local player's input ahead of the server. It only
// knows static obstacles; other tanks are left to reconciliation.
type Predictor struct {
	Terrain *SpatialIndex
	Width   int
	Height  int

	X, Y        float64
	Radius      float64
	HullAngle   float64
	TurretAngle float64
	PowerUp     PowerUpKind
	Carrier     bool
	Slowed      bool // server reports a quicksand slow

	CamX, CamY float64

	lastFire  time.Time
	slowUntil time.Time
	synced    bool
}

// NewPredictor creates a predictor for a map
func NewPredictor(terrain *SpatialIndex, width, height int) *Predictor {
	return &Predictor{
		Terrain: terrain,
		Width:   width,
		Height:  height,
		Radius:  Tiers[0].Radius,
	}
}

func (p *Predictor) speed(now time.Time) float64 {
	s := float64(TankSpeed)
	if p.PowerUp == PowerUpSpeed {
		s *= SpeedPowerFactor
	}
	if p.Slowed || now.Before(p.slowUntil) {
		s *= QuicksandFactor
	}
	if p.Carrier {
		s *= CarrierSpeedFactor
	}
	return s
}

// Apply predicts one tick of input and reports whether a shot would fire
func (p *Predictor) Apply(in Input, dt float64, now time.Time) bool {
	if !p.synced {
		return false
	}
	if in.Move != nil && validAngle(*in.Move) {
		p.X, p.Y = slideMove(p.X, p.Y, p.Radius, *in.Move, p.speed(now)*dt, p.Width, p.Height, func(x, y float64) bool {
			return !CircleHitsTerrain(p.Terrain, x, y, p.Radius)
		})
		p.HullAngle = NormalizeAngle(*in.Move)
		cx, cy := cellOf(p.X, p.Y)
		if o, ok := p.Terrain.At(cx, cy); ok && o.Kind == ObstacleQuicksand {
			p.slowUntil = now.Add(QuicksandDuration)
		}
	}
	if validAngle(in.Aim) {
		p.TurretAngle = NormalizeAngle(in.Aim)
	}
	if !in.Fire {
		return false
	}
	cd := FireCooldown
	if p.PowerUp == PowerUpRapidFire {
		cd /= 2
	}
	if now.Sub(p.lastFire) < cd {
		return false
	}
	p.lastFire = now
	return true
}

// UpdateCamera moves the camera towards the predicted position
func (p *Predictor) UpdateCamera(dt float64) {
	k := 1 - math.Exp(-CameraSmoothing*dt)
	p.CamX += (p.X - p.CamX) * k
	p.CamY += (p.Y - p.CamY) * k
}

// Reconcile folds the authoritative state of the local tank into the
// prediction. It reports whether the predicted position was snapped.
func (p *Predictor) Reconcile(server TankState) bool {
	p.Radius = float64(server.Radius)
	p.PowerUp = PowerUpKind(server.PowerUp)
	p.Carrier = server.Flags&TankCarrier != 0
	p.Slowed = server.Flags&TankSlowed != 0
	if !server.Alive() {
		p.synced = false
		p.slowUntil = time.Time{}
		return false
	}
	sx, sy := float64(server.X), float64(server.Y)
	if p.synced && Distance(p.X, p.Y, sx, sy) <= SnapThreshold {
		return false
	}
	first := !p.synced
	p.X, p.Y = sx, sy
	p.HullAngle = float64(server.Hull)
	p.synced = true
	if first {
		p.CamX, p.CamY = sx, sy
	}
	return true
}

type bufferedSnapshot struct {
	at   time.Time
	snap *Snapshot
}

// SnapshotBuffer keeps the most recent snapshots ordered by tick
type SnapshotBuffer struct {
	items [SnapshotBufferSize]bufferedSnapshot
	start int
	n     int
}

// Push stores s; snapshots not newer than the latest are dropped
func (b *SnapshotBuffer) Push(s *Snapshot) bool {
	if last, ok := b.Latest(); ok && s.Tick <= last.Tick {
		return false
	}
	item := bufferedSnapshot{at: time.UnixMilli(s.Timestamp), snap: s}
	if b.n < SnapshotBufferSize {
		b.items[(b.start+b.n)%SnapshotBufferSize] = item
		b.n++
		return true
	}
	b.items[b.start] = item
	b.start = (b.start + 1) % SnapshotBufferSize
	return true
}

// Len returns the number of buffered snapshots
func (b *SnapshotBuffer) Len() int { return b.n }

func (b *SnapshotBuffer) at(i int) bufferedSnapshot {
	return b.items[(b.start+i)%SnapshotBufferSize]
}

// Latest returns the newest snapshot
func (b *SnapshotBuffer) Latest() (*Snapshot, bool) {
	if b.n == 0 {
		return nil, false
	}
	return b.at(b.n - 1).snap, true
}

// Interpolator renders remote tanks slightly in the past. Offset is the
// estimated server clock minus the local clock.
type Interpolator struct {
	Buffer *SnapshotBuffer
	Offset time.Duration
}

// Sample returns tank states for server render time now + Offset - InterpDelay
func (ip *Interpolator) Sample(now time.Time) ([]TankState, bool) {
	b := ip.Buffer
	if b == nil || b.n == 0 {
		return nil, false
	}
	renderAt := now.Add(ip.Offset - InterpDelay)
	first := b.at(0)
	if b.n == 1 || !renderAt.After(first.at) {
		return copyTanks(first.snap.Tanks), true
	}
	last := b.at(b.n - 1)
	if renderAt.After(last.at) {
		prev := b.at(b.n - 2)
		span := last.at.Sub(prev.at)
		if span <= 0 {
			return copyTanks(last.snap.Tanks), true
		}
		ahead := math.Min(float64(renderAt.Sub(last.at))/float64(span), MaxExtrapolation)
		return blendTanks(prev.snap, last.snap, 1+ahead), true
	}
	for i := 0; i < b.n-1; i++ {
		from, to := b.at(i), b.at(i+1)
		if renderAt.After(to.at) {
			continue
		}
		span := to.at.Sub(from.at)
		if span <= 0 {
			return copyTanks(to.snap.Tanks), true
		}
		t := float64(renderAt.Sub(from.at)) / float64(span)
		return blendTanks(from.snap, to.snap, Smoothstep(t)), true
	}
	return copyTanks(last.snap.Tanks), true
}

func copyTanks(in []TankState) []TankState {
	out := make([]TankState, len(in))
	copy(out, in)
	return out
}

// blendTanks positions every tank of b at factor k between a and b. k > 1
// extrapolates. Respawned, new and teleported tanks use b verbatim.
func blendTanks(a, b *Snapshot, k float64) []TankState {
	out := make([]TankState, 0, len(b.Tanks))
	for _, to := range b.Tanks {
		from, ok := a.TankByID(to.ID)
		if !ok || !to.Alive() || !from.Alive() ||
			Distance(float64(from.X), float64(from.Y), float64(to.X), float64(to.Y)) > TeleportThreshold {
			out = append(out, to)
			continue
		}
		r := to
		r.X = from.X + (to.X-from.X)*float32(k)
		r.Y = from.Y + (to.Y-from.Y)*float32(k)
		r.Hull = float32(LerpAngle(float64(from.Hull), float64(to.Hull), k))
		r.Turret = float32(LerpAngle(float64(from.Turret), float64(to.Turret), k))
		out = append(out, r)
	}
	return out
}

// GameClient is the client side view of one room
type GameClient struct {
	SelfID    string
	Index     *IndexMap
	Buffer    *SnapshotBuffer
	Interp    *Interpolator
	Predictor *Predictor

	lastErr     error
	clockSynced bool
}

// NewGameClient creates a client view. pred may be nil for spectators.
func NewGameClient(selfID string, pred *Predictor) *GameClient {
	buf := &SnapshotBuffer{}
	return &GameClient{
		SelfID:    selfID,
		Index:     NewIndexMap(),
		Buffer:    buf,
		Interp:    &Interpolator{Buffer: buf},
		Predictor: pred,
	}
}

// Bind mirrors a server index assignment
func (c *GameClient) Bind(id string, idx uint8) {
	c.Index.Set(idx, id)
}

// HandleState decodes a state frame. On failure the previous view stays
// in place and the error is returned.
func (c *GameClient) HandleState(frame []byte) error {
	s, err := DecodeFrame(frame, c.Index)
	if err != nil {
		c.lastErr = err
		return err
	}
	if !c.Buffer.Push(s) {
		return nil
	}
	if c.Predictor != nil {
		if self, ok := s.TankByID(c.SelfID); ok {
			c.Predictor.Reconcile(self)
		}
	}
	return nil
}

// HandlePong updates the server clock offset from a ping round trip. The
// server stamp is assumed to sit halfway through the trip.
func (c *GameClient) HandlePong(p PongMsg, now time.Time) {
	sent := time.UnixMilli(p.TS)
	rtt := now.Sub(sent)
	if rtt < 0 {
		return
	}
	sample := time.UnixMilli(p.Server).Sub(sent.Add(rtt / 2))
	if !c.clockSynced {
		c.Interp.Offset = sample
		c.clockSynced = true
		return
	}
	c.Interp.Offset += (sample - c.Interp.Offset) / ClockSmoothing
}

// Latest returns the newest accepted snapshot
func (c *GameClient) Latest() (*Snapshot, bool) {
	return c.Buffer.Latest()
}

// LastError returns the most recent decode failure
func (c *GameClient) LastError() error {
	return c.lastErr
}
