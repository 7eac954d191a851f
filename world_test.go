package main

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

var testEpoch = time.Unix(1_700_000_000, 0)

// newTestWorld builds an empty 40x40 map with fixed spawns
func newTestWorld(t *testing.T, mode MapMode) *World {
	t.Helper()
	def := &MapDef{
		ID:     "test",
		Mode:   mode,
		Width:  40,
		Height: 40,
		Spawns: []Point{{10, 10}, {30, 30}, {10, 30}, {30, 10}},
	}
	return NewWorld(def, 1, testEpoch)
}

func addHuman(w *World, id string) *Tank {
	return w.AddTank(TankSpec{ID: id, Name: id, Color: -1, AccountKey: "acct-" + id}, w.now)
}

func near(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestStageNamesOrder(t *testing.T) {
	want := []string{
		"input", "bot-steer", "bot-unstick", "bot-fire", "boss", "projectiles",
		"ctf", "pickups", "zone", "portals", "game-over", "phase",
	}
	if got := StageNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected stages %v, got %v", want, got)
	}

	w := newTestWorld(t, ModeClassic)
	var ran []string
	w.stageHook = func(name string) { ran = append(ran, name) }
	w.Step(testEpoch.Add(TickDuration))
	if !reflect.DeepEqual(ran, want) {
		t.Errorf("Step ran %v", ran)
	}
}

func TestMoveTankStraightLine(t *testing.T) {
	w := newTestWorld(t, ModeClassic)
	tank := addHuman(w, "p1")
	if tank.X != 10 || tank.Y != 10 {
		t.Fatalf("expected spawn at (10,10), got (%v,%v)", tank.X, tank.Y)
	}

	up := 0.0
	now := testEpoch
	for i := 0; i < 20; i++ {
		now = now.Add(TickDuration)
		w.MoveTank(tank, &up, now)
	}
	if !near(tank.X, 10, 1e-9) || !near(tank.Y, 5, 1e-9) {
		t.Errorf("expected (10,5) after 1s at speed 5, got (%v,%v)", tank.X, tank.Y)
	}
	if tank.HullAngle != 0 {
		t.Errorf("hull should face the move direction, got %v", tank.HullAngle)
	}

	w.MoveTank(tank, nil, now)
	if !near(tank.Y, 5, 1e-9) {
		t.Error("nil move should not move the tank")
	}
}

func TestMoveTankSlidesAlongWall(t *testing.T) {
	w := newTestWorld(t, ModeClassic)
	for x := 0; x < 40; x++ {
		w.Terrain.Add(&Obstacle{X: x, Y: 8, Kind: ObstacleSteel})
	}
	tank := addHuman(w, "p1")

	diag := math.Pi / 4
	now := testEpoch
	for i := 0; i < 40; i++ {
		now = now.Add(TickDuration)
		w.MoveTank(tank, &diag, now)
	}
	if tank.Y < 9+tank.Radius {
		t.Errorf("tank entered the wall: y=%v", tank.Y)
	}
	if tank.X < 16 {
		t.Errorf("tank should slide along the wall, x=%v", tank.X)
	}
}

func TestMoveTankStaysInBounds(t *testing.T) {
	w := newTestWorld(t, ModeClassic)
	tank := addHuman(w, "p1")
	left := -math.Pi / 2
	now := testEpoch
	for i := 0; i < 100; i++ {
		now = now.Add(TickDuration)
		w.MoveTank(tank, &left, now)
	}
	if !near(tank.X, tank.Radius, 1e-9) {
		t.Errorf("tank should stop at the map edge, x=%v", tank.X)
	}
}

func TestBulletRange(t *testing.T) {
	w := newTestWorld(t, ModeClassic)
	w.spawnBullet("nobody", 20.5, 20.5, math.Pi/2, BulletSpeed, 5, BulletDamage)

	now := testEpoch
	for i := 0; i < 4; i++ {
		now = now.Add(TickDuration)
		w.AdvanceBullets(now)
	}
	if len(w.Bullets()) != 1 {
		t.Fatalf("bullet should still fly after 4 ticks")
	}
	if !near(w.Bullets()[0].X, 24.5, 1e-6) {
		t.Errorf("expected x=24.5 after 4 ticks, got %v", w.Bullets()[0].X)
	}
	w.AdvanceBullets(now.Add(TickDuration))
	if len(w.Bullets()) != 0 {
		t.Error("bullet should despawn once its range is used up")
	}
}

func TestBulletTerrain(t *testing.T) {
	w := newTestWorld(t, ModeClassic)
	brick := &Obstacle{X: 24, Y: 20, Kind: ObstacleBrick, HP: BrickHP}
	w.Terrain.Add(&Obstacle{X: 22, Y: 20, Kind: ObstacleWater})
	w.Terrain.Add(brick)

	w.spawnBullet("nobody", 20.5, 20.5, math.Pi/2, BulletSpeed, BulletRange, BulletDamage)
	now := testEpoch
	for i := 0; i < 10 && len(w.Bullets()) > 0; i++ {
		now = now.Add(TickDuration)
		w.AdvanceBullets(now)
	}
	if len(w.Bullets()) != 0 {
		t.Fatal("bullet should stop at the brick")
	}
	if brick.HP != BrickHP-1 {
		t.Errorf("brick should take 1 damage, hp=%d", brick.HP)
	}

	// two more hits destroy it
	for i := 0; i < 2; i++ {
		w.spawnBullet("nobody", 20.5, 20.5, math.Pi/2, BulletSpeed, BulletRange, BulletDamage)
		for j := 0; j < 10 && len(w.Bullets()) > 0; j++ {
			now = now.Add(TickDuration)
			w.AdvanceBullets(now)
		}
	}
	if _, ok := w.Terrain.At(24, 20); ok {
		t.Error("brick should be destroyed after 3 hits")
	}
	if _, ok := w.Terrain.At(22, 20); !ok {
		t.Error("water is not damaged by bullets")
	}
}

func TestBulletHitKillsAndTransfersStars(t *testing.T) {
	w := newTestWorld(t, ModeClassic)
	shooter := addHuman(w, "p1")
	victim := addHuman(w, "p2")
	victim.X, victim.Y = 15, 10
	victim.HP = BulletDamage
	victim.Stars = 4

	shooter.TurretAngle = math.Pi / 2
	now := testEpoch.Add(time.Second)
	if _, ok := w.TryFire(shooter, now); !ok {
		t.Fatal("first shot should fire")
	}
	if _, ok := w.TryFire(shooter, now.Add(FireCooldown/2)); ok {
		t.Error("second shot inside the cooldown should not fire")
	}
	for i := 0; i < 10 && victim.Alive; i++ {
		now = now.Add(TickDuration)
		w.stepProjectiles(now)
	}
	if victim.Alive {
		t.Fatal("victim should be dead")
	}
	if shooter.Stars != 4 || shooter.Kills != 1 {
		t.Errorf("shooter should take 4 stars and 1 kill, got %d stars %d kills", shooter.Stars, shooter.Kills)
	}
	if len(w.events) != 1 || w.events[0].Kind != EventKill || w.events[0].OtherID != "p1" {
		t.Errorf("expected one kill event by p1, got %+v", w.events)
	}
}

func TestKillTransfersStarsAndTier(t *testing.T) {
	w := newTestWorld(t, ModeClassic)
	killer := addHuman(w, "p1")
	bots := w.AddBots(1, testEpoch)
	victim := bots[0]
	victim.Stars = 5

	lost := w.KillTank(victim, killer, testEpoch)
	if lost != 5 {
		t.Errorf("expected victim to lose 5 stars, got %d", lost)
	}
	if killer.Stars != 5+BotKillBonus {
		t.Errorf("expected %d stars with bot bonus, got %d", 5+BotKillBonus, killer.Stars)
	}
	tier := TierFor(killer.Stars)
	if killer.Radius != tier.Radius || killer.MaxHP != tier.MaxHP || killer.HP != tier.MaxHP {
		t.Errorf("killer should grow to tier %+v, got r=%v hp=%d/%d", tier, killer.Radius, killer.HP, killer.MaxHP)
	}
	if victim.Alive || victim.Stars != 0 || victim.Deaths != 1 {
		t.Errorf("victim should be dead with no stars, got alive=%v stars=%d", victim.Alive, victim.Stars)
	}
	if victim.RespawnAt != testEpoch.Add(RespawnDelay) {
		t.Errorf("respawn should be scheduled after %v", RespawnDelay)
	}

	// spending does not shrink the tank
	r := killer.Radius
	if err := w.Purchase(killer, ShopCatalog[1], testEpoch); err != nil {
		t.Fatal(err)
	}
	if killer.Radius != r || killer.PeakStars != 6 {
		t.Errorf("tier should hold after spending, r=%v peak=%d", killer.Radius, killer.PeakStars)
	}

	// killing a dead tank is a no-op
	if w.KillTank(victim, killer, testEpoch) != 0 || killer.Kills != 1 {
		t.Error("dead tanks can not be killed twice")
	}
}

func TestKillWithoutKillerDropsStars(t *testing.T) {
	w := newTestWorld(t, ModeClassic)
	victim := addHuman(w, "p1")
	victim.Stars = 3

	w.KillTank(victim, nil, testEpoch)
	active := 0
	for _, s := range w.Stars() {
		if s.Active {
			active++
		}
	}
	if active != 3 {
		t.Errorf("expected 3 dropped stars, got %d", active)
	}

	// collected drops free their slot for the next drop
	for _, s := range w.Stars() {
		s.Active = false
	}
	w.DropStars(20, 20, 2, testEpoch)
	if len(w.Stars()) != 3 {
		t.Errorf("drops should reuse free slots, have %d slots", len(w.Stars()))
	}
}

func TestShieldBlocksDamage(t *testing.T) {
	w := newTestWorld(t, ModeClassic)
	tank := addHuman(w, "p1")
	w.GrantPowerUp(tank, PowerUpShield, testEpoch)
	if w.DamageTank(tank, 500, testEpoch.Add(time.Second)) || tank.HP != tank.MaxHP {
		t.Error("shield should block damage")
	}
	if !w.DamageTank(tank, 500, testEpoch.Add(PowerUpDuration)) {
		t.Error("damage should apply once the shield lapsed")
	}
}

func TestPurchase(t *testing.T) {
	w := newTestWorld(t, ModeClassic)
	tank := addHuman(w, "p1")
	tank.Stars = 3

	heal, _ := ParsePurchase("heal")
	if err := w.Purchase(tank, heal, testEpoch); !errors.Is(err, ErrPurchaseNotAllowed) {
		t.Errorf("heal at full health should be refused, got %v", err)
	}
	rocket, _ := ParsePurchase("rocket")
	if err := w.Purchase(tank, rocket, testEpoch); !errors.Is(err, ErrInsufficientStars) {
		t.Errorf("expected insufficient stars, got %v", err)
	}
	speed, _ := ParsePurchase("speed")
	if err := w.Purchase(tank, speed, testEpoch); err != nil {
		t.Fatal(err)
	}
	if tank.Stars != 0 || tank.PowerUp != PowerUpSpeed || tank.Speed != TankSpeed*SpeedPowerFactor {
		t.Errorf("speed purchase not applied: stars=%d power=%v speed=%v", tank.Stars, tank.PowerUp, tank.Speed)
	}
	if _, err := ParsePurchase("nuke"); !errors.Is(err, ErrUnknownPurchase) {
		t.Errorf("expected unknown purchase, got %v", err)
	}
}

func TestZonePhases(t *testing.T) {
	z := NewZone(60, 60, true)
	diameter := 2 * z.InitialRadius
	now := testEpoch

	z.Update(ZoneStartAfter-time.Second, now, 0.05)
	if z.Phase != 0 || z.Shrinking() {
		t.Fatal("zone should wait before the first phase")
	}

	z.Update(ZoneStartAfter, now, 0.05)
	if z.Phase != 1 || !z.Shrinking() {
		t.Fatalf("zone should start phase 1, got phase %d", z.Phase)
	}
	if !near(z.TargetRadius, 0.35*diameter, 1e-9) {
		t.Errorf("phase 1 target should be 0.35 of the diameter, got %v", z.TargetRadius)
	}

	prev := z.Radius
	elapsed := ZoneStartAfter
	for i := 0; i < 10000 && !z.Collapsed(); i++ {
		now = now.Add(TickDuration)
		elapsed += TickDuration
		z.Update(elapsed, now, TickDuration.Seconds())
		if z.Radius > prev {
			t.Fatalf("radius grew from %v to %v", prev, z.Radius)
		}
		prev = z.Radius
	}
	if !z.Collapsed() || z.Radius != 0 || z.Phase != ZonePhases {
		t.Errorf("zone should collapse to 0 after %d phases, got r=%v phase=%d", ZonePhases, z.Radius, z.Phase)
	}
}

func TestZoneDisabledContainsEverything(t *testing.T) {
	z := NewZone(10, 10, false)
	z.Radius = 0
	if !z.Contains(100, 100) || z.Collapsed() {
		t.Error("a disabled zone contains everything and never collapses")
	}
}

func TestGameOverPicksRichestHuman(t *testing.T) {
	w := newTestWorld(t, ModeClassic)
	a := addHuman(w, "p1")
	b := addHuman(w, "p2")
	a.Stars, b.Stars = 2, 7
	w.phase = PhaseShrinking
	w.KillTank(a, nil, testEpoch)
	w.KillTank(b, nil, testEpoch)

	events := w.Step(testEpoch.Add(TickDuration))
	var over *Event
	for i := range events {
		if events[i].Kind == EventGameOver {
			over = &events[i]
		}
	}
	if over == nil {
		t.Fatal("expected game over when nobody is alive during shrinking")
	}
	if w.Phase() != PhaseGameOver {
		t.Errorf("phase should be game over, got %v", w.Phase())
	}
	// stars were dropped on death, so both ended on 0; the first wins ties
	if len(over.Winners) != 1 || len(over.WinnerKeys) != 1 {
		t.Errorf("expected a single winner, got %v", over.Winners)
	}
	if w.Step(testEpoch.Add(2*TickDuration)) != nil {
		t.Error("a finished world does not step")
	}
}

func TestSurvivorsWin(t *testing.T) {
	w := newTestWorld(t, ModeClassic)
	a := addHuman(w, "p1")
	addHuman(w, "p2")
	w.AddBots(2, testEpoch)
	w.KillTank(a, nil, testEpoch)

	got := w.winners()
	if len(got) != 1 || got[0].ID != "p2" {
		t.Errorf("the surviving human should win, got %v", got)
	}
}

func TestRespawnStopsWhileShrinking(t *testing.T) {
	w := newTestWorld(t, ModeClassic)
	tank := addHuman(w, "p1")
	addHuman(w, "p2")
	w.KillTank(tank, nil, testEpoch)

	w.updateTankTimers(testEpoch.Add(RespawnDelay))
	if !tank.Alive {
		t.Fatal("tank should respawn while playing")
	}

	w.KillTank(tank, nil, testEpoch)
	w.phase = PhaseShrinking
	w.updateTankTimers(testEpoch.Add(RespawnDelay))
	if tank.Alive {
		t.Error("tank should stay dead once the zone shrinks")
	}
}

func TestAssignTeam(t *testing.T) {
	w := newTestWorld(t, ModeClassic)
	if w.AssignTeam(TeamBlue) != TeamNone {
		t.Error("free-for-all has no teams")
	}

	def, err := GenerateMap("ctf-1")
	if err != nil {
		t.Fatal(err)
	}
	w = NewWorld(def, 1, testEpoch)
	if w.AssignTeam(0) != TeamRed {
		t.Error("empty ctf should start with red")
	}
	w.AddTank(TankSpec{ID: "a", Team: TeamRed, Color: -1}, testEpoch)
	if w.AssignTeam(0) != TeamBlue {
		t.Error("auto assignment should balance teams")
	}
	if w.AssignTeam(TeamRed) != TeamRed {
		t.Error("an explicit team is honoured")
	}
}

func TestSnapshotFlags(t *testing.T) {
	w := newTestWorld(t, ModeClassic)
	tank := addHuman(w, "p1")
	tank.Stars = 3
	bots := w.AddBots(1, testEpoch)
	w.KillTank(bots[0], nil, testEpoch)

	s := w.Snapshot(testEpoch)
	self, ok := s.TankByID("p1")
	if !ok || !self.Alive() || self.Flags&TankBot != 0 || self.Stars != 3 {
		t.Errorf("unexpected human state %+v", self)
	}
	bot, ok := s.TankByID(bots[0].ID)
	if !ok || bot.Alive() || bot.Flags&TankBot == 0 {
		t.Errorf("unexpected bot state %+v", bot)
	}
	if len(s.Leaderboard) != 2 || s.Leaderboard[0].ID != "p1" {
		t.Errorf("leaderboard should rank p1 first, got %+v", s.Leaderboard)
	}
	if s.Alive != 1 {
		t.Errorf("expected 1 alive, got %d", s.Alive)
	}
}

func newTestCTF(t *testing.T) (*World, *CTF) {
	t.Helper()
	def, err := GenerateMap("ctf-1")
	if err != nil {
		t.Fatal(err)
	}
	w := NewWorld(def, 1, testEpoch)
	c, ok := w.CTF()
	if !ok {
		t.Fatal("ctf map should run a ctf controller")
	}
	return w, c
}

func TestCTFSingleCarrier(t *testing.T) {
	w, c := newTestCTF(t)
	blue := c.Flags[TeamBlue]
	a := w.AddTank(TankSpec{ID: "a", Team: TeamRed, Color: -1}, testEpoch)
	b := w.AddTank(TankSpec{ID: "b", Team: TeamRed, Color: -1}, testEpoch)
	a.X, a.Y = blue.X, blue.Y
	b.X, b.Y = blue.X+0.5, blue.Y

	c.Update(testEpoch)
	if c.Carriers(TeamBlue) != 1 {
		t.Fatalf("exactly one tank may carry the flag, got %d", c.Carriers(TeamBlue))
	}
	if blue.State != FlagCarried || blue.CarrierID != "a" {
		t.Errorf("first tank should carry the flag, got %v by %q", blue.State, blue.CarrierID)
	}
	if a.MaxHP != CarrierMaxHP || a.HP > CarrierMaxHP {
		t.Errorf("carrier HP should be capped at %d, got %d/%d", CarrierMaxHP, a.HP, a.MaxHP)
	}

	// killing the carrier drops the flag where it died
	w.KillTank(a, nil, testEpoch)
	if blue.State != FlagDropped || a.CarryingFlag != TeamNone {
		t.Fatalf("flag should drop on death, state=%v", blue.State)
	}
	c.Update(testEpoch)
	if blue.CarrierID != "b" {
		t.Errorf("nearby teammate should pick the dropped flag, got %q", blue.CarrierID)
	}
}

func TestCTFCaptureAndReturn(t *testing.T) {
	w, c := newTestCTF(t)
	red := c.Flags[TeamRed]
	blue := c.Flags[TeamBlue]
	a := w.AddTank(TankSpec{ID: "a", Team: TeamRed, Color: -1}, testEpoch)
	a.X, a.Y = blue.X, blue.Y
	c.Update(testEpoch)

	home := c.Bases[TeamRed].Center()
	a.X, a.Y = home.X, home.Y+2
	w.events = nil
	c.Update(testEpoch)
	if c.Scores[TeamRed] != 1 {
		t.Fatalf("expected red score 1, got %d", c.Scores[TeamRed])
	}
	if blue.State != FlagHome || a.CarryingFlag != TeamNone {
		t.Error("captured flag should go home and free the carrier")
	}
	if a.Stars != CaptureStarReward {
		t.Errorf("capturing team should earn %d stars, got %d", CaptureStarReward, a.Stars)
	}
	if len(w.events) != 1 || w.events[0].Kind != EventCapture {
		t.Errorf("expected a capture event, got %+v", w.events)
	}

	// dropped flags return home on timeout
	red.State = FlagDropped
	red.X, red.Y = 30, 5
	red.DroppedAt = testEpoch
	c.Update(testEpoch.Add(FlagReturnAfter))
	if red.State != FlagHome || red.X != red.HomeX {
		t.Error("dropped flag should return home after the timeout")
	}

	c.Scores[TeamRed] = CTFScoreLimit
	if !c.Finished(testEpoch) || c.Leader() != TeamRed {
		t.Error("reaching the score limit should finish with red leading")
	}
}

func TestHugeAimDoesNotStallStep(t *testing.T) {
	w := newTestWorld(t, ModeClassic)
	tank := addHuman(w, "p1")
	move := 1e18
	w.QueueInput(tank.ID, Input{Move: &move, Aim: 1e20})

	done := make(chan struct{})
	go func() {
		w.Step(testEpoch.Add(TickDuration))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("step with a huge aim angle did not return")
	}
	if tank.TurretAngle < -math.Pi || tank.TurretAngle > math.Pi {
		t.Errorf("turret angle should be wrapped, got %v", tank.TurretAngle)
	}
}

func TestBushConcealsThroughMove(t *testing.T) {
	w := newTestWorld(t, ModeClassic)
	w.Terrain.Add(&Obstacle{X: 12, Y: 10, Kind: ObstacleBush})
	tank := addHuman(w, "p1")
	tank.X, tank.Y = 11.9, 10.5

	right := math.Pi / 2
	w.MoveTank(tank, &right, testEpoch)
	if !tank.InBush {
		t.Fatalf("tank at x=%v should be in the bush", tank.X)
	}
	for i := 0; i < 6; i++ {
		w.MoveTank(tank, &right, testEpoch)
	}
	if tank.InBush {
		t.Errorf("tank at x=%v has left the bush", tank.X)
	}
}

func TestQuicksandSlow(t *testing.T) {
	w := newTestWorld(t, ModeClassic)
	w.Terrain.Add(&Obstacle{X: 12, Y: 10, Kind: ObstacleQuicksand})
	tank := addHuman(w, "p1")
	tank.X, tank.Y = 11.9, 10.5

	right := math.Pi / 2
	w.MoveTank(tank, &right, testEpoch)
	if !tank.SlowUntil.Equal(testEpoch.Add(QuicksandDuration)) {
		t.Fatalf("quicksand should slow for %v, until %v", QuicksandDuration, tank.SlowUntil)
	}
	if tank.Speed != TankSpeed*QuicksandFactor {
		t.Errorf("expected slowed speed, got %v", tank.Speed)
	}

	// leave the sand, the slow holds until the timer lapses
	tank.X = 20
	now := testEpoch.Add(time.Second)
	w.MoveTank(tank, &right, now)
	if tank.Speed != TankSpeed*QuicksandFactor {
		t.Errorf("slow should outlast the sand, got %v", tank.Speed)
	}

	w.GrantPowerUp(tank, PowerUpSpeed, now)
	if tank.Speed != TankSpeed*SpeedPowerFactor*QuicksandFactor {
		t.Errorf("speed power-up stacks with the slow, got %v", tank.Speed)
	}

	w.updateTankTimers(testEpoch.Add(QuicksandDuration - time.Millisecond))
	if tank.Speed != TankSpeed*SpeedPowerFactor*QuicksandFactor {
		t.Errorf("slow still active just before it lapses, got %v", tank.Speed)
	}
	w.updateTankTimers(testEpoch.Add(QuicksandDuration))
	if tank.Speed != TankSpeed*SpeedPowerFactor {
		t.Errorf("slow should lift after %v, got %v", QuicksandDuration, tank.Speed)
	}
	w.updateTankTimers(now.Add(PowerUpDuration))
	if tank.Speed != TankSpeed {
		t.Errorf("base speed should return, got %v", tank.Speed)
	}
}
