package main

import (
	"errors"
	"reflect"
	"testing"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Tick:      42,
		Timestamp: 1_700_000_000_123,
		Phase:     uint8(PhaseShrinking),
		Alive:     2,
		Elapsed:   61_500,
		Zone:      ZoneState{CX: 30, CY: 30, Radius: 29.7, Target: 29.69, Phase: 1},
		Stars:     []StarState{{X: 1.5, Y: 2.5}, {X: 10.5, Y: 3.5}},
		Bullets: []BulletState{
			{ID: 7, Owner: "p1", X: 5.25, Y: 6.75, Angle: 1.5, Rocket: true},
			{ID: 8, Owner: "boss", X: 9, Y: 9, Mine: true},
		},
		PowerUps: []PowerUpState{{ID: 3, Kind: uint8(PowerUpMagnet), X: 4.5, Y: 4.5}},
		Portals:  []PortalState{{ID: 1, X: 20.5, Y: 20.5, TTL: 15000}},
		Tanks: []TankState{
			{ID: "p1", X: 5, Y: 6, Hull: 0.5, Turret: 1.5, Radius: 0.45, HP: 90, MaxHP: 120, Stars: 4, Kills: 1, Color: 2, Flags: TankAlive | TankCarrier, Team: TeamRed},
			{ID: "bot-1", X: 15, Y: 16, Radius: 0.4, MaxHP: 100, Flags: TankBot},
			{ID: "boss", X: 24, Y: 16, Radius: 1.5, HP: 2000, MaxHP: 2000, Flags: TankAlive | TankBoss},
		},
		Leaderboard: []LeaderState{{ID: "p1", Stars: 4}, {ID: "bot-1", Stars: 0}},
		Boss:        &BossSnapshot{ID: "boss", Attack: uint8(BossAttack(3)), Phase: 1, LaserAngle: 0.25},
		CTF: &CTFSnapshot{
			Red:       FlagSnapshot{X: 4.5, Y: 20, State: uint8(FlagHome)},
			Blue:      FlagSnapshot{X: 5, Y: 6, State: uint8(FlagCarried), Carrier: "p1"},
			RedScore:  1,
			BlueScore: 2,
			Remaining: 120_000,
		},
	}
}

func testIndex(ids ...string) *IndexMap {
	idx := NewIndexMap()
	for _, id := range ids {
		idx.Acquire(id)
	}
	return idx
}

func TestBinaryRoundTrip(t *testing.T) {
	s := testSnapshot()
	server := testIndex("p1", "bot-1", "boss")

	data, err := EncodeSnapshot(s, server)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if data[0] != FormatBinary {
		t.Fatalf("expected binary format byte, got 0x%02x", data[0])
	}

	// the client mirrors the server assignments
	client := NewIndexMap()
	for _, id := range []string{"p1", "bot-1", "boss"} {
		i, _ := server.Index(id)
		client.Set(i, id)
	}
	got, err := DecodeSnapshot(data, client)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, s) {
		t.Errorf("round trip mismatch\nwant %+v\ngot  %+v", s, got)
	}
}

func TestBinaryEmptyCollections(t *testing.T) {
	s := &Snapshot{
		Tick:        1,
		Stars:       []StarState{},
		Bullets:     []BulletState{},
		PowerUps:    []PowerUpState{},
		Portals:     []PortalState{},
		Tanks:       []TankState{},
		Leaderboard: []LeaderState{},
	}
	data, err := EncodeSnapshot(s, NewIndexMap())
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeSnapshot(data, NewIndexMap())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, s) {
		t.Errorf("expected %+v, got %+v", s, got)
	}
}

func TestDecodeTruncated(t *testing.T) {
	idx := testIndex("p1", "bot-1", "boss")
	data, err := EncodeSnapshot(testSnapshot(), idx)
	if err != nil {
		t.Fatal(err)
	}
	for n := 0; n < len(data); n++ {
		if _, err := DecodeSnapshot(data[:n], idx); !errors.Is(err, ErrShortBuffer) {
			t.Fatalf("prefix of %d bytes: expected short buffer, got %v", n, err)
		}
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	idx := testIndex("p1", "bot-1", "boss")
	data, _ := EncodeSnapshot(testSnapshot(), idx)
	data = append(data, 0)
	if _, err := DecodeSnapshot(data, idx); !errors.Is(err, ErrTrailingBytes) {
		t.Errorf("expected trailing bytes error, got %v", err)
	}
}

func TestDecodeBadPresenceByte(t *testing.T) {
	s := testSnapshot()
	s.Boss, s.CTF = nil, nil
	idx := testIndex("p1", "bot-1", "boss")
	data, err := EncodeSnapshot(s, idx)
	if err != nil {
		t.Fatal(err)
	}
	for _, pos := range []int{len(data) - 2, len(data) - 1} {
		bad := append([]byte(nil), data...)
		bad[pos] = 2
		if _, err := DecodeSnapshot(bad, idx); !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("presence byte 2 at %d should be rejected, got %v", pos, err)
		}
	}
}

func TestDecodeUnmappedIndex(t *testing.T) {
	data, _ := EncodeSnapshot(testSnapshot(), testIndex("p1", "bot-1", "boss"))
	if _, err := DecodeSnapshot(data, testIndex("p1")); !errors.Is(err, ErrUnmappedID) {
		t.Errorf("expected unmapped id error, got %v", err)
	}
}

func TestEncodeFrameFallsBackToMsgpack(t *testing.T) {
	idx := testIndex("p1", "bot-1", "boss")

	s := testSnapshot()
	for i := 0; i < 300; i++ {
		s.Bullets = append(s.Bullets, BulletState{ID: uint32(100 + i), Owner: "p1"})
	}
	if _, err := EncodeSnapshot(s, idx); !errors.Is(err, ErrTooManyEntities) {
		t.Fatalf("expected too many entities, got %v", err)
	}
	frame, err := EncodeFrame(s, idx)
	if err != nil {
		t.Fatal(err)
	}
	if frame[0] != FormatMsgpack {
		t.Fatalf("expected msgpack format byte, got 0x%02x", frame[0])
	}
	got, err := DecodeFrame(frame, NewIndexMap())
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Bullets) != len(s.Bullets) || got.Bullets[250].Owner != "p1" {
		t.Errorf("msgpack frame lost bullets: %d", len(got.Bullets))
	}

	// an id without an index also falls back
	s = testSnapshot()
	s.Tanks = append(s.Tanks, TankState{ID: "ghost"})
	frame, err = EncodeFrame(s, idx)
	if err != nil {
		t.Fatal(err)
	}
	if frame[0] != FormatMsgpack {
		t.Errorf("unmapped id should fall back to msgpack")
	}
	got, _ = DecodeFrame(frame, nil)
	if _, ok := got.TankByID("ghost"); !ok {
		t.Error("msgpack frame should carry string ids")
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	if _, err := DecodeFrame(nil, NewIndexMap()); err == nil {
		t.Error("empty frame should fail")
	}
	if _, err := DecodeFrame([]byte{0x7f, 1, 2}, NewIndexMap()); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected unknown format, got %v", err)
	}
	if _, err := DecodeFrame([]byte{FormatMsgpack, 0xc1}, NewIndexMap()); err == nil {
		t.Error("corrupt msgpack should fail")
	}
}

func TestWorldSnapshotEncodes(t *testing.T) {
	def, err := GenerateMap("boss-1")
	if err != nil {
		t.Fatal(err)
	}
	w := NewWorld(def, 3, testEpoch)
	idx := NewIndexMap()
	for _, tk := range w.AddBots(3, testEpoch) {
		idx.Acquire(tk.ID)
	}
	b, _ := w.Boss()
	idx.Acquire(b.Tank.ID)
	human := addHuman(w, "p1")
	idx.Acquire(human.ID)

	now := testEpoch
	for i := 0; i < 40; i++ {
		now = now.Add(TickDuration)
		w.Step(now)
	}
	snap := w.Snapshot(now)
	frame, err := EncodeFrame(&snap, idx)
	if err != nil {
		t.Fatal(err)
	}
	if frame[0] != FormatBinary {
		t.Fatalf("a small world should encode as binary")
	}
	got, err := DecodeFrame(frame, idx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Tick != snap.Tick || len(got.Tanks) != len(snap.Tanks) || got.Boss == nil {
		t.Errorf("decoded snapshot differs: tick %d tanks %d", got.Tick, len(got.Tanks))
	}
}

func TestIndexMapReuse(t *testing.T) {
	m := NewIndexMap()
	a, _ := m.Acquire("a")
	b, _ := m.Acquire("b")
	c, _ := m.Acquire("c")
	if a != 0 || b != 1 || c != 2 {
		t.Fatalf("expected 0,1,2, got %d,%d,%d", a, b, c)
	}
	if again, _ := m.Acquire("a"); again != a {
		t.Error("a present id keeps its index")
	}
	m.Release("b")
	if _, ok := m.ID(b); ok {
		t.Error("released index should be unbound")
	}
	if d, _ := m.Acquire("d"); d != b {
		t.Errorf("lowest free index should be reused, got %d", d)
	}
	if _, ok := m.ID(NoIndex); ok {
		t.Error("NoIndex never resolves")
	}

	m.Set(0, "z")
	if _, ok := m.Index("a"); ok {
		t.Error("Set should replace the previous owner")
	}
	if id, _ := m.ID(0); id != "z" {
		t.Errorf("expected z at 0, got %q", id)
	}
}

func TestIndexMapCapacity(t *testing.T) {
	m := NewIndexMap()
	for i := 0; i < IndexCapacity; i++ {
		idx, err := m.Acquire(GenerateUUID())
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		if idx == NoIndex {
			t.Fatal("NoIndex must never be assigned")
		}
	}
	if _, err := m.Acquire("one-too-many"); !errors.Is(err, ErrIndexMapFull) {
		t.Errorf("expected full map, got %v", err)
	}
	if m.Len() != IndexCapacity {
		t.Errorf("expected %d entries, got %d", IndexCapacity, m.Len())
	}
}
