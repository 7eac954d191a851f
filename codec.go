package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// State frames start with a format byte.
//
// Binary layout (big-endian, floats are float32):
//
//	header  format u8 | tick u32 | timestamp i64 ms | phase u8 | alive u8 | elapsed u32 ms
//	zone    cx f32 | cy f32 | radius f32 | target f32 | phase u8
//	stars   n u8 | n * (x f32 | y f32)
//	bullets n u8 | n * (id u32 | owner u8 | x f32 | y f32 | angle f32 | flags u8)
//	powerup n u8 | n * (id u32 | kind u8 | x f32 | y f32)
//	portals n u8 | n * (id u32 | x f32 | y f32 | ttl u16 ms)
//	tanks   n u8 | n * (idx u8 | x,y,hull,turret,radius f32 | hp,maxhp,stars,kills u16 | team,color,powerup,flags u8)
//	leaders n u8 | n * (idx u8 | stars u16)
//	boss    present u8 | [idx u8 | attack u8 | phase u8 | laser f32]
//	ctf     present u8 | [2 * (x f32 | y f32 | state u8 | carrier u8) | red u8 | blue u8 | remaining u32 ms]
//
// Participant ids travel as IndexMap indexes; NoIndex means none.
const (
	FormatBinary  byte = 0x01
	FormatMsgpack byte = 0x02
)

const (
	bulletRocket uint8 = 1 << 0
	bulletMine   uint8 = 1 << 1
)

var (
	ErrShortBuffer     = errors.New("state frame truncated")
	ErrTrailingBytes   = errors.New("state frame has trailing bytes")
	ErrTooManyEntities = errors.New("too many entities for binary frame")
	ErrUnmappedID      = errors.New("id has no wire index")
	ErrUnknownFormat   = errors.New("unknown state frame format")
	errEmptyStateFrame = errors.New("empty state frame")
)

// maxBinaryCollection is the largest count a u8 length prefix holds
const maxBinaryCollection = math.MaxUint8

// frameWriter appends big-endian values to a buffer
type frameWriter struct {
	buf []byte
	idx *IndexMap
	err error
}

func (fw *frameWriter) u8(v uint8) { fw.buf = append(fw.buf, v) }

func (fw *frameWriter) u16(v uint16) { fw.buf = binary.BigEndian.AppendUint16(fw.buf, v) }

func (fw *frameWriter) u32(v uint32) { fw.buf = binary.BigEndian.AppendUint32(fw.buf, v) }

func (fw *frameWriter) i64(v int64) { fw.buf = binary.BigEndian.AppendUint64(fw.buf, uint64(v)) }

func (fw *frameWriter) f32(v float32) { fw.u32(math.Float32bits(v)) }

func (fw *frameWriter) bool(v bool) {
	if v {
		fw.u8(1)
	} else {
		fw.u8(0)
	}
}

func (fw *frameWriter) count(name string, n int) {
	if n > maxBinaryCollection && fw.err == nil {
		fw.err = fmt.Errorf("%w: %d %s", ErrTooManyEntities, n, name)
	}
	fw.u8(uint8(n))
}

func (fw *frameWriter) id(id string) {
	if id == "" {
		fw.u8(NoIndex)
		return
	}
	i, ok := fw.idx.Index(id)
	if !ok && fw.err == nil {
		fw.err = fmt.Errorf("%w: %q", ErrUnmappedID, id)
	}
	fw.u8(i)
}

// EncodeSnapshot writes s in the binary layout
func EncodeSnapshot(s *Snapshot, idx *IndexMap) ([]byte, error) {
	fw := &frameWriter{buf: make([]byte, 0, 64+len(s.Tanks)*33+len(s.Bullets)*18), idx: idx}

	fw.u8(FormatBinary)
	fw.u32(s.Tick)
	fw.i64(s.Timestamp)
	fw.u8(s.Phase)
	fw.u8(s.Alive)
	fw.u32(s.Elapsed)

	fw.f32(s.Zone.CX)
	fw.f32(s.Zone.CY)
	fw.f32(s.Zone.Radius)
	fw.f32(s.Zone.Target)
	fw.u8(s.Zone.Phase)

	fw.count("stars", len(s.Stars))
	for _, st := range s.Stars {
		fw.f32(st.X)
		fw.f32(st.Y)
	}

	fw.count("bullets", len(s.Bullets))
	for _, b := range s.Bullets {
		fw.u32(b.ID)
		fw.id(b.Owner)
		fw.f32(b.X)
		fw.f32(b.Y)
		fw.f32(b.Angle)
		var flags uint8
		if b.Rocket {
			flags |= bulletRocket
		}
		if b.Mine {
			flags |= bulletMine
		}
		fw.u8(flags)
	}

	fw.count("power-ups", len(s.PowerUps))
	for _, p := range s.PowerUps {
		fw.u32(p.ID)
		fw.u8(p.Kind)
		fw.f32(p.X)
		fw.f32(p.Y)
	}

	fw.count("portals", len(s.Portals))
	for _, p := range s.Portals {
		fw.u32(p.ID)
		fw.f32(p.X)
		fw.f32(p.Y)
		fw.u16(p.TTL)
	}

	fw.count("tanks", len(s.Tanks))
	for _, t := range s.Tanks {
		fw.id(t.ID)
		fw.f32(t.X)
		fw.f32(t.Y)
		fw.f32(t.Hull)
		fw.f32(t.Turret)
		fw.f32(t.Radius)
		fw.u16(t.HP)
		fw.u16(t.MaxHP)
		fw.u16(t.Stars)
		fw.u16(t.Kills)
		fw.u8(t.Team)
		fw.u8(t.Color)
		fw.u8(t.PowerUp)
		fw.u8(t.Flags)
	}

	fw.count("leaderboard", len(s.Leaderboard))
	for _, l := range s.Leaderboard {
		fw.id(l.ID)
		fw.u16(l.Stars)
	}

	fw.bool(s.Boss != nil)
	if s.Boss != nil {
		fw.id(s.Boss.ID)
		fw.u8(s.Boss.Attack)
		fw.u8(s.Boss.Phase)
		fw.f32(s.Boss.LaserAngle)
	}

	fw.bool(s.CTF != nil)
	if s.CTF != nil {
		for _, f := range []FlagSnapshot{s.CTF.Red, s.CTF.Blue} {
			fw.f32(f.X)
			fw.f32(f.Y)
			fw.u8(f.State)
			fw.id(f.Carrier)
		}
		fw.u8(s.CTF.RedScore)
		fw.u8(s.CTF.BlueScore)
		fw.u32(s.CTF.Remaining)
	}

	if fw.err != nil {
		return nil, fw.err
	}
	return fw.buf, nil
}

// frameReader consumes big-endian values; the first failure sticks
type frameReader struct {
	data []byte
	off  int
	idx  *IndexMap
	err  error
}

func (fr *frameReader) take(n int) []byte {
	if fr.err != nil {
		return nil
	}
	if len(fr.data)-fr.off < n {
		fr.err = fmt.Errorf("%w at offset %d", ErrShortBuffer, fr.off)
		return nil
	}
	b := fr.data[fr.off : fr.off+n]
	fr.off += n
	return b
}

func (fr *frameReader) u8() uint8 {
	if b := fr.take(1); b != nil {
		return b[0]
	}
	return 0
}

// present reads an optional-block flag, which must be 0 or 1
func (fr *frameReader) present() bool {
	at := fr.off
	switch v := fr.u8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		if fr.err == nil {
			fr.err = fmt.Errorf("%w: presence byte 0x%02x at offset %d", ErrUnknownFormat, v, at)
		}
		return false
	}
}

func (fr *frameReader) u16() uint16 {
	if b := fr.take(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (fr *frameReader) u32() uint32 {
	if b := fr.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (fr *frameReader) i64() int64 {
	if b := fr.take(8); b != nil {
		return int64(binary.BigEndian.Uint64(b))
	}
	return 0
}

func (fr *frameReader) f32() float32 { return math.Float32frombits(fr.u32()) }

func (fr *frameReader) id() string {
	i := fr.u8()
	if fr.err != nil || i == NoIndex {
		return ""
	}
	id, ok := fr.idx.ID(i)
	if !ok {
		fr.err = fmt.Errorf("%w: index %d", ErrUnmappedID, i)
	}
	return id
}

// DecodeSnapshot parses a binary frame produced by EncodeSnapshot
func DecodeSnapshot(data []byte, idx *IndexMap) (*Snapshot, error) {
	fr := &frameReader{data: data, idx: idx}
	if f := fr.u8(); fr.err == nil && f != FormatBinary {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownFormat, f)
	}
	s := &Snapshot{
		Tick:      fr.u32(),
		Timestamp: fr.i64(),
		Phase:     fr.u8(),
		Alive:     fr.u8(),
		Elapsed:   fr.u32(),
	}
	s.Zone = ZoneState{CX: fr.f32(), CY: fr.f32(), Radius: fr.f32(), Target: fr.f32(), Phase: fr.u8()}

	n := int(fr.u8())
	s.Stars = make([]StarState, 0, n)
	for i := 0; i < n && fr.err == nil; i++ {
		s.Stars = append(s.Stars, StarState{X: fr.f32(), Y: fr.f32()})
	}

	n = int(fr.u8())
	s.Bullets = make([]BulletState, 0, n)
	for i := 0; i < n && fr.err == nil; i++ {
		b := BulletState{ID: fr.u32(), Owner: fr.id(), X: fr.f32(), Y: fr.f32(), Angle: fr.f32()}
		flags := fr.u8()
		b.Rocket = flags&bulletRocket != 0
		b.Mine = flags&bulletMine != 0
		s.Bullets = append(s.Bullets, b)
	}

	n = int(fr.u8())
	s.PowerUps = make([]PowerUpState, 0, n)
	for i := 0; i < n && fr.err == nil; i++ {
		s.PowerUps = append(s.PowerUps, PowerUpState{ID: fr.u32(), Kind: fr.u8(), X: fr.f32(), Y: fr.f32()})
	}

	n = int(fr.u8())
	s.Portals = make([]PortalState, 0, n)
	for i := 0; i < n && fr.err == nil; i++ {
		s.Portals = append(s.Portals, PortalState{ID: fr.u32(), X: fr.f32(), Y: fr.f32(), TTL: fr.u16()})
	}

	n = int(fr.u8())
	s.Tanks = make([]TankState, 0, n)
	for i := 0; i < n && fr.err == nil; i++ {
		s.Tanks = append(s.Tanks, TankState{
			ID:      fr.id(),
			X:       fr.f32(),
			Y:       fr.f32(),
			Hull:    fr.f32(),
			Turret:  fr.f32(),
			Radius:  fr.f32(),
			HP:      fr.u16(),
			MaxHP:   fr.u16(),
			Stars:   fr.u16(),
			Kills:   fr.u16(),
			Team:    fr.u8(),
			Color:   fr.u8(),
			PowerUp: fr.u8(),
			Flags:   fr.u8(),
		})
	}

	n = int(fr.u8())
	s.Leaderboard = make([]LeaderState, 0, n)
	for i := 0; i < n && fr.err == nil; i++ {
		s.Leaderboard = append(s.Leaderboard, LeaderState{ID: fr.id(), Stars: fr.u16()})
	}

	if fr.present() {
		s.Boss = &BossSnapshot{ID: fr.id(), Attack: fr.u8(), Phase: fr.u8(), LaserAngle: fr.f32()}
	}

	if fr.present() {
		flag := func() FlagSnapshot {
			return FlagSnapshot{X: fr.f32(), Y: fr.f32(), State: fr.u8(), Carrier: fr.id()}
		}
		c := &CTFSnapshot{}
		c.Red = flag()
		c.Blue = flag()
		c.RedScore = fr.u8()
		c.BlueScore = fr.u8()
		c.Remaining = fr.u32()
		s.CTF = c
	}

	if fr.err != nil {
		return nil, fr.err
	}
	if fr.off != len(data) {
		return nil, fmt.Errorf("%w: %d", ErrTrailingBytes, len(data)-fr.off)
	}
	return s, nil
}

// EncodeFrame encodes s as a binary frame, falling back to msgpack when the
// binary layout cannot represent it
func EncodeFrame(s *Snapshot, idx *IndexMap) ([]byte, error) {
	data, err := EncodeSnapshot(s, idx)
	if err == nil {
		return data, nil
	}
	Log.Debugw("binary state encode failed, using msgpack", "tick", s.Tick, "err", err)
	body, merr := msgpack.Marshal(s)
	if merr != nil {
		return nil, fmt.Errorf("msgpack state: %w", merr)
	}
	return append([]byte{FormatMsgpack}, body...), nil
}

// DecodeFrame decodes a frame of either format
func DecodeFrame(data []byte, idx *IndexMap) (*Snapshot, error) {
	if len(data) == 0 {
		return nil, errEmptyStateFrame
	}
	switch data[0] {
	case FormatBinary:
		return DecodeSnapshot(data, idx)
	case FormatMsgpack:
		s := &Snapshot{}
		if err := msgpack.Unmarshal(data[1:], s); err != nil {
			return nil, fmt.Errorf("msgpack state: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownFormat, data[0])
}
