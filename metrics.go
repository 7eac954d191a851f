package main

import (
	"sync/atomic"
)

// RoomMetrics counts room activity for the /metrics endpoint
type RoomMetrics struct {
	TickCount        int64
	TotalTickNs      int64
	InputsAccepted   int64
	InputsDropped    int64 // inbox full
	FramesBinary     int64
	FramesMsgpack    int64
	EncodeFailures   int64
	BroadcastDropped int64
	Joins            int64
	Leaves           int64
	Kills            int64
	LedgerDropped    int64
}

func (m *RoomMetrics) IncAccepted() { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *RoomMetrics) IncInputDropped() { atomic.AddInt64(&m.InputsDropped, 1) }
func (m *RoomMetrics) IncEncodeFailure() { atomic.AddInt64(&m.EncodeFailures, 1) }
func (m *RoomMetrics) IncJoin() { atomic.AddInt64(&m.Joins, 1) }
func (m *RoomMetrics) IncLeave() { atomic.AddInt64(&m.Leaves, 1) }
func (m *RoomMetrics) IncKill() { atomic.AddInt64(&m.Kills, 1) }
func (m *RoomMetrics) IncLedgerDropped() { atomic.AddInt64(&m.LedgerDropped, 1) }
func (m *RoomMetrics) AddBroadcastDrop(n int64) {
	atomic.AddInt64(&m.BroadcastDropped, n)
}

// AddFrame counts one broadcast frame by format
func (m *RoomMetrics) AddFrame(format byte) {
	if format == FormatMsgpack {
		atomic.AddInt64(&m.FramesMsgpack, 1)
		return
	}
	atomic.AddInt64(&m.FramesBinary, 1)
}

// AddTick records one tick and its duration
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot returns a read-only copy for HTTP output
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":        tick,
		"avg_tick_ms":       avgMs,
		"inputs_accepted":   atomic.LoadInt64(&m.InputsAccepted),
		"inputs_dropped":    atomic.LoadInt64(&m.InputsDropped),
		"frames_binary":     atomic.LoadInt64(&m.FramesBinary),
		"frames_msgpack":    atomic.LoadInt64(&m.FramesMsgpack),
		"encode_failures":   atomic.LoadInt64(&m.EncodeFailures),
		"broadcast_dropped": atomic.LoadInt64(&m.BroadcastDropped),
		"joins":             atomic.LoadInt64(&m.Joins),
		"leaves":            atomic.LoadInt64(&m.Leaves),
		"kills":             atomic.LoadInt64(&m.Kills),
		"ledger_dropped":    atomic.LoadInt64(&m.LedgerDropped),
	}
}
