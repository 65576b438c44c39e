package fec

import "sync/atomic"

// TXStats are per-instance counters. All recoverable/absorbed
// conditions described in §7 of the design land here rather than
// reaching the sink.
type TXStats struct {
	PayloadSealed atomic.Uint64
	ParitySealed  atomic.Uint64
	BlocksSealed  atomic.Uint64
	EncodeErrors  atomic.Uint64
}

// TXStatsSnapshot is a point-in-time copy of TXStats, safe to log or
// export without further synchronization.
type TXStatsSnapshot struct {
	PayloadSealed uint64
	ParitySealed  uint64
	BlocksSealed  uint64
	EncodeErrors  uint64
}

// Snapshot returns a point-in-time copy of s, safe to log or export
// without further synchronization.
func (s *TXStats) Snapshot() TXStatsSnapshot {
	return TXStatsSnapshot{
		PayloadSealed: s.PayloadSealed.Load(),
		ParitySealed:  s.ParitySealed.Load(),
		BlocksSealed:  s.BlocksSealed.Load(),
		EncodeErrors:  s.EncodeErrors.Load(),
	}
}

// RXStats are per-instance counters, one per drop reason in the §7
// error taxonomy plus delivery/recovery/RSSI observability.
type RXStats struct {
	Delivered               atomic.Uint64
	ShortDatagrams          atomic.Uint64
	OutOfRangeDrops         atomic.Uint64
	StaleBlockDrops         atomic.Uint64
	DuplicateDrops          atomic.Uint64
	BlocksCompleted         atomic.Uint64
	BlocksRecovered         atomic.Uint64
	BlocksRetiredIncomplete atomic.Uint64
	DecodeErrors            atomic.Uint64

	rssi rssiAccumulator
}

// RXStatsSnapshot is a point-in-time copy of RXStats.
type RXStatsSnapshot struct {
	Delivered               uint64
	ShortDatagrams          uint64
	OutOfRangeDrops         uint64
	StaleBlockDrops         uint64
	DuplicateDrops          uint64
	BlocksCompleted         uint64
	BlocksRecovered         uint64
	BlocksRetiredIncomplete uint64
	DecodeErrors            uint64
	AverageRSSI             float64
}

// Snapshot returns a point-in-time copy of s.
func (s *RXStats) Snapshot() RXStatsSnapshot {
	return RXStatsSnapshot{
		Delivered:               s.Delivered.Load(),
		ShortDatagrams:          s.ShortDatagrams.Load(),
		OutOfRangeDrops:         s.OutOfRangeDrops.Load(),
		StaleBlockDrops:         s.StaleBlockDrops.Load(),
		DuplicateDrops:          s.DuplicateDrops.Load(),
		BlocksCompleted:         s.BlocksCompleted.Load(),
		BlocksRecovered:         s.BlocksRecovered.Load(),
		BlocksRetiredIncomplete: s.BlocksRetiredIncomplete.Load(),
		DecodeErrors:            s.DecodeErrors.Load(),
		AverageRSSI:             s.rssi.average(),
	}
}

// rssiAccumulator is the supplemented RSSI plumbing from
// original_source/firmware/structures.h's SPI_Packet.rssi: a running
// average over every observed reading, observability-only, never
// consulted by the FEC logic.
type rssiAccumulator struct {
	sum atomic.Int64
	n   atomic.Uint64
}

func (r *rssiAccumulator) observe(rssi int8) {
	r.sum.Add(int64(rssi))
	r.n.Add(1)
}

func (r *rssiAccumulator) average() float64 {
	n := r.n.Load()
	if n == 0 {
		return 0
	}
	return float64(r.sum.Load()) / float64(n)
}
