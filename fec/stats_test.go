package fec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRXStatsSnapshotReflectsCounters(t *testing.T) {
	var s RXStats
	s.Delivered.Add(3)
	s.DuplicateDrops.Add(1)
	s.rssi.observe(-40)
	s.rssi.observe(-60)

	got := s.Snapshot()
	want := RXStatsSnapshot{
		Delivered:      3,
		DuplicateDrops: 1,
		AverageRSSI:    -50,
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestTXStatsSnapshotReflectsCounters(t *testing.T) {
	var s TXStats
	s.PayloadSealed.Add(4)
	s.BlocksSealed.Add(1)

	got := s.Snapshot()
	want := TXStatsSnapshot{
		PayloadSealed: 4,
		BlocksSealed:  1,
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}
