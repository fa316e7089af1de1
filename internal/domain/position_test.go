package domain

import (
	"math"
	"testing"
	"time"
)

func TestBlendEntry(t *testing.T) {
	cases := []struct {
		name     string
		curSize  float64
		curEntry float64
		addSize  float64
		addPrice float64
		want     float64
	}{
		{"等量合并", 10, 0.40, 10, 0.60, 0.50},
		{"小额加仓", 100, 0.40, 10, 0.62, 0.42},
		{"首次买入", 0, 0, 10, 0.42, 0.42},
		{"零数量保持原价", 0, 0.30, 0, 0.50, 0.30},
	}
	for _, c := range cases {
		got := BlendEntry(c.curSize, c.curEntry, c.addSize, c.addPrice)
		if math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestDeltaSide(t *testing.T) {
	buy := PositionDelta{PreviousSize: 100, NewSize: 150}
	if buy.Side() != SideBuy {
		t.Fatalf("expected BUY for increase, got %s", buy.Side())
	}
	sell := PositionDelta{PreviousSize: 100, NewSize: 40}
	if sell.Side() != SideSell {
		t.Fatalf("expected SELL for decrease, got %s", sell.Side())
	}
}

func TestSnapshotKeysSorted(t *testing.T) {
	s := NewTraderSnapshot("0xabc", time.Now())
	s.Positions[PositionKey{MarketID: "b", Outcome: "Yes"}] = SnapshotEntry{Size: 1}
	s.Positions[PositionKey{MarketID: "a", Outcome: "No"}] = SnapshotEntry{Size: 1}
	s.Positions[PositionKey{MarketID: "a", Outcome: "Yes"}] = SnapshotEntry{Size: 1}

	keys := s.Keys()
	for i := 1; i < len(keys); i++ {
		if !keys[i-1].Less(keys[i]) {
			t.Fatalf("keys not sorted at %d: %+v", i, keys)
		}
	}
}
