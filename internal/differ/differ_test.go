package differ

import (
	"testing"
	"time"

	"github.com/betbot/copybot/internal/domain"
)

func snap(addr string, positions map[domain.PositionKey]float64) domain.TraderSnapshot {
	s := domain.NewTraderSnapshot(addr, time.Now())
	for k, size := range positions {
		s.Positions[k] = domain.SnapshotEntry{Size: size}
	}
	return s
}

func key(market, outcome string) domain.PositionKey {
	return domain.PositionKey{MarketID: market, Outcome: outcome}
}

func TestDiffFirstObservationIsBaseline(t *testing.T) {
	cur := snap("0xabc", map[domain.PositionKey]float64{
		key("m1", "Yes"): 500,
		key("m2", "No"):  120,
	})

	deltas := Diff(nil, cur)
	if len(deltas) != 2 {
		t.Fatalf("expected 2 baseline deltas, got %d", len(deltas))
	}
	for _, d := range deltas {
		if !d.Baseline {
			t.Fatalf("expected baseline flag on %s/%s", d.MarketID, d.Outcome)
		}
		if d.Kind != domain.DeltaOpen {
			t.Fatalf("expected OPEN, got %s", d.Kind)
		}
	}
}

func TestDiffClassification(t *testing.T) {
	prev := snap("0xabc", map[domain.PositionKey]float64{
		key("m1", "Yes"): 500, // 不变
		key("m2", "Yes"): 300, // 加仓
		key("m3", "No"):  200, // 减仓
		key("m4", "Yes"): 100, // 清仓
	})
	cur := snap("0xabc", map[domain.PositionKey]float64{
		key("m1", "Yes"): 500,
		key("m2", "Yes"): 450,
		key("m3", "No"):  80,
		key("m5", "No"):  60, // 新开仓
	})

	deltas := Diff(&prev, cur)
	if len(deltas) != 4 {
		t.Fatalf("expected 4 deltas, got %d", len(deltas))
	}

	want := map[domain.PositionKey]domain.DeltaKind{
		key("m2", "Yes"): domain.DeltaIncrease,
		key("m3", "No"):  domain.DeltaDecrease,
		key("m4", "Yes"): domain.DeltaClose,
		key("m5", "No"):  domain.DeltaOpen,
	}
	for _, d := range deltas {
		if d.Baseline {
			t.Fatalf("unexpected baseline flag on %s/%s", d.MarketID, d.Outcome)
		}
		k := key(d.MarketID, d.Outcome)
		if want[k] != d.Kind {
			t.Fatalf("%s/%s: expected %s, got %s", d.MarketID, d.Outcome, want[k], d.Kind)
		}
	}
}

func TestDiffEmptyWhenUnchanged(t *testing.T) {
	prev := snap("0xabc", map[domain.PositionKey]float64{key("m1", "Yes"): 500})
	cur := snap("0xabc", map[domain.PositionKey]float64{key("m1", "Yes"): 500})

	if deltas := Diff(&prev, cur); len(deltas) != 0 {
		t.Fatalf("expected no deltas, got %d", len(deltas))
	}
}

func TestDiffSameOutcomeDifferentMarkets(t *testing.T) {
	// 同名 outcome 不同市场是两个独立的持仓键
	prev := snap("0xabc", map[domain.PositionKey]float64{
		key("m1", "Yes"): 100,
		key("m2", "Yes"): 100,
	})
	cur := snap("0xabc", map[domain.PositionKey]float64{
		key("m1", "Yes"): 200,
		key("m2", "Yes"): 100,
	})

	deltas := Diff(&prev, cur)
	if len(deltas) != 1 {
		t.Fatalf("expected 1 delta, got %d", len(deltas))
	}
	if deltas[0].MarketID != "m1" || deltas[0].Kind != domain.DeltaIncrease {
		t.Fatalf("unexpected delta %+v", deltas[0])
	}
}

func TestDiffOutputSorted(t *testing.T) {
	prev := snap("0xabc", nil)
	cur := snap("0xabc", map[domain.PositionKey]float64{
		key("m3", "Yes"): 10,
		key("m1", "No"):  10,
		key("m1", "Yes"): 10,
		key("m2", "No"):  10,
	})

	deltas := Diff(&prev, cur)
	for i := 1; i < len(deltas); i++ {
		a := key(deltas[i-1].MarketID, deltas[i-1].Outcome)
		b := key(deltas[i].MarketID, deltas[i].Outcome)
		if !a.Less(b) {
			t.Fatalf("output not sorted at %d: %+v >= %+v", i, a, b)
		}
	}
}
