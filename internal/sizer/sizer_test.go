package sizer

import (
	"errors"
	"math"
	"testing"

	"github.com/betbot/copybot/internal/domain"
)

func delta(prev, cur float64) domain.PositionDelta {
	kind := domain.DeltaIncrease
	switch {
	case prev == 0 && cur > 0:
		kind = domain.DeltaOpen
	case prev > 0 && cur == 0:
		kind = domain.DeltaClose
	case cur < prev:
		kind = domain.DeltaDecrease
	}
	return domain.PositionDelta{
		TraderAddress: "0xabc",
		MarketID:      "mkt-1",
		Outcome:       "Yes",
		PreviousSize:  prev,
		NewSize:       cur,
		Kind:          kind,
	}
}

func TestSizeScalesNotionalByCopyRatio(t *testing.T) {
	// 对方买入 500 股 @ 0.42，copy_ratio=0.02 → 名义 4.2，当前价 0.42 → 10 股
	order, err := Size(Input{
		Delta:        delta(0, 500),
		TraderPrice:  0.42,
		CurrentPrice: 0.42,
		Available:    100000,
		CopyRatio:    0.02,
		MinIncrement: 1,
	})
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if order.Side != domain.SideBuy {
		t.Fatalf("expected BUY, got %s", order.Side)
	}
	if order.Size != 10 {
		t.Fatalf("expected size 10, got %v", order.Size)
	}
	if math.Abs(order.Notional()-4.2) > 1e-9 {
		t.Fatalf("expected notional 4.2, got %v", order.Notional())
	}
}

func TestSizeFloorsToIncrement(t *testing.T) {
	// 名义 4.2 / 价格 0.40 = 10.5 → 向下取整到 10
	order, err := Size(Input{
		Delta:        delta(0, 500),
		TraderPrice:  0.42,
		CurrentPrice: 0.40,
		Available:    100000,
		CopyRatio:    0.02,
		MinIncrement: 1,
	})
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if order.Size != 10 {
		t.Fatalf("expected size 10 after floor, got %v", order.Size)
	}
}

func TestSizeClampsBuyToAvailableBalance(t *testing.T) {
	// 目标名义 4.2 但余额只有 2.0 → 钳制到 2.0/0.5 = 4 股
	order, err := Size(Input{
		Delta:        delta(0, 500),
		TraderPrice:  0.42,
		CurrentPrice: 0.50,
		Available:    2.0,
		CopyRatio:    0.02,
		MinIncrement: 1,
	})
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if order.Size != 4 {
		t.Fatalf("expected clamped size 4, got %v", order.Size)
	}
	if order.Notional() > 2.0+1e-9 {
		t.Fatalf("notional %v exceeds available balance", order.Notional())
	}
}

func TestSizeInsufficientBalance(t *testing.T) {
	_, err := Size(Input{
		Delta:        delta(0, 500),
		TraderPrice:  0.42,
		CurrentPrice: 0.50,
		Available:    0.1,
		CopyRatio:    0.02,
		MinIncrement: 1,
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestSizeTinyBuyWithAmpleBalance(t *testing.T) {
	// 余额充足但目标数量不足最小增量：不得误报余额不足
	_, err := Size(Input{
		Delta:        delta(0, 10),
		TraderPrice:  0.42,
		CurrentPrice: 0.42,
		Available:    100000,
		CopyRatio:    0.02,
		MinIncrement: 1,
	})
	if !errors.Is(err, ErrSizeTooSmall) {
		t.Fatalf("expected ErrSizeTooSmall, got %v", err)
	}
}

func TestSizeSellClampsToHeld(t *testing.T) {
	// 对方清仓 1000 股，目标卖出 20 股，但我方只持有 7 股
	order, err := Size(Input{
		Delta:        delta(1000, 0),
		TraderPrice:  0.42,
		CurrentPrice: 0.42,
		Available:    100000,
		HeldSize:     7,
		CopyRatio:    0.02,
		MinIncrement: 1,
	})
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if order.Side != domain.SideSell {
		t.Fatalf("expected SELL, got %s", order.Side)
	}
	if order.Size != 7 {
		t.Fatalf("expected size clamped to held 7, got %v", order.Size)
	}
}

func TestSizeSellWithoutPosition(t *testing.T) {
	_, err := Size(Input{
		Delta:        delta(1000, 400),
		TraderPrice:  0.42,
		CurrentPrice: 0.42,
		Available:    100000,
		HeldSize:     0,
		CopyRatio:    0.02,
		MinIncrement: 1,
	})
	if !errors.Is(err, ErrNoPositionToReduce) {
		t.Fatalf("expected ErrNoPositionToReduce, got %v", err)
	}
}

func TestSizeTooSmallAfterRounding(t *testing.T) {
	// 对方微调 1 股：名义 0.0084 / 0.42 = 0.02 股，取整到 0
	_, err := Size(Input{
		Delta:        delta(500, 499),
		TraderPrice:  0.42,
		CurrentPrice: 0.42,
		Available:    100000,
		HeldSize:     10,
		CopyRatio:    0.02,
		MinIncrement: 1,
	})
	if !errors.Is(err, ErrSizeTooSmall) {
		t.Fatalf("expected ErrSizeTooSmall, got %v", err)
	}
}

func TestSizeRejectsInvalidPrice(t *testing.T) {
	for _, price := range []float64{0, -0.5} {
		if _, err := Size(Input{
			Delta:        delta(0, 100),
			TraderPrice:  0.42,
			CurrentPrice: price,
			Available:    100000,
			CopyRatio:    0.02,
			MinIncrement: 1,
		}); err == nil {
			t.Fatalf("expected error for price %v", price)
		}
	}
}

func TestSizeFractionalIncrement(t *testing.T) {
	// 最小增量 0.1：名义 4.2 / 0.44 = 9.545... → 9.5
	order, err := Size(Input{
		Delta:        delta(0, 500),
		TraderPrice:  0.42,
		CurrentPrice: 0.44,
		Available:    100000,
		CopyRatio:    0.02,
		MinIncrement: 0.1,
	})
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if math.Abs(order.Size-9.5) > 1e-9 {
		t.Fatalf("expected size 9.5, got %v", order.Size)
	}
}
