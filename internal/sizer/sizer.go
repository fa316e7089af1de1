// Package sizer 把检测到的持仓变化换算成按比例缩放的模拟订单。
// 只读取账户/仓位视图，不做任何变更；金额计算使用 decimal，
// 避免 notional 与取整在 float64 上累积误差。
package sizer

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/betbot/copybot/internal/domain"
)

// 定价拒绝原因：订单被丢弃，扫描继续，不属于致命错误
var (
	// ErrInsufficientBalance 余额不足，钳制后数量取整为零
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNoPositionToReduce 对方减仓/清仓，但我方没有对应持仓可卖
	ErrNoPositionToReduce = errors.New("no position to reduce")
	// ErrSizeTooSmall 目标数量取整到最小增量后为零
	ErrSizeTooSmall = errors.New("target size below minimum increment")
)

// Input 单次定价所需的全部输入
type Input struct {
	Delta        domain.PositionDelta
	TraderPrice  float64 // 对方本次变化的参考价格（无法得知成交价时用当前价）
	CurrentPrice float64 // 我方按扫描时价格成交
	Available    float64 // 账户可用余额（同一批次内由调用方递减）
	HeldSize     float64 // 我方当前该 (market, outcome) 的开放持仓数量
	CopyRatio    float64 // 跟单比例 0 < r ≤ 1
	MinIncrement float64 // 市场最小可交易增量（share）
}

// Size 把一个持仓变化换算成模拟订单。
// 目标名义金额 = |变化数量| × 对方价格 × copy_ratio；
// 目标数量 = 名义金额 / 当前价格，向下取整到最小增量。
// BUY 方向钳制到余额可负担的最大数量；SELL 方向钳制到我方持仓数量。
func Size(in Input) (domain.Order, error) {
	if in.CurrentPrice <= 0 {
		return domain.Order{}, fmt.Errorf("invalid current price %.6f for %s/%s",
			in.CurrentPrice, in.Delta.MarketID, in.Delta.Outcome)
	}

	change := decimal.NewFromFloat(in.Delta.SizeChange()).Abs()
	traderNotional := change.Mul(decimal.NewFromFloat(in.TraderPrice))
	targetNotional := traderNotional.Mul(decimal.NewFromFloat(in.CopyRatio))

	price := decimal.NewFromFloat(in.CurrentPrice)
	targetSize := targetNotional.Div(price)

	side := in.Delta.Side()
	balanceClamped := false
	switch side {
	case domain.SideBuy:
		available := decimal.NewFromFloat(in.Available)
		if targetNotional.GreaterThan(available) {
			// 余额不足：钳制到当前价格下可负担的最大数量
			balanceClamped = true
			targetSize = available.Div(price)
		}
	case domain.SideSell:
		if in.HeldSize <= 0 {
			return domain.Order{}, ErrNoPositionToReduce
		}
		held := decimal.NewFromFloat(in.HeldSize)
		if targetSize.GreaterThan(held) {
			// 不能卖出超过持有的数量
			targetSize = held
		}
	}

	size := floorToIncrement(targetSize, in.MinIncrement)
	if size.LessThanOrEqual(decimal.Zero) {
		// 只有余额钳制真正生效过才算余额不足，
		// 否则是目标数量本身小于最小增量
		if balanceClamped {
			return domain.Order{}, ErrInsufficientBalance
		}
		return domain.Order{}, ErrSizeTooSmall
	}

	sizeF, _ := size.Float64()
	return domain.Order{
		MarketID: in.Delta.MarketID,
		Outcome:  in.Delta.Outcome,
		Side:     side,
		Size:     sizeF,
		Price:    in.CurrentPrice,
	}, nil
}

// floorToIncrement 向下取整到最小增量的整数倍
func floorToIncrement(size decimal.Decimal, increment float64) decimal.Decimal {
	if increment <= 0 {
		return size
	}
	inc := decimal.NewFromFloat(increment)
	return size.Div(inc).Floor().Mul(inc)
}
