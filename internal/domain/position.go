package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus 仓位状态
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "OPEN"
	PositionStatusClosed PositionStatus = "CLOSED"
)

// Position 我方模拟账户的仓位
// 首次买入某 (market, outcome) 时创建；后续买卖调整数量；
// 数量归零时置为 CLOSED 并记录 closed_at
type Position struct {
	ID            string
	MarketID      string
	Outcome       string
	Size          float64
	EntryPrice    float64 // 平均建仓价格（多次买入按成本加权）
	Status        PositionStatus
	UnrealizedPnl float64
	Stale         bool // mark-to-market 时市场无报价，未实现盈亏沿用旧值
	Title         string
	OpenedAt      time.Time
	ClosedAt      *time.Time
}

// IsOpen 仓位是否开放
func (p *Position) IsOpen() bool {
	return p.Status == PositionStatusOpen
}

// MarketValue 按给定价格计算仓位市值
func (p *Position) MarketValue(price float64) float64 {
	return p.Size * price
}

// BlendEntry 按成本加权合并一次新买入，返回新的平均建仓价
// 使用 decimal 避免多次累加的浮点漂移
func BlendEntry(curSize, curEntry, addSize, addPrice float64) float64 {
	if curSize+addSize <= 0 {
		return curEntry
	}
	cost := decimal.NewFromFloat(curSize).Mul(decimal.NewFromFloat(curEntry)).
		Add(decimal.NewFromFloat(addSize).Mul(decimal.NewFromFloat(addPrice)))
	blended, _ := cost.Div(decimal.NewFromFloat(curSize + addSize)).Float64()
	return blended
}
