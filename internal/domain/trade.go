package domain

import "time"

// Trade 已执行的跟单记录（append-only 审计日志，每笔跟单一行）
type Trade struct {
	ID           string
	Timestamp    time.Time
	SourceTrader string // 被跟踪交易者地址
	MarketID     string
	Outcome      string
	Side         Side
	Size         float64
	Price        float64
	Notional     float64
	RealizedPnl  float64 // 仅 SELL 有值：(price − entry_price) × size
	MarketTitle  string
}
