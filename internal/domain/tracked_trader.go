package domain

import "time"

// TrackedTrader 被跟踪的交易者登记信息
type TrackedTrader struct {
	Address       string
	Nickname      string
	CopiedTrades  int
	AddedAt       time.Time
	LastScannedAt *time.Time
}
