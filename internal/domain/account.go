package domain

import "time"

// Account 模拟账户（单行）
// balance 是虚拟资金，只通过已执行的跟单和平仓实现事件增减
type Account struct {
	Balance        float64
	InitialBalance float64
	RealizedPnl    float64
	UpdatedAt      time.Time
}

// Equity 返回账户权益：现金 + 开放仓位市值
// 会计恒等式：每次 execute / markToMarket 前后都必须成立
func (a Account) Equity(openPositionValue float64) float64 {
	return a.Balance + openPositionValue
}
