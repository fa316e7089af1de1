package domain

// Side 订单方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order 模拟跟单订单（按扫描时价格成交的纸面订单）
type Order struct {
	MarketID string
	Outcome  string
	Side     Side
	Size     float64 // share 数量，已向下取整到市场最小增量
	Price    float64 // 扫描时价格，即成交价格
	Title    string  // 市场标题（可选，来自行情 API）
}

// Notional 返回订单名义金额（size × price）
func (o Order) Notional() float64 {
	return o.Size * o.Price
}
