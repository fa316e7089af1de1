package domain

// DeltaKind 持仓变化类型
type DeltaKind string

const (
	DeltaOpen     DeltaKind = "OPEN"     // 新开仓（上一快照无持仓）
	DeltaIncrease DeltaKind = "INCREASE" // 加仓
	DeltaDecrease DeltaKind = "DECREASE" // 减仓
	DeltaClose    DeltaKind = "CLOSE"    // 清仓（当前快照持仓归零）
)

// PositionDelta 两次连续快照之间单个持仓键上的变化
// 派生值，不单独持久化：只有由它产生的 Trade 会落库
type PositionDelta struct {
	TraderAddress string
	MarketID      string
	Outcome       string
	PreviousSize  float64
	NewSize       float64
	Kind          DeltaKind
	Title         string

	// Baseline 标记该 delta 来自交易者的首次观测快照。
	// 默认策略只把首次快照当作基线，不产生跟单；
	// 配置 copy_existing_positions=true 时才会跟随复制。
	Baseline bool
}

// SizeChange 返回带符号的数量变化
func (d PositionDelta) SizeChange() float64 {
	return d.NewSize - d.PreviousSize
}

// Key 返回该变化对应的持仓键
func (d PositionDelta) Key() PositionKey {
	return PositionKey{MarketID: d.MarketID, Outcome: d.Outcome}
}

// Side 返回该变化对应的跟单方向：加仓/开仓=买入，减仓/清仓=卖出
func (d PositionDelta) Side() Side {
	if d.SizeChange() >= 0 {
		return SideBuy
	}
	return SideSell
}
