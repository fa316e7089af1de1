package domain

import (
	"sort"
	"time"
)

// PositionKey 持仓键：一个市场的一个结果方向
type PositionKey struct {
	MarketID string // 市场 ID（condition id）
	Outcome  string // 结果方向（YES/NO 或市场自定义结果名）
}

// Less 返回确定性的排序关系（先按 market_id，再按 outcome）
// diff 输出顺序依赖此排序，保证重复运行结果逐字节一致
func (k PositionKey) Less(other PositionKey) bool {
	if k.MarketID != other.MarketID {
		return k.MarketID < other.MarketID
	}
	return k.Outcome < other.Outcome
}

// SnapshotEntry 快照中单个持仓的观测值
type SnapshotEntry struct {
	Size          float64 // 持仓数量（share）
	AvgEntryPrice float64 // 平均建仓价格
	Title         string  // 市场标题（行情 API 提供时记录）
}

// TraderSnapshot 某个被跟踪交易者在某一时刻的全量持仓快照
// 快照一旦捕获即不可变：后续只会被同一交易者的新快照整体替换
type TraderSnapshot struct {
	TraderAddress string
	CapturedAt    time.Time
	Positions     map[PositionKey]SnapshotEntry
}

// NewTraderSnapshot 创建空快照
func NewTraderSnapshot(trader string, capturedAt time.Time) TraderSnapshot {
	return TraderSnapshot{
		TraderAddress: trader,
		CapturedAt:    capturedAt,
		Positions:     make(map[PositionKey]SnapshotEntry),
	}
}

// Keys 返回排序后的持仓键列表（确定性遍历顺序）
func (s TraderSnapshot) Keys() []PositionKey {
	keys := make([]PositionKey, 0, len(s.Positions))
	for k := range s.Positions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Size 返回某个持仓键的数量（不存在视为 0）
func (s TraderSnapshot) Size(key PositionKey) float64 {
	if e, ok := s.Positions[key]; ok {
		return e.Size
	}
	return 0
}
