// Package differ 比较同一交易者的两次连续持仓快照，产出持仓变化序列。
// 纯函数：无副作用，输出顺序确定（按 market_id、outcome 排序），
// 相同输入必然产生相同输出。
package differ

import (
	"sort"

	"github.com/betbot/copybot/internal/domain"
)

// Diff 比较 previous 与 current 快照，返回检测到的持仓变化。
// previous 为 nil 表示该交易者的首次观测：所有 size>0 的持仓
// 以 Baseline=true 的 OPEN delta 返回，由调用方决定是否跟单
// （默认只建立基线，不把交易者的历史持仓当作一笔巨大新交易复制）。
func Diff(previous *domain.TraderSnapshot, current domain.TraderSnapshot) []domain.PositionDelta {
	if previous == nil {
		return baselineDeltas(current)
	}

	// 合并两个快照中出现过的所有持仓键
	keySet := make(map[domain.PositionKey]struct{}, len(previous.Positions)+len(current.Positions))
	for k := range previous.Positions {
		keySet[k] = struct{}{}
	}
	for k := range current.Positions {
		keySet[k] = struct{}{}
	}

	keys := make([]domain.PositionKey, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	var deltas []domain.PositionDelta
	for _, key := range keys {
		prevSize := previous.Size(key)
		curSize := current.Size(key)
		if curSize == prevSize {
			continue
		}

		// 清仓时当前快照已无该键，标题退回到上一快照的记录
		title := current.Positions[key].Title
		if title == "" {
			title = previous.Positions[key].Title
		}

		kind := classify(prevSize, curSize)
		deltas = append(deltas, domain.PositionDelta{
			TraderAddress: current.TraderAddress,
			MarketID:      key.MarketID,
			Outcome:       key.Outcome,
			PreviousSize:  prevSize,
			NewSize:       curSize,
			Kind:          kind,
			Title:         title,
		})
	}
	return deltas
}

// classify 根据前后数量判定变化类型
func classify(prevSize, curSize float64) domain.DeltaKind {
	switch {
	case prevSize == 0 && curSize > 0:
		return domain.DeltaOpen
	case prevSize > 0 && curSize == 0:
		return domain.DeltaClose
	case curSize > prevSize:
		return domain.DeltaIncrease
	default:
		return domain.DeltaDecrease
	}
}

// baselineDeltas 首次观测：每个 size>0 的持仓产出一个基线 OPEN delta
func baselineDeltas(current domain.TraderSnapshot) []domain.PositionDelta {
	var deltas []domain.PositionDelta
	for _, key := range current.Keys() {
		size := current.Size(key)
		if size <= 0 {
			continue
		}
		deltas = append(deltas, domain.PositionDelta{
			TraderAddress: current.TraderAddress,
			MarketID:      key.MarketID,
			Outcome:       key.Outcome,
			PreviousSize:  0,
			NewSize:       size,
			Kind:          domain.DeltaOpen,
			Baseline:      true,
			Title:         current.Positions[key].Title,
		})
	}
	return deltas
}
