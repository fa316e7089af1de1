package engine

import (
	"errors"
	"time"

	"github.com/betbot/copybot/pkg/persistence"
)

// runtimeState 跨重启保留的运行时状态（诊断用，账本数据在 sqlite）
type runtimeState struct {
	LastCycleAt    time.Time      `json:"last_cycle_at"`
	CompletedCount int            `json:"completed_count"`
	TraderFailures map[string]int `json:"trader_failures,omitempty"`
}

func (e *Engine) loadState() runtimeState {
	st := runtimeState{TraderFailures: make(map[string]int)}
	if e.stateStore == nil {
		return st
	}
	if err := e.stateStore.Load(&st); err != nil && !errors.Is(err, persistence.ErrNotExists) {
		e.log.Warnf("加载运行时状态失败: %v", err)
	}
	if st.TraderFailures == nil {
		st.TraderFailures = make(map[string]int)
	}
	return st
}

func (e *Engine) saveState(st runtimeState) {
	if e.stateStore == nil {
		return
	}
	if err := e.stateStore.Save(st); err != nil {
		e.log.Warnf("保存运行时状态失败: %v", err)
	}
}
