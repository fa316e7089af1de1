package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/betbot/copybot/internal/differ"
	"github.com/betbot/copybot/internal/domain"
	"github.com/betbot/copybot/internal/ledger"
	"github.com/betbot/copybot/internal/sizer"
	"github.com/betbot/copybot/pkg/sdk/api"
	"github.com/betbot/copybot/pkg/syncgroup"
)

// traderScan 单个交易者本周期的抓取结果
type traderScan struct {
	address  string
	snapshot domain.TraderSnapshot
	err      error
}

// RunCycle 执行一个完整扫描周期。
// 重入保护：上一个周期未结束时直接跳过并记录告警。
func (e *Engine) RunCycle(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		e.log.Warn("上一周期仍在执行，跳过本次触发")
		return
	}
	defer e.running.Store(false)

	started := time.Now()
	state := e.loadState()
	prices := newPriceCache(e)

	scans := e.fetchAll(ctx)

	var failures int
	for _, sc := range scans {
		if e.stopped.Load() || ctx.Err() != nil {
			e.log.Info("收到停止请求，中断本周期")
			return
		}
		if sc.err != nil {
			failures++
			state.TraderFailures[sc.address]++
			e.log.Errorf("交易者 %s 抓取失败，本周期跳过: %v", sc.address, sc.err)
			continue
		}
		if err := e.processTrader(ctx, sc, prices); err != nil {
			failures++
			state.TraderFailures[sc.address]++
			e.log.Errorf("交易者 %s 处理失败，快照未推进: %v", sc.address, err)
			continue
		}
		delete(state.TraderFailures, sc.address)
	}

	e.markToMarket(ctx, prices)

	state.LastCycleAt = started
	state.CompletedCount++
	e.saveState(state)

	e.logSummary(ctx, started, failures, state.CompletedCount)
}

// detailEvery 每隔多少个周期额外输出一次逐仓位明细
const detailEvery = 12

// fetchAll 有界并行抓取所有交易者的持仓快照
func (e *Engine) fetchAll(ctx context.Context) []*traderScan {
	scans := make([]*traderScan, len(e.cfg.Traders))
	sem := make(chan struct{}, e.cfg.Concurrency)
	group := syncgroup.NewSyncGroup()

	for i, addr := range e.cfg.Traders {
		i, addr := i, addr
		scans[i] = &traderScan{address: addr}
		group.Add(func() {
			sem <- struct{}{}
			defer func() { <-sem }()
			snap, err := e.fetchWithRetry(ctx, addr)
			scans[i].snapshot, scans[i].err = snap, err
		})
	}
	group.Run()
	group.Wait()
	return scans
}

// fetchWithRetry 抓取单个交易者持仓，瞬时错误按指数退避重试。
// 数据完整性错误不重试：重复请求不会修复坏数据。
func (e *Engine) fetchWithRetry(ctx context.Context, address string) (domain.TraderSnapshot, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			e.sleep(Backoff(e.cfg.RetryBackoff, attempt-1))
		}
		if e.stopped.Load() || ctx.Err() != nil {
			return domain.TraderSnapshot{}, context.Canceled
		}

		fctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
		snap, err := e.market.TraderPositions(fctx, address)
		cancel()
		if err == nil {
			return snap, nil
		}
		lastErr = err
		if !api.IsTransient(err) {
			return domain.TraderSnapshot{}, err
		}
		e.log.Warnf("交易者 %s 抓取失败 (第 %d 次): %v", address, attempt+1, err)
	}
	return domain.TraderSnapshot{}, lastErr
}

// pricedDelta 已完成定价、等待换算提交的持仓变化
type pricedDelta struct {
	delta domain.PositionDelta
	price float64
}

// processTrader 对一个交易者做 diff → 定价 → 原子提交。
// 任一变化的价格获取失败视为整个交易者本周期失败：快照不推进，
// 下一周期重新检测同样的变化。只有定价拒绝（余额/持仓/增量）才丢弃单笔。
func (e *Engine) processTrader(ctx context.Context, sc *traderScan, prices *priceCache) error {
	prev, err := e.store.LoadSnapshot(ctx, sc.address)
	if err != nil {
		return err
	}
	deltas := differ.Diff(prev, sc.snapshot)
	if prev == nil && !e.cfg.CopyExisting {
		e.log.Infof("交易者 %s 首次观测: 建立基线 %d 个持仓，不跟单", sc.address, len(deltas))
	}

	// 定价在锁外完成：价格重试的退避等待不阻塞其它交易者的提交
	var pending []pricedDelta
	for _, d := range deltas {
		if d.Baseline && !e.cfg.CopyExisting {
			continue
		}
		price, err := prices.get(ctx, d.MarketID, d.Outcome)
		if err != nil {
			return fmt.Errorf("获取 %s/%s 价格失败: %w", d.MarketID, d.Outcome, err)
		}
		pending = append(pending, pricedDelta{delta: d, price: price})
	}

	// cycleMu 串行化余额读取与提交：保证任何订单都不会让余额变负
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	account, err := e.store.Account(ctx)
	if err != nil {
		return err
	}
	available := account.Balance

	var orders []ledger.ExecOrder
	for _, pd := range pending {
		d := pd.delta

		var held float64
		if d.Side() == domain.SideSell {
			pos, err := e.store.OpenPosition(ctx, d.MarketID, d.Outcome)
			if err != nil {
				return err
			}
			if pos != nil {
				held = pos.Size
			}
		}

		order, err := sizer.Size(sizer.Input{
			Delta:        d,
			TraderPrice:  pd.price,
			CurrentPrice: pd.price,
			Available:    available,
			HeldSize:     held,
			CopyRatio:    e.cfg.CopyRatio,
			MinIncrement: e.cfg.MinIncrement,
		})
		if err != nil {
			if errors.Is(err, sizer.ErrSizeTooSmall) || errors.Is(err, sizer.ErrInsufficientBalance) ||
				errors.Is(err, sizer.ErrNoPositionToReduce) {
				e.log.Debugf("丢弃 %s %s/%s: %v", d.Kind, d.MarketID, d.Outcome, err)
				continue
			}
			return err
		}
		order.Title = d.Title
		if order.Side == domain.SideBuy {
			available -= order.Notional()
		}
		orders = append(orders, ledger.ExecOrder{Order: order, SourceTrader: sc.address})
	}

	trades, err := e.store.ApplyTraderScan(ctx, ledger.ScanResult{
		Orders:   orders,
		Snapshot: sc.snapshot,
	})
	if err != nil {
		return err
	}
	for _, t := range trades {
		e.log.Infof("跟单 %s: %s %.2f %s/%s @ %.4f (notional %.2f)",
			t.SourceTrader, t.Side, t.Size, t.MarketID, t.Outcome, t.Price, t.Notional)
	}
	return nil
}

// markToMarket 按本周期已获取的价格刷新开放仓位的未实现盈亏
func (e *Engine) markToMarket(ctx context.Context, prices *priceCache) {
	positions, err := e.store.OpenPositions(ctx)
	if err != nil {
		e.log.Errorf("mark-to-market 读取仓位失败: %v", err)
		return
	}
	if len(positions) == 0 {
		return
	}

	marks := make(map[domain.PositionKey]float64, len(positions))
	for _, p := range positions {
		key := domain.PositionKey{MarketID: p.MarketID, Outcome: p.Outcome}
		price, err := prices.get(ctx, p.MarketID, p.Outcome)
		if err != nil {
			continue // 无报价的仓位由账本标记为 stale
		}
		marks[key] = price
	}
	if err := e.store.MarkToMarket(ctx, marks); err != nil {
		e.log.Errorf("mark-to-market 失败: %v", err)
	}
}

func (e *Engine) logSummary(ctx context.Context, started time.Time, failures, cycles int) {
	sum, err := e.store.Summary(ctx)
	if err != nil {
		e.log.Errorf("读取账户概览失败: %v", err)
		return
	}
	e.log.Infof("周期完成: 耗时 %s, 失败 %d | 余额 %.2f, 权益 %.2f, 仓位 %d, 总盈亏 %.2f (%.2f%%)",
		time.Since(started).Round(time.Millisecond), failures,
		sum.Balance, sum.Equity, sum.OpenPositions, sum.TotalPnl, sum.ReturnPct)

	if cycles%detailEvery != 0 {
		return
	}
	positions, err := e.store.OpenPositions(ctx)
	if err != nil || len(positions) == 0 {
		return
	}
	for _, p := range positions {
		e.log.Infof("  仓位 %s/%s: %.2f @ %.4f, 未实现 %.2f", p.MarketID, p.Outcome, p.Size, p.EntryPrice, p.UnrealizedPnl)
	}
}

// priceCache 周期内的价格缓存：同一 (market, outcome) 只请求一次，
// 失败结果也缓存，避免对不可用市场反复重试
type priceCache struct {
	e      *Engine
	prices map[domain.PositionKey]float64
	failed map[domain.PositionKey]error
}

func newPriceCache(e *Engine) *priceCache {
	return &priceCache{
		e:      e,
		prices: make(map[domain.PositionKey]float64),
		failed: make(map[domain.PositionKey]error),
	}
}

func (c *priceCache) get(ctx context.Context, marketID, outcome string) (float64, error) {
	key := domain.PositionKey{MarketID: marketID, Outcome: outcome}
	if price, ok := c.prices[key]; ok {
		return price, nil
	}
	if err, ok := c.failed[key]; ok {
		return 0, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.e.sleep(Backoff(c.e.cfg.RetryBackoff, attempt-1))
		}
		fctx, cancel := context.WithTimeout(ctx, c.e.cfg.FetchTimeout)
		price, err := c.e.market.MarketPrice(fctx, marketID, outcome)
		cancel()
		if err == nil {
			c.prices[key] = price
			return price, nil
		}
		lastErr = err
		if !api.IsTransient(err) {
			break
		}
	}
	c.failed[key] = lastErr
	return 0, lastErr
}
