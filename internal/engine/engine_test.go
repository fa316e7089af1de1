package engine

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/betbot/copybot/internal/domain"
	"github.com/betbot/copybot/internal/ledger"
	"github.com/betbot/copybot/pkg/sdk/api"
)

func newTestEngine(t *testing.T, traders ...string) (*Engine, *ledger.Store, *api.MockMarketData) {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	if err := store.InitAccount(ctx, 100000); err != nil {
		t.Fatalf("InitAccount: %v", err)
	}
	for _, addr := range traders {
		if err := store.UpsertTrackedTrader(ctx, addr, ""); err != nil {
			t.Fatalf("UpsertTrackedTrader: %v", err)
		}
	}

	mock := api.NewMockMarketData()
	e := New(store, mock, Config{
		Traders:      traders,
		Interval:     time.Hour,
		CopyRatio:    0.02,
		MinIncrement: 1,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
		FetchTimeout: time.Second,
	}, nil)
	e.sleep = func(time.Duration) {} // 测试中不真正等待
	return e, store, mock
}

func k(market, outcome string) domain.PositionKey {
	return domain.PositionKey{MarketID: market, Outcome: outcome}
}

func TestFirstCycleEstablishesBaselineWithoutCopying(t *testing.T) {
	e, store, mock := newTestEngine(t, "0xabc")
	ctx := context.Background()

	mock.SetPositions("0xabc", map[domain.PositionKey]float64{k("m1", "Yes"): 500})
	mock.SetPrice(k("m1", "Yes"), 0.42)

	e.RunCycle(ctx)

	trades, _ := store.Trades(ctx, 0)
	if len(trades) != 0 {
		t.Fatalf("expected no trades on baseline cycle, got %d", len(trades))
	}
	snap, _ := store.LoadSnapshot(ctx, "0xabc")
	if snap == nil || snap.Size(k("m1", "Yes")) != 500 {
		t.Fatalf("expected baseline snapshot persisted, got %v", snap)
	}
}

func TestCycleCopiesNewPosition(t *testing.T) {
	e, store, mock := newTestEngine(t, "0xabc")
	ctx := context.Background()

	// 第一周期：空仓基线
	e.RunCycle(ctx)

	// 第二周期：对方买入 500 股 @ 0.42 → 跟单 10 股
	mock.SetPositions("0xabc", map[domain.PositionKey]float64{k("m1", "Yes"): 500})
	mock.SetPrice(k("m1", "Yes"), 0.42)
	e.RunCycle(ctx)

	trades, _ := store.Trades(ctx, 0)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.Side != domain.SideBuy || tr.Size != 10 || tr.SourceTrader != "0xabc" {
		t.Fatalf("unexpected trade %+v", tr)
	}

	account, _ := store.Account(ctx)
	if math.Abs(account.Balance-(100000-4.2)) > 1e-6 {
		t.Fatalf("expected balance 99995.8, got %v", account.Balance)
	}
}

func TestCycleIdempotentOnUnchangedSnapshot(t *testing.T) {
	e, store, mock := newTestEngine(t, "0xabc")
	ctx := context.Background()

	e.RunCycle(ctx)
	mock.SetPositions("0xabc", map[domain.PositionKey]float64{k("m1", "Yes"): 500})
	mock.SetPrice(k("m1", "Yes"), 0.42)
	e.RunCycle(ctx)

	// 持仓不再变化：重复扫描不得产生新交易
	e.RunCycle(ctx)
	e.RunCycle(ctx)

	trades, _ := store.Trades(ctx, 0)
	if len(trades) != 1 {
		t.Fatalf("expected exactly 1 trade after repeat scans, got %d", len(trades))
	}
}

func TestCycleMirrorsClose(t *testing.T) {
	e, store, mock := newTestEngine(t, "0xabc")
	ctx := context.Background()

	e.RunCycle(ctx)
	mock.SetPositions("0xabc", map[domain.PositionKey]float64{k("m1", "Yes"): 500})
	mock.SetPrice(k("m1", "Yes"), 0.42)
	e.RunCycle(ctx)

	// 对方清仓，价格涨到 0.50 → 全部卖出并实现盈亏
	mock.SetPositions("0xabc", nil)
	mock.SetPrice(k("m1", "Yes"), 0.50)
	e.RunCycle(ctx)

	positions, _ := store.OpenPositions(ctx)
	if len(positions) != 0 {
		t.Fatalf("expected no open positions, got %d", len(positions))
	}
	account, _ := store.Account(ctx)
	if math.Abs(account.RealizedPnl-0.8) > 1e-6 { // (0.50-0.42)×10
		t.Fatalf("expected realized pnl 0.8, got %v", account.RealizedPnl)
	}
}

func TestTraderFailureIsolation(t *testing.T) {
	e, store, mock := newTestEngine(t, "0xaaa", "0xbbb")
	ctx := context.Background()

	e.RunCycle(ctx)
	mock.SetPositions("0xaaa", map[domain.PositionKey]float64{k("m1", "Yes"): 500})
	mock.SetPositions("0xbbb", map[domain.PositionKey]float64{k("m2", "No"): 500})
	mock.SetPrice(k("m1", "Yes"), 0.42)
	mock.SetPrice(k("m2", "No"), 0.30)

	// 其中一个交易者第一次抓取失败（重试后成功），另一个不受影响
	mock.ErrorOnNext["TraderPositions"] = &api.TransientError{Err: fmt.Errorf("timeout")}
	e.RunCycle(ctx)

	snapA, _ := store.LoadSnapshot(ctx, "0xaaa")
	snapB, _ := store.LoadSnapshot(ctx, "0xbbb")
	if snapA == nil || snapB == nil {
		t.Fatalf("expected both snapshots advanced, got %v / %v", snapA, snapB)
	}
	trades, _ := store.Trades(ctx, 0)
	if len(trades) != 2 {
		t.Fatalf("expected both traders copied, got %d trades", len(trades))
	}
}

func TestDataErrorSkipsTraderWithoutRetry(t *testing.T) {
	e, store, mock := newTestEngine(t, "0xabc")
	ctx := context.Background()

	mock.ErrorOnNext["TraderPositions"] = &api.DataError{Err: fmt.Errorf("bad payload")}
	e.RunCycle(ctx)

	// 数据错误不重试：只调用一次，快照不推进
	if n := mock.CallCount("TraderPositions"); n != 1 {
		t.Fatalf("expected single call for data error, got %d", n)
	}
	if snap, _ := store.LoadSnapshot(ctx, "0xabc"); snap != nil {
		t.Fatal("expected snapshot not advanced after data error")
	}
}

func TestTransientErrorRetriesWithBackoff(t *testing.T) {
	e, store, mock := newTestEngine(t, "0xabc")
	ctx := context.Background()

	var slept []time.Duration
	e.sleep = func(d time.Duration) { slept = append(slept, d) }

	mock.ErrorOnNext["TraderPositions"] = &api.TransientError{Err: fmt.Errorf("429")}
	e.RunCycle(ctx)

	if n := mock.CallCount("TraderPositions"); n != 2 {
		t.Fatalf("expected retry after transient error, got %d calls", n)
	}
	if len(slept) == 0 {
		t.Fatal("expected backoff sleep before retry")
	}
	if snap, _ := store.LoadSnapshot(ctx, "0xabc"); snap == nil {
		t.Fatal("expected snapshot advanced after successful retry")
	}
}

func TestCycleOverlapGuard(t *testing.T) {
	e, _, mock := newTestEngine(t, "0xabc")
	ctx := context.Background()

	blocked := make(chan struct{})
	release := make(chan struct{})
	e.market = blockingMarket{mock: mock, blocked: blocked, release: release}

	go e.RunCycle(ctx)
	<-blocked

	// 上一周期还卡在抓取中：再次触发必须直接返回
	done := make(chan struct{})
	go func() {
		e.RunCycle(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("overlapping cycle did not return immediately")
	}
	if !e.Running() {
		t.Fatal("expected first cycle still running")
	}
	close(release)
}

type blockingMarket struct {
	mock    *api.MockMarketData
	blocked chan struct{}
	release chan struct{}
}

func (b blockingMarket) TraderPositions(ctx context.Context, address string) (domain.TraderSnapshot, error) {
	close(b.blocked)
	<-b.release
	return b.mock.TraderPositions(ctx, address)
}

func (b blockingMarket) MarketPrice(ctx context.Context, marketID, outcome string) (float64, error) {
	return b.mock.MarketPrice(ctx, marketID, outcome)
}

// flakyPriceMarket 价格查询可切换为持续失败的行情源
type flakyPriceMarket struct {
	mock *api.MockMarketData
	fail *atomic.Bool
}

func (f flakyPriceMarket) TraderPositions(ctx context.Context, address string) (domain.TraderSnapshot, error) {
	return f.mock.TraderPositions(ctx, address)
}

func (f flakyPriceMarket) MarketPrice(ctx context.Context, marketID, outcome string) (float64, error) {
	if f.fail.Load() {
		return 0, &api.TransientError{Err: fmt.Errorf("gamma unavailable")}
	}
	return f.mock.MarketPrice(ctx, marketID, outcome)
}

func TestPriceFailureLeavesSnapshotUnadvanced(t *testing.T) {
	e, store, mock := newTestEngine(t, "0xabc")
	ctx := context.Background()

	var fail atomic.Bool
	e.market = flakyPriceMarket{mock: mock, fail: &fail}

	e.RunCycle(ctx)
	mock.SetPositions("0xabc", map[domain.PositionKey]float64{k("m1", "Yes"): 500})
	mock.SetPrice(k("m1", "Yes"), 0.42)
	e.RunCycle(ctx)

	// 对方清仓，但价格源持续不可用：整个交易者本周期失败，
	// 快照不得推进，否则清仓变化将永远丢失
	mock.SetPositions("0xabc", nil)
	fail.Store(true)
	e.RunCycle(ctx)

	snap, _ := store.LoadSnapshot(ctx, "0xabc")
	if snap == nil || snap.Size(k("m1", "Yes")) != 500 {
		t.Fatalf("expected snapshot unadvanced after price failure, got %v", snap)
	}
	if trades, _ := store.Trades(ctx, 0); len(trades) != 1 {
		t.Fatalf("expected no new trades during price failure, got %d", len(trades))
	}

	// 价格恢复后下一周期重新检测到清仓并跟随卖出
	fail.Store(false)
	mock.SetPrice(k("m1", "Yes"), 0.50)
	e.RunCycle(ctx)

	if positions, _ := store.OpenPositions(ctx); len(positions) != 0 {
		t.Fatalf("expected close re-detected and mirrored, got %d open", len(positions))
	}
	if trades, _ := store.Trades(ctx, 0); len(trades) != 2 {
		t.Fatalf("expected sell after recovery, got %d trades", len(trades))
	}
}

// stopOnPriceMarket 第一次价格查询时触发 Stop，模拟周期中途收到停止请求
type stopOnPriceMarket struct {
	mock *api.MockMarketData
	stop func()
	once *sync.Once
}

func (s stopOnPriceMarket) TraderPositions(ctx context.Context, address string) (domain.TraderSnapshot, error) {
	return s.mock.TraderPositions(ctx, address)
}

func (s stopOnPriceMarket) MarketPrice(ctx context.Context, marketID, outcome string) (float64, error) {
	s.once.Do(s.stop)
	return s.mock.MarketPrice(ctx, marketID, outcome)
}

func TestStopBetweenTraders(t *testing.T) {
	e, store, mock := newTestEngine(t, "0xaaa", "0xbbb")
	e.cfg.Concurrency = 1
	ctx := context.Background()

	e.RunCycle(ctx)
	mock.SetPositions("0xaaa", map[domain.PositionKey]float64{k("m1", "Yes"): 500})
	mock.SetPositions("0xbbb", map[domain.PositionKey]float64{k("m2", "No"): 500})
	mock.SetPrice(k("m1", "Yes"), 0.42)
	mock.SetPrice(k("m2", "No"), 0.30)

	// 第一个交易者定价时触发停止：该交易者必须完整提交，
	// 第二个交易者不再处理，其快照停留在基线
	e.market = stopOnPriceMarket{mock: mock, stop: e.Stop, once: &sync.Once{}}
	e.RunCycle(ctx)

	snapA, _ := store.LoadSnapshot(ctx, "0xaaa")
	if snapA == nil || snapA.Size(k("m1", "Yes")) != 500 {
		t.Fatalf("expected in-flight trader committed, got %v", snapA)
	}
	snapB, _ := store.LoadSnapshot(ctx, "0xbbb")
	if snapB == nil || snapB.Size(k("m2", "No")) != 0 {
		t.Fatalf("expected second trader untouched after stop, got %v", snapB)
	}
	trades, _ := store.Trades(ctx, 0)
	if len(trades) != 1 || trades[0].SourceTrader != "0xaaa" {
		t.Fatalf("expected only first trader copied, got %+v", trades)
	}
}

func TestRunStopsOnStop(t *testing.T) {
	e, _, _ := newTestEngine(t, "0xabc")
	e.cfg.Interval = 10 * time.Millisecond

	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	e.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestBackoff(t *testing.T) {
	base := 500 * time.Millisecond
	if d := Backoff(base, 0); d != base {
		t.Fatalf("attempt 0: expected %v, got %v", base, d)
	}
	if d := Backoff(base, 2); d != 2*time.Second {
		t.Fatalf("attempt 2: expected 2s, got %v", d)
	}
	if d := Backoff(base, 20); d != 30*time.Second {
		t.Fatalf("expected cap at 30s, got %v", d)
	}
}
