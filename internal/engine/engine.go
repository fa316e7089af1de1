// Package engine 跟单引擎：按固定间隔扫描被跟踪交易者的持仓，
// 将检测到的变化按比例镜像到模拟账本。
// 单个调度循环串行执行周期，周期内抓取并行、提交串行。
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/copybot/internal/domain"
	"github.com/betbot/copybot/internal/ledger"
	"github.com/betbot/copybot/pkg/logger"
	"github.com/betbot/copybot/pkg/persistence"
	"github.com/betbot/copybot/pkg/sigchan"
)

// MarketData 行情来源：交易者持仓与市场价格
type MarketData interface {
	// TraderPositions 返回交易者当前全部开放持仓
	TraderPositions(ctx context.Context, address string) (domain.TraderSnapshot, error)
	// MarketPrice 返回 (market, outcome) 的当前价格
	MarketPrice(ctx context.Context, marketID, outcome string) (float64, error)
}

// Config 引擎配置
type Config struct {
	Traders      []string      // 被跟踪交易者地址（小写）
	Interval     time.Duration // 扫描间隔
	CopyRatio    float64       // 跟单比例
	MinIncrement float64       // 订单数量最小增量
	CopyExisting bool          // 首次观测时是否跟单已有持仓（默认只建基线）
	MaxRetries   int           // 瞬时错误最大重试次数
	RetryBackoff time.Duration // 重试退避基准时长
	FetchTimeout time.Duration // 单次请求超时
	Concurrency  int           // 并行抓取的交易者数量上限
}

// Engine 跟单引擎
type Engine struct {
	store      *ledger.Store
	market     MarketData
	cfg        Config
	log        *logrus.Entry
	stateStore persistence.Store

	cycleMu sync.Mutex // 串行化定价与提交，保证余额检查的原子性
	running atomic.Bool
	stopped atomic.Bool
	stopCh  *sigchan.Chan
	sleep   func(time.Duration) // 测试中可替换
}

// New 创建引擎
func New(store *ledger.Store, market MarketData, cfg Config, stateStore persistence.Store) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Engine{
		store:      store,
		market:     market,
		cfg:        cfg,
		log:        logger.WithField("module", "engine"),
		stateStore: stateStore,
		stopCh:     sigchan.New(1),
		sleep:      time.Sleep,
	}
}

// Run 阻塞运行调度循环：启动后立即执行第一个周期，
// 之后按 Interval 定时触发。触发点锚定在周期开始时刻，
// 周期超时会跳过已错过的触发点，不会并发补跑。
// ctx 取消或 Stop() 后完成当前交易者即返回。
func (e *Engine) Run(ctx context.Context) {
	e.log.Infof("跟单引擎启动: %d 个交易者, 间隔 %s, 比例 %.4f",
		len(e.cfg.Traders), e.cfg.Interval, e.cfg.CopyRatio)

	for {
		started := time.Now()
		e.RunCycle(ctx)

		if e.stopped.Load() || ctx.Err() != nil {
			e.log.Info("跟单引擎停止")
			return
		}

		// 锚定周期开始时刻，跳过已错过的触发点
		next := started.Add(e.cfg.Interval)
		for !next.After(time.Now()) {
			next = next.Add(e.cfg.Interval)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			e.log.Info("跟单引擎停止")
			return
		case <-e.stopCh.C():
			timer.Stop()
			e.log.Info("跟单引擎停止")
			return
		case <-timer.C:
		}
	}
}

// Stop 请求停止：当前周期完成正在处理的交易者后退出
func (e *Engine) Stop() {
	e.stopped.Store(true)
	e.stopCh.Emit()
}

// Running 当前是否有周期在执行
func (e *Engine) Running() bool {
	return e.running.Load()
}
