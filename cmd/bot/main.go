package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/betbot/copybot/internal/controlplane/server"
	"github.com/betbot/copybot/internal/engine"
	"github.com/betbot/copybot/internal/ledger"
	"github.com/betbot/copybot/pkg/config"
	"github.com/betbot/copybot/pkg/logger"
	"github.com/betbot/copybot/pkg/persistence"
	"github.com/betbot/copybot/pkg/sdk/api"
	"github.com/betbot/copybot/pkg/shutdown"
)

const gracefulShutdownPeriod = 30 * time.Second

func main() {
	// 解析命令行参数
	configPath := flag.String("config", "", "配置文件路径（.yaml）")
	traders := flag.String("traders", "", "追加的被跟踪交易者地址（逗号分隔，覆盖于配置文件之上）")
	dbPath := flag.String("db", "", "账本 sqlite 文件路径（覆盖配置）")
	flag.Parse()

	// .env 可选，用于本地开发
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *traders != "" {
		for _, addr := range strings.Split(*traders, ",") {
			addr = strings.TrimSpace(strings.ToLower(addr))
			if addr != "" {
				cfg.TrackedTraders = append(cfg.TrackedTraders, config.TrackedTrader{Address: addr})
			}
		}
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	// 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     14,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	// 配置非法直接退出
	if err := cfg.Validate(); err != nil {
		logrus.Errorf("配置校验失败: %v", err)
		os.Exit(1)
	}

	// 打开账本
	store, err := ledger.Open(cfg.DBPath)
	if err != nil {
		logrus.Errorf("打开账本失败: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.InitAccount(ctx, cfg.InitialBalance); err != nil {
		logrus.Errorf("初始化账户失败: %v", err)
		os.Exit(1)
	}
	for _, t := range cfg.TrackedTraders {
		if err := store.UpsertTrackedTrader(ctx, t.Address, t.Nickname); err != nil {
			logrus.Errorf("登记交易者 %s 失败: %v", t.Address, err)
			os.Exit(1)
		}
	}

	// 行情来源
	client := api.NewClient(cfg.DataAPIURL, cfg.GammaAPIURL)
	market := api.NewMarketData(client, nil)

	// 运行时状态
	stateService := persistence.NewJSONFileService(cfg.StateDir)
	stateStore := stateService.NewStore("state", "engine", "runtime")

	// 跟单引擎
	eng := engine.New(store, market, engine.Config{
		Traders:      cfg.TraderAddresses(),
		Interval:     cfg.ScanInterval(),
		CopyRatio:    cfg.CopyRatio,
		MinIncrement: cfg.MinSizeIncrement,
		CopyExisting: cfg.CopyExistingPositions,
		MaxRetries:   cfg.MaxFetchRetries,
		RetryBackoff: cfg.RetryBackoff(),
		FetchTimeout: cfg.FetchTimeout(),
		Concurrency:  cfg.TraderConcurrency,
	}, stateStore)

	shutdownManager := shutdown.NewManager()
	shutdownManager.OnShutdown(func(ctx context.Context, wg *sync.WaitGroup) {
		eng.Stop()
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		eng.Run(ctx)
	}()

	// 可选的只读控制面
	if cfg.HTTPAddr != "" {
		srv := server.New(store, eng)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Serve(ctx, cfg.HTTPAddr); err != nil {
				logrus.Errorf("控制面退出: %v", err)
			}
		}()
	}

	// 等待退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logrus.Infof("收到信号 %v，开始优雅关闭", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownPeriod)
	defer shutdownCancel()
	shutdownManager.Shutdown(shutdownCtx)
	cancel()
	wg.Wait()

	// 退出前输出最终账户概览
	if sum, err := store.Summary(context.Background()); err == nil {
		logrus.Infof("最终状态: 余额 %.2f, 权益 %.2f, 仓位 %d, 成交 %d, 总盈亏 %.2f (%.2f%%)",
			sum.Balance, sum.Equity, sum.OpenPositions, sum.TotalTrades, sum.TotalPnl, sum.ReturnPct)
	}
	logrus.Info("已退出")
}
