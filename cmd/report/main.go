package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/betbot/copybot/internal/domain"
	"github.com/betbot/copybot/internal/ledger"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(16)
	valueStyle  = lipgloss.NewStyle().Bold(true)
	gainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

func main() {
	dbPath := flag.String("db", "copybot.db", "账本 sqlite 文件路径")
	watch := flag.Bool("watch", false, "持续刷新显示")
	interval := flag.Duration("interval", 5*time.Second, "watch 模式刷新间隔")
	tradeLimit := flag.Int("trades", 10, "显示最近成交数量")
	flag.Parse()

	store, err := ledger.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "打开账本失败: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *watch {
		p := tea.NewProgram(model{
			store:      store,
			interval:   *interval,
			tradeLimit: *tradeLimit,
		})
		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	out, err := render(store, *tradeLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取账本失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(out)
}

// render 读取账本并渲染一份完整报告
func render(store *ledger.Store, tradeLimit int) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sum, err := store.Summary(ctx)
	if err != nil {
		return "", err
	}
	positions, err := store.OpenPositions(ctx)
	if err != nil {
		return "", err
	}
	trades, err := store.Trades(ctx, tradeLimit)
	if err != nil {
		return "", err
	}
	traders, err := store.TrackedTraders(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("跟单模拟账户") + "\n\n")

	row := func(label string, value string) {
		b.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("余额", fmt.Sprintf("%.2f USDC", sum.Balance))
	row("权益", fmt.Sprintf("%.2f USDC", sum.Equity))
	row("仓位市值", fmt.Sprintf("%.2f USDC", sum.PositionValue))
	b.WriteString(labelStyle.Render("总盈亏") + pnl(sum.TotalPnl) +
		dimStyle.Render(fmt.Sprintf("  (%.2f%%)", sum.ReturnPct)) + "\n")
	b.WriteString(labelStyle.Render("已实现") + pnl(sum.RealizedPnl) + "\n")
	b.WriteString(labelStyle.Render("未实现") + pnl(sum.UnrealizedPnl) + "\n")
	row("成交笔数", fmt.Sprintf("%d", sum.TotalTrades))

	if len(positions) > 0 {
		b.WriteString("\n" + headerStyle.Render("开放仓位") + "\n")
		for _, p := range positions {
			line := fmt.Sprintf("  %-12s %-6s %10.2f @ %.4f  ", truncate(p.MarketID, 12), p.Outcome, p.Size, p.EntryPrice)
			b.WriteString(line + pnl(p.UnrealizedPnl))
			if p.Stale {
				b.WriteString(dimStyle.Render("  [无报价]"))
			}
			b.WriteString("\n")
		}
	}

	if len(trades) > 0 {
		b.WriteString("\n" + headerStyle.Render(fmt.Sprintf("最近成交（%d）", len(trades))) + "\n")
		for _, t := range trades {
			side := gainStyle.Render(string(t.Side))
			if t.Side == domain.SideSell {
				side = lossStyle.Render(string(t.Side))
			}
			b.WriteString(fmt.Sprintf("  %s %s %8.2f %-12s @ %.4f  %s\n",
				t.Timestamp.Format("01-02 15:04"), side, t.Size,
				truncate(t.MarketID, 12), t.Price, dimStyle.Render(truncate(t.SourceTrader, 10))))
		}
	}

	if len(traders) > 0 {
		b.WriteString("\n" + headerStyle.Render("被跟踪交易者") + "\n")
		for _, tr := range traders {
			name := tr.Nickname
			if name == "" {
				name = truncate(tr.Address, 10)
			}
			scanned := "从未"
			if tr.LastScannedAt != nil {
				scanned = tr.LastScannedAt.Format("01-02 15:04:05")
			}
			b.WriteString(fmt.Sprintf("  %-16s 跟单 %3d 笔  上次扫描 %s\n", name, tr.CopiedTrades, scanned))
		}
	}
	return b.String(), nil
}

func pnl(v float64) string {
	s := fmt.Sprintf("%+.2f", v)
	if v < 0 {
		return lossStyle.Render(s)
	}
	return gainStyle.Render(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// model bubbletea 模型：按固定间隔重新读取账本并刷新
type model struct {
	store      *ledger.Store
	interval   time.Duration
	tradeLimit int
	content    string
	err        error
}

type tickMsg time.Time

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(refresh(m), tick(m.interval))
}

type refreshMsg struct {
	content string
	err     error
}

func refresh(m model) tea.Cmd {
	return func() tea.Msg {
		content, err := render(m.store, m.tradeLimit)
		return refreshMsg{content: content, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(refresh(m), tick(m.interval))
	case refreshMsg:
		m.content = msg.content
		m.err = msg.err
	}
	return m, nil
}

func (m model) View() string {
	if m.err != nil {
		return lossStyle.Render(fmt.Sprintf("读取账本失败: %v", m.err)) + "\n"
	}
	if m.content == "" {
		return dimStyle.Render("加载中…") + "\n"
	}
	return m.content + dimStyle.Render("\n按 q 退出") + "\n"
}
