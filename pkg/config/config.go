// Package config 加载并校验跟单配置。
// 优先级：配置文件 > 环境变量 > 默认值。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// 默认值
const (
	DefaultInitialBalance      = 100000.0
	DefaultCopyRatio           = 0.02
	DefaultScanIntervalSeconds = 300
	DefaultMinSizeIncrement    = 1.0
	DefaultMaxFetchRetries     = 3
	DefaultRetryBackoffMs      = 1000
	DefaultFetchTimeoutSeconds = 15
	DefaultTraderConcurrency   = 4
	DefaultDBPath              = "copybot.db"
	DefaultStateDir            = "state"
)

// TrackedTrader 配置中的一条被跟踪交易者
type TrackedTrader struct {
	Address  string `yaml:"address" json:"address"`
	Nickname string `yaml:"nickname" json:"nickname"`
}

// Config 应用配置
type Config struct {
	InitialBalance        float64         // 模拟账户初始资金（USDC）
	CopyRatio             float64         // 跟单比例，(0, 1]
	ScanIntervalSeconds   int             // 扫描间隔（秒）
	TrackedTraders        []TrackedTrader // 被跟踪交易者列表
	CopyExistingPositions bool            // 首次观测时是否跟单已有持仓（默认只建基线）
	MinSizeIncrement      float64         // 订单数量最小增量
	MaxFetchRetries       int             // 瞬时错误最大重试次数
	RetryBackoffMs        int             // 重试退避基准（毫秒）
	FetchTimeoutSeconds   int             // 单次请求超时（秒）
	TraderConcurrency     int             // 并行抓取的交易者数量上限
	DBPath                string          // 账本 sqlite 文件路径
	StateDir              string          // 运行时状态目录
	HTTPAddr              string          // 控制面监听地址（空则不启动）
	DataAPIURL            string          // Polymarket data API 地址
	GammaAPIURL           string          // Polymarket gamma API 地址
	LogLevel              string          // 日志级别
	LogFile               string          // 日志文件路径（可选）
}

// ConfigFile 表示 YAML 配置文件的结构
type ConfigFile struct {
	InitialBalance        *float64        `yaml:"initial_balance" json:"initial_balance"`
	CopyRatio             *float64        `yaml:"copy_ratio" json:"copy_ratio"`
	ScanIntervalSeconds   *int            `yaml:"scan_interval_seconds" json:"scan_interval_seconds"`
	TrackedTraders        []TrackedTrader `yaml:"tracked_traders" json:"tracked_traders"`
	CopyExistingPositions *bool           `yaml:"copy_existing_positions" json:"copy_existing_positions"`
	MinSizeIncrement      *float64        `yaml:"min_size_increment" json:"min_size_increment"`
	MaxFetchRetries       *int            `yaml:"max_fetch_retries" json:"max_fetch_retries"`
	RetryBackoffMs        *int            `yaml:"retry_backoff_ms" json:"retry_backoff_ms"`
	FetchTimeoutSeconds   *int            `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`
	TraderConcurrency     *int            `yaml:"trader_concurrency" json:"trader_concurrency"`
	DBPath                string          `yaml:"db_path" json:"db_path"`
	StateDir              string          `yaml:"state_dir" json:"state_dir"`
	HTTPAddr              string          `yaml:"http_addr" json:"http_addr"`
	DataAPIURL            string          `yaml:"data_api_url" json:"data_api_url"`
	GammaAPIURL           string          `yaml:"gamma_api_url" json:"gamma_api_url"`
	LogLevel              string          `yaml:"log_level" json:"log_level"`
	LogFile               string          `yaml:"log_file" json:"log_file"`
}

// Load 加载配置：filePath 为空时只用环境变量和默认值
func Load(filePath string) (*Config, error) {
	var cf ConfigFile
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	cfg := &Config{
		InitialBalance:        floatFromSources(cf.InitialBalance, "COPYBOT_INITIAL_BALANCE", DefaultInitialBalance),
		CopyRatio:             floatFromSources(cf.CopyRatio, "COPYBOT_COPY_RATIO", DefaultCopyRatio),
		ScanIntervalSeconds:   intFromSources(cf.ScanIntervalSeconds, "COPYBOT_SCAN_INTERVAL_SECONDS", DefaultScanIntervalSeconds),
		TrackedTraders:        cf.TrackedTraders,
		CopyExistingPositions: boolFromSources(cf.CopyExistingPositions, "COPYBOT_COPY_EXISTING_POSITIONS", false),
		MinSizeIncrement:      floatFromSources(cf.MinSizeIncrement, "COPYBOT_MIN_SIZE_INCREMENT", DefaultMinSizeIncrement),
		MaxFetchRetries:       intFromSources(cf.MaxFetchRetries, "COPYBOT_MAX_FETCH_RETRIES", DefaultMaxFetchRetries),
		RetryBackoffMs:        intFromSources(cf.RetryBackoffMs, "COPYBOT_RETRY_BACKOFF_MS", DefaultRetryBackoffMs),
		FetchTimeoutSeconds:   intFromSources(cf.FetchTimeoutSeconds, "COPYBOT_FETCH_TIMEOUT_SECONDS", DefaultFetchTimeoutSeconds),
		TraderConcurrency:     intFromSources(cf.TraderConcurrency, "COPYBOT_TRADER_CONCURRENCY", DefaultTraderConcurrency),
		DBPath:                stringFromSources(cf.DBPath, "COPYBOT_DB_PATH", DefaultDBPath),
		StateDir:              stringFromSources(cf.StateDir, "COPYBOT_STATE_DIR", DefaultStateDir),
		HTTPAddr:              stringFromSources(cf.HTTPAddr, "COPYBOT_HTTP_ADDR", ""),
		DataAPIURL:            stringFromSources(cf.DataAPIURL, "POLYMARKET_DATA_API_URL", ""),
		GammaAPIURL:           stringFromSources(cf.GammaAPIURL, "POLYMARKET_GAMMA_API_URL", ""),
		LogLevel:              stringFromSources(cf.LogLevel, "COPYBOT_LOG_LEVEL", "info"),
		LogFile:               stringFromSources(cf.LogFile, "COPYBOT_LOG_FILE", ""),
	}

	// 交易者也可通过环境变量追加（逗号分隔的地址列表）
	if extra := os.Getenv("COPYBOT_TRACKED_TRADERS"); extra != "" {
		for _, addr := range parseAddressList(extra) {
			cfg.TrackedTraders = append(cfg.TrackedTraders, TrackedTrader{Address: addr})
		}
	}

	// 地址统一小写，保证快照键一致
	for i := range cfg.TrackedTraders {
		cfg.TrackedTraders[i].Address = strings.ToLower(strings.TrimSpace(cfg.TrackedTraders[i].Address))
	}

	return cfg, nil
}

// Validate 校验配置，非法配置启动时直接失败
func (c *Config) Validate() error {
	if c.InitialBalance <= 0 {
		return fmt.Errorf("initial_balance 必须大于 0")
	}
	if c.CopyRatio <= 0 || c.CopyRatio > 1 {
		return fmt.Errorf("copy_ratio 必须在 (0, 1] 之间，当前 %v", c.CopyRatio)
	}
	if c.ScanIntervalSeconds <= 0 {
		return fmt.Errorf("scan_interval_seconds 必须大于 0")
	}
	if len(c.TrackedTraders) == 0 {
		return fmt.Errorf("至少需要配置一个被跟踪交易者")
	}
	seen := make(map[string]bool, len(c.TrackedTraders))
	for _, t := range c.TrackedTraders {
		if !common.IsHexAddress(t.Address) {
			return fmt.Errorf("无效的交易者地址: %q", t.Address)
		}
		if seen[t.Address] {
			return fmt.Errorf("重复的交易者地址: %s", t.Address)
		}
		seen[t.Address] = true
	}
	if c.MinSizeIncrement <= 0 {
		return fmt.Errorf("min_size_increment 必须大于 0")
	}
	if c.MaxFetchRetries < 0 {
		return fmt.Errorf("max_fetch_retries 不能为负数")
	}
	return nil
}

// ScanInterval 扫描间隔
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSeconds) * time.Second
}

// RetryBackoff 重试退避基准时长
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}

// FetchTimeout 单次请求超时
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// TraderAddresses 返回全部交易者地址（已小写）
func (c *Config) TraderAddresses() []string {
	out := make([]string, 0, len(c.TrackedTraders))
	for _, t := range c.TrackedTraders {
		out = append(out, t.Address)
	}
	return out
}

// parseAddressList 解析逗号分隔的地址列表
func parseAddressList(str string) []string {
	parts := strings.Split(str, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func stringFromSources(configValue, envKey, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return defaultValue
}

func intFromSources(configValue *int, envKey string, defaultValue int) int {
	if configValue != nil {
		return *configValue
	}
	if value := os.Getenv(envKey); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func floatFromSources(configValue *float64, envKey string, defaultValue float64) float64 {
	if configValue != nil {
		return *configValue
	}
	if value := os.Getenv(envKey); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func boolFromSources(configValue *bool, envKey string, defaultValue bool) bool {
	if configValue != nil {
		return *configValue
	}
	if value := os.Getenv(envKey); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
