// Package config loads the YAML application config and maps it onto the
// resolved domain settings the engines consume.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"martingale-lab/internal/domain"
)

// Config is the full application configuration.
type Config struct {
	Mode    string `mapstructure:"mode"` // paper | live
	Logging Logging
	Metrics Metrics
	Feed    Feed
	Storage Storage
	Account Account
	Risk    Risk

	// Sequential runs one instance at a time in listed order.
	Sequential bool
	Instances  []Instance
}

// Logging configures the zap logger.
type Logging struct {
	Level   string
	Console bool
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Addr string // empty disables the listener
}

// Feed configures the websocket trade stream.
type Feed struct {
	Endpoint string
	Symbols  []string
}

// Storage holds the database DSNs. Empty DSNs disable the layer; the
// in-memory stores take over.
type Storage struct {
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
}

// Account configures the paper venue.
type Account struct {
	InitialBalance float64 `mapstructure:"initial_balance"`
	SlippageBps    float64 `mapstructure:"slippage_bps"`
}

// Risk mirrors domain.RiskLimits in config form.
type Risk struct {
	MaxConcurrentCycles    int     `mapstructure:"max_concurrent_cycles"`
	MaxCyclesPerDay        int     `mapstructure:"max_cycles_per_day"`
	DailyLossLimit         float64 `mapstructure:"daily_loss_limit"`
	DailyProfitTarget      float64 `mapstructure:"daily_profit_target"`
	MaxDrawdownPct         float64 `mapstructure:"max_drawdown_pct"`
	EmergencyLossThreshold float64 `mapstructure:"emergency_loss_threshold"`
	EmergencyDrawdownPct   float64 `mapstructure:"emergency_drawdown_pct"`
}

// Sizing mirrors domain.SizingConfig in config form.
type Sizing struct {
	Mode      string
	BaseValue float64 `mapstructure:"base_value"`
	MinUnits  float64 `mapstructure:"min_units"`
	MaxUnits  float64 `mapstructure:"max_units"`
	Policy    string
}

// Instance configures one (variant, symbol) strategy instance.
type Instance struct {
	Variant string
	Symbol  string

	// ZoneCenter 0 means "first observed price".
	ZoneCenter float64 `mapstructure:"zone_center"`

	MaxLegs           int       `mapstructure:"max_legs"`
	Distances         []float64 // percent
	SizeMultipliers   []float64 `mapstructure:"size_multipliers"`
	TakeProfits       []float64 `mapstructure:"take_profits"`
	StopLosses        []float64 `mapstructure:"stop_losses"`
	TrailingTriggers  []float64 `mapstructure:"trailing_triggers"`
	TrailingDistances []float64 `mapstructure:"trailing_distances"`
	TrailingEnabled   bool      `mapstructure:"trailing_enabled"`

	BreakoutThresholdPct  float64 `mapstructure:"breakout_threshold_pct"`
	ReversionTolerancePct float64 `mapstructure:"reversion_tolerance_pct"`

	MinNetProfit float64 `mapstructure:"min_net_profit"`
	MaxNetLoss   float64 `mapstructure:"max_net_loss"`

	Sizing      Sizing
	RetryPolicy string `mapstructure:"retry_policy"`
	Completion  string
	CooldownSec int `mapstructure:"cooldown_sec"`
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "paper")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", false)
	v.SetDefault("account.initial_balance", 10000.0)
	v.SetDefault("account.slippage_bps", 0.0)
	v.SetDefault("feed.endpoint", "wss://stream.binance.com:9443/stream")
}

// RiskLimits converts the risk section to domain form.
func (c *Config) RiskLimits() domain.RiskLimits {
	return domain.RiskLimits{
		MaxConcurrentCycles:    c.Risk.MaxConcurrentCycles,
		MaxCyclesPerDay:        c.Risk.MaxCyclesPerDay,
		DailyLossLimit:         c.Risk.DailyLossLimit,
		DailyProfitTarget:      c.Risk.DailyProfitTarget,
		MaxDrawdownPct:         c.Risk.MaxDrawdownPct,
		EmergencyLossThreshold: c.Risk.EmergencyLossThreshold,
		EmergencyDrawdownPct:   c.Risk.EmergencyDrawdownPct,
	}
}

// Settings converts and validates every configured instance.
func (c *Config) Settings() ([]domain.StrategySettings, error) {
	if len(c.Instances) == 0 {
		return nil, fmt.Errorf("no instances configured")
	}

	settings := make([]domain.StrategySettings, 0, len(c.Instances))
	for i, inst := range c.Instances {
		s, err := inst.toSettings()
		if err != nil {
			return nil, fmt.Errorf("instance %d (%s/%s): %w", i, inst.Variant, inst.Symbol, err)
		}
		settings = append(settings, s)
	}
	return settings, nil
}

func (inst *Instance) toSettings() (domain.StrategySettings, error) {
	s := domain.StrategySettings{
		Variant:               domain.Variant(inst.Variant),
		Symbol:                inst.Symbol,
		MaxLegs:               inst.MaxLegs,
		Distances:             inst.Distances,
		SizeMultipliers:       inst.SizeMultipliers,
		TakeProfits:           inst.TakeProfits,
		StopLosses:            inst.StopLosses,
		TrailingTriggers:      inst.TrailingTriggers,
		TrailingDistances:     inst.TrailingDistances,
		TrailingEnabled:       inst.TrailingEnabled,
		BreakoutThresholdPct:  inst.BreakoutThresholdPct,
		ReversionTolerancePct: inst.ReversionTolerancePct,
		MinNetProfit:          inst.MinNetProfit,
		MaxNetLoss:            inst.MaxNetLoss,
		Sizing: domain.SizingConfig{
			Mode:      domain.SizingMode(inst.Sizing.Mode),
			BaseValue: inst.Sizing.BaseValue,
			MinUnits:  inst.Sizing.MinUnits,
			MaxUnits:  inst.Sizing.MaxUnits,
			Policy:    domain.SizingPolicy(inst.Sizing.Policy),
		},
		RetryPolicy: domain.OrderRetryPolicy(inst.RetryPolicy),
		Completion:  domain.CompletionPolicy(inst.Completion),
		CooldownSec: inst.CooldownSec,
	}
	if inst.ZoneCenter > 0 {
		center := inst.ZoneCenter
		s.ZoneCenter = &center
	}
	if s.RetryPolicy == "" {
		s.RetryPolicy = domain.RetryNextTick
	}
	if s.Completion == "" {
		s.Completion = domain.CompletionRestart
	}
	if s.Sizing.Policy == "" {
		s.Sizing.Policy = domain.SizingReject
	}

	s.Resolve()
	if err := s.Validate(); err != nil {
		return domain.StrategySettings{}, err
	}
	return s, nil
}
