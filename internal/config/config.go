package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"TrendChannel/internal/calculator"
	"TrendChannel/internal/collector"
	"TrendChannel/internal/logger"
	"TrendChannel/internal/model"
	"TrendChannel/internal/strategy"
	"TrendChannel/internal/trend"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cast"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Data source providers.
const (
	ProviderBinance  = "binance"
	ProviderAnalyser = "analyser"
	ProviderMock     = "mock"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		Provider         string `yaml:"provider"`
		BaseURL          string `yaml:"base_url"`
		APIKey           string `yaml:"api_key"`
		SecretKey        string `yaml:"secret_key"`
		Symbol           string `yaml:"symbol"`
		AggregateMinutes int    `yaml:"aggregate_minutes"`
	} `yaml:"data_source"`
	Trend struct {
		IterationsCount    int          `yaml:"iterations_count"`
		Threshold          float64      `yaml:"threshold"`
		ShiftPercent       *float64     `yaml:"shift_percent"`
		EnableBand         *bool        `yaml:"enable_band"`
		EnableProlongation *bool        `yaml:"enable_prolongation"`
		Prolong            model.Period `yaml:"prolong"`
	} `yaml:"trend"`
	Strategy struct {
		Name   string         `yaml:"name"`
		Trends []model.Period `yaml:"trends"`
		ZigZag struct {
			Lookback model.Period `yaml:"lookback"`
			Pieces   int          `yaml:"pieces"`
		} `yaml:"zigzag"`
	} `yaml:"strategy"`
	Schedule struct {
		TrendCron  string `yaml:"trend_cron"`
		ZigZagCron string `yaml:"zigzag_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"redis"`
	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`
	Log   logger.Options `yaml:"log"`
	Proxy string         `yaml:"proxy"`
}

// Load reads config from a YAML file, then a .env file next to the process,
// then applies environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	str("TELEGRAM_CHAT_ID", &c.Telegram.ChatID)
	str("DATA_PROVIDER", &c.DataSource.Provider)
	str("DATA_BASE_URL", &c.DataSource.BaseURL)
	str("DATA_API_KEY", &c.DataSource.APIKey)
	str("DATA_SECRET_KEY", &c.DataSource.SecretKey)
	str("DATA_SYMBOL", &c.DataSource.Symbol)
	str("HTTPS_PROXY", &c.Proxy)
	str("CRON_TREND", &c.Schedule.TrendCron)
	str("CRON_ZIGZAG", &c.Schedule.ZigZagCron)
	str("SQLITE_PATH", &c.Database.SQLitePath)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("METRICS_LISTEN_ADDR", &c.Metrics.ListenAddr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)

	var errs error
	parse := func(key string, apply func(string) error) {
		if v := os.Getenv(key); v != "" {
			if err := apply(v); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s=%q: %w", key, v, err))
			}
		}
	}
	parse("DATA_AGGREGATE_MINUTES", func(v string) (err error) {
		c.DataSource.AggregateMinutes, err = cast.ToIntE(v)
		return err
	})
	parse("TREND_ITERATIONS_COUNT", func(v string) (err error) {
		c.Trend.IterationsCount, err = cast.ToIntE(v)
		return err
	})
	parse("TREND_THRESHOLD", func(v string) (err error) {
		c.Trend.Threshold, err = cast.ToFloat64E(v)
		return err
	})
	parse("TREND_SHIFT_PERCENT", func(v string) error {
		f, err := cast.ToFloat64E(v)
		c.Trend.ShiftPercent = &f
		return err
	})
	parse("TREND_ENABLE_BAND", func(v string) error {
		b, err := cast.ToBoolE(v)
		c.Trend.EnableBand = &b
		return err
	})
	parse("TREND_ENABLE_PROLONGATION", func(v string) error {
		b, err := cast.ToBoolE(v)
		c.Trend.EnableProlongation = &b
		return err
	})
	parse("REDIS_DB", func(v string) (err error) {
		c.Redis.DB, err = cast.ToIntE(v)
		return err
	})
	parse("REDIS_TTL", func(v string) (err error) {
		c.Redis.TTL, err = cast.ToDurationE(v)
		return err
	})
	return errs
}

func (c *Config) applyDefaults() {
	def := trend.DefaultConfig()
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = ProviderBinance
	}
	if c.DataSource.Symbol == "" {
		c.DataSource.Symbol = "BTCUSDT"
	}
	if c.DataSource.AggregateMinutes == 0 {
		c.DataSource.AggregateMinutes = 1
	}
	if c.Trend.IterationsCount == 0 {
		c.Trend.IterationsCount = def.IterationsCount
	}
	if c.Trend.Threshold == 0 {
		c.Trend.Threshold = def.Threshold
	}
	if c.Trend.ShiftPercent == nil {
		c.Trend.ShiftPercent = &def.ShiftPercent
	}
	if c.Trend.EnableBand == nil {
		c.Trend.EnableBand = &def.EnableBand
	}
	if c.Trend.EnableProlongation == nil {
		c.Trend.EnableProlongation = &def.EnableProlongation
	}
	if c.Strategy.Name == "" {
		c.Strategy.Name = "default"
	}
	if len(c.Strategy.Trends) == 0 {
		c.Strategy.Trends = append([]model.Period(nil), strategy.DefaultTrends...)
	}
	if c.Strategy.ZigZag.Lookback.Value == 0 {
		c.Strategy.ZigZag.Lookback = trend.DefaultZigZagLookback
	}
	if c.Strategy.ZigZag.Pieces == 0 {
		c.Strategy.ZigZag.Pieces = trend.DefaultZigZagPieces
	}
	if c.Schedule.TrendCron == "" {
		c.Schedule.TrendCron = "0 */15 * * * *"
	}
	if c.Schedule.ZigZagCron == "" {
		c.Schedule.ZigZagCron = "0 0 * * * *"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/trend_channel.db"
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 5 * time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// TrendConfig returns the engine configuration.
func (c *Config) TrendConfig() trend.Config {
	cfg := trend.DefaultConfig()
	cfg.IterationsCount = c.Trend.IterationsCount
	cfg.Threshold = c.Trend.Threshold
	if c.Trend.ShiftPercent != nil {
		cfg.ShiftPercent = *c.Trend.ShiftPercent
	}
	if c.Trend.EnableBand != nil {
		cfg.EnableBand = *c.Trend.EnableBand
	}
	if c.Trend.EnableProlongation != nil {
		cfg.EnableProlongation = *c.Trend.EnableProlongation
	}
	return cfg
}

// StrategyConfig returns the configured strategy.
func (c *Config) StrategyConfig() strategy.Strategy {
	return strategy.Strategy{Name: c.Strategy.Name, Trends: c.Strategy.Trends}
}

// Validate reports every missing or invalid field at once.
func (c *Config) Validate() error {
	var errs error
	if c.Telegram.BotToken == "" {
		errs = multierr.Append(errs, errors.New("telegram.bot_token is required"))
	}
	if c.Telegram.ChatID == "" {
		errs = multierr.Append(errs, errors.New("telegram.chat_id is required"))
	}

	switch c.DataSource.Provider {
	case ProviderBinance:
		if _, err := collector.Interval(c.DataSource.AggregateMinutes); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("data_source.aggregate_minutes: %w", err))
		}
	case ProviderAnalyser:
		if c.DataSource.BaseURL == "" {
			errs = multierr.Append(errs, errors.New("data_source.base_url is required for the analyser provider"))
		}
	case ProviderMock:
	default:
		errs = multierr.Append(errs, fmt.Errorf("data_source.provider %q is not one of binance, analyser, mock", c.DataSource.Provider))
	}
	if c.DataSource.AggregateMinutes <= 0 {
		errs = multierr.Append(errs, errors.New("data_source.aggregate_minutes must be positive"))
	}

	errs = multierr.Append(errs, c.TrendConfig().Validate())
	if c.Trend.Prolong.Value != 0 {
		errs = multierr.Append(errs, validPeriod("trend.prolong", c.Trend.Prolong))
	}
	for i, p := range c.Strategy.Trends {
		errs = multierr.Append(errs, validPeriod(fmt.Sprintf("strategy.trends[%d]", i), p))
	}
	errs = multierr.Append(errs, validPeriod("strategy.zigzag.lookback", c.Strategy.ZigZag.Lookback))
	if c.Strategy.ZigZag.Pieces < 1 {
		errs = multierr.Append(errs, errors.New("strategy.zigzag.pieces must be at least 1"))
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"schedule.trend_cron":  c.Schedule.TrendCron,
		"schedule.zigzag_cron": c.Schedule.ZigZagCron,
	} {
		if _, err := parser.Parse(spec); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errs
}

func validPeriod(name string, p model.Period) error {
	if p.Value <= 0 {
		return fmt.Errorf("%s: value must be positive, got %d", name, p.Value)
	}
	if _, err := calculator.Minutes(p); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
