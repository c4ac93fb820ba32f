package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/spooky-finn/cryptowave/domain"
	"github.com/spooky-finn/cryptowave/strategy"
)

// DebugMode enables verbose diagnostics in the providers.
var DebugMode = false

const EnvPrefix = "CRYPTOWAVE"

const (
	KindBinance        = "binance"
	KindBinanceFutures = "binance_futures"
	KindKucoin         = "kucoin"
)

type Config struct {
	LogLevel    string           `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	Debug       bool             `mapstructure:"debug"`
	MetricsAddr string           `mapstructure:"metrics_addr"`
	RPCAddr     string           `mapstructure:"rpc_addr"`
	Exchanges   []ExchangeConfig `mapstructure:"exchanges" validate:"required,min=1,dive"`
	Window      WindowConfig     `mapstructure:"window"`
	Sync        SyncConfig       `mapstructure:"sync"`
	Strategy    StrategyConfig   `mapstructure:"strategy"`
	Notify      NotifyConfig     `mapstructure:"notify"`
}

type ExchangeConfig struct {
	Name             string   `mapstructure:"name" validate:"required"`
	Kind             string   `mapstructure:"kind" validate:"required,oneof=binance binance_futures kucoin"`
	Symbols          []string `mapstructure:"symbols" validate:"required,min=1,dive,required"`
	StreamEndpoint   string   `mapstructure:"stream_endpoint" validate:"omitempty,url"`
	SnapshotEndpoint string   `mapstructure:"snapshot_endpoint" validate:"omitempty,url"`
	SnapshotDepth    int      `mapstructure:"snapshot_depth" validate:"gte=0,lte=5000"`
	APIKey           string   `mapstructure:"api_key"`
	APISecret        string   `mapstructure:"api_secret"`
	APIPassphrase    string   `mapstructure:"api_passphrase"`
}

type WindowConfig struct {
	Depth        time.Duration `mapstructure:"depth" validate:"gt=0"`
	Quote        time.Duration `mapstructure:"quote" validate:"gt=0"`
	Trade        time.Duration `mapstructure:"trade" validate:"gt=0"`
	Kline        time.Duration `mapstructure:"kline" validate:"gt=0"`
	MaxStaleness time.Duration `mapstructure:"max_staleness" validate:"gt=0"`
}

type SyncConfig struct {
	BufferPolicy      string        `mapstructure:"buffer_policy" validate:"oneof=buffer discard"`
	MaxBufferedDeltas int           `mapstructure:"max_buffered_deltas" validate:"gt=0"`
	SnapshotRetryMin  time.Duration `mapstructure:"snapshot_retry_min" validate:"gt=0"`
	SnapshotRetryMax  time.Duration `mapstructure:"snapshot_retry_max" validate:"gtefield=SnapshotRetryMin"`
}

type SymbolStrategyConfig struct {
	PriceGap  float64 `mapstructure:"price_gap" validate:"gte=0,lt=1"`
	PriceWave bool    `mapstructure:"price_wave"`
}

type StrategyConfig struct {
	MinSpan         time.Duration                   `mapstructure:"min_span" validate:"gt=0"`
	MinRenotify     time.Duration                   `mapstructure:"min_renotify" validate:"gte=0"`
	DefaultPriceGap float64                         `mapstructure:"default_price_gap" validate:"gt=0,lt=1"`
	Symbols         map[string]SymbolStrategyConfig `mapstructure:"symbols" validate:"dive"`
}

type DingTalkConfig struct {
	Webhook string `mapstructure:"webhook" validate:"omitempty,url"`
	Secret  string `mapstructure:"secret"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic" validate:"required_with=Brokers"`
}

type NotifyConfig struct {
	QueueSize int            `mapstructure:"queue_size" validate:"gt=0"`
	Timeout   time.Duration  `mapstructure:"timeout" validate:"gt=0"`
	DingTalk  DingTalkConfig `mapstructure:"dingtalk"`
	Kafka     KafkaConfig    `mapstructure:"kafka"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("debug", false)
	v.SetDefault("metrics_addr", ":8080")
	v.SetDefault("rpc_addr", ":50051")

	v.SetDefault("window.depth", domain.DefaultWindow)
	v.SetDefault("window.quote", domain.DefaultWindow)
	v.SetDefault("window.trade", domain.DefaultWindow)
	v.SetDefault("window.kline", domain.DefaultWindow)
	v.SetDefault("window.max_staleness", domain.DefaultMaxStaleness)

	v.SetDefault("sync.buffer_policy", string(domain.BufferPolicy_Buffer))
	v.SetDefault("sync.max_buffered_deltas", domain.DefaultMaxBufferedDeltas)
	v.SetDefault("sync.snapshot_retry_min", 500*time.Millisecond)
	v.SetDefault("sync.snapshot_retry_max", 30*time.Second)

	v.SetDefault("strategy.min_span", strategy.DefaultMinSpan)
	v.SetDefault("strategy.min_renotify", strategy.DefaultMinRenotify)
	v.SetDefault("strategy.default_price_gap", 0.01)

	v.SetDefault("notify.queue_size", 256)
	v.SetDefault("notify.timeout", 5*time.Second)
	v.SetDefault("notify.dingtalk.webhook", "")
	v.SetDefault("notify.dingtalk.secret", "")
	v.SetDefault("notify.kafka.topic", "")
}

// Load reads the YAML file at path (optional), a .env file from the working
// directory (optional) and CRYPTOWAVE_* environment variables, in increasing
// order of precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	DebugMode = cfg.Debug
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	names := make(map[string]bool, len(c.Exchanges))
	for _, ex := range c.Exchanges {
		// names differing only in case would be ambiguous to rpc callers
		name := strings.ToLower(ex.Name)
		if names[name] {
			return fmt.Errorf("invalid config: duplicate exchange %q", ex.Name)
		}
		names[name] = true

		if _, err := ex.MarketSymbols(); err != nil {
			return fmt.Errorf("invalid config: exchange %s: %w", ex.Name, err)
		}
	}

	for s := range c.Strategy.Symbols {
		if _, err := domain.NewMarketSymbolFromString(s); err != nil {
			return fmt.Errorf("invalid config: strategy symbol: %w", err)
		}
	}

	return nil
}

func (e ExchangeConfig) MarketSymbols() ([]*domain.MarketSymbol, error) {
	out := make([]*domain.MarketSymbol, 0, len(e.Symbols))
	for _, s := range e.Symbols {
		symbol, err := domain.NewMarketSymbolFromString(s)
		if err != nil {
			return nil, err
		}
		out = append(out, symbol)
	}
	return out, nil
}

func (c *Config) WindowConfig() domain.WindowConfig {
	return domain.WindowConfig{
		Depth:        c.Window.Depth,
		Quote:        c.Window.Quote,
		Trade:        c.Window.Trade,
		Kline:        c.Window.Kline,
		MaxStaleness: c.Window.MaxStaleness,
	}
}

func (c *Config) SynchronizerOptions() domain.SynchronizerOptions {
	return domain.SynchronizerOptions{
		BufferPolicy:      domain.BufferPolicy(c.Sync.BufferPolicy),
		MaxBufferedDeltas: c.Sync.MaxBufferedDeltas,
	}
}

// StrategyConfig assumes Validate has accepted the symbol names.
func (c *Config) StrategyConfig() strategy.Config {
	out := strategy.Config{
		MinSpan:         c.Strategy.MinSpan,
		MinRenotify:     c.Strategy.MinRenotify,
		DefaultPriceGap: decimal.NewFromFloat(c.Strategy.DefaultPriceGap),
		Symbols:         make(map[domain.MarketSymbol]strategy.SymbolConfig, len(c.Strategy.Symbols)),
	}

	for s, sc := range c.Strategy.Symbols {
		symbol, err := domain.NewMarketSymbolFromString(s)
		if err != nil {
			continue
		}
		out.Symbols[*symbol] = strategy.SymbolConfig{
			PriceGap:  decimal.NewFromFloat(sc.PriceGap),
			PriceWave: sc.PriceWave,
		}
	}

	return out
}
