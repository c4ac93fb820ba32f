package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/cryptowave/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
log_level: debug
debug: true
rpc_addr: ":6000"
exchanges:
  - name: binance
    kind: binance
    symbols: [btc_usdt, eth_usdt]
    snapshot_depth: 500
  - name: kucoin
    kind: kucoin
    symbols: [xmr_btc]
window:
  quote: 2m
  max_staleness: 2s
sync:
  buffer_policy: discard
strategy:
  default_price_gap: 0.02
  symbols:
    btc_usdt:
      price_gap: 0.03
      price_wave: true
    eth_usdt:
      price_wave: false
notify:
  dingtalk:
    webhook: https://oapi.dingtalk.com/robot/send?access_token=x
    secret: SEC
  kafka:
    brokers: [localhost:9092]
    topic: alerts
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, DebugMode)
	assert.Equal(t, ":6000", cfg.RPCAddr)
	assert.Equal(t, ":8080", cfg.MetricsAddr)

	require.Len(t, cfg.Exchanges, 2)
	assert.Equal(t, KindBinance, cfg.Exchanges[0].Kind)
	assert.Equal(t, 500, cfg.Exchanges[0].SnapshotDepth)
	symbols, err := cfg.Exchanges[0].MarketSymbols()
	require.NoError(t, err)
	assert.Equal(t, "eth_usdt", symbols[1].String())

	window := cfg.WindowConfig()
	assert.Equal(t, 2*time.Minute, window.Quote)
	assert.Equal(t, domain.DefaultWindow, window.Depth)
	assert.Equal(t, 2*time.Second, window.MaxStaleness)

	opts := cfg.SynchronizerOptions()
	assert.Equal(t, domain.BufferPolicy_Discard, opts.BufferPolicy)
	assert.Equal(t, domain.DefaultMaxBufferedDeltas, opts.MaxBufferedDeltas)

	assert.Equal(t, 500*time.Millisecond, cfg.Sync.SnapshotRetryMin)
	assert.Equal(t, 256, cfg.Notify.QueueSize)
	assert.Equal(t, "SEC", cfg.Notify.DingTalk.Secret)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Notify.Kafka.Brokers)

	sc := cfg.StrategyConfig()
	btc, _ := domain.NewMarketSymbol("btc", "usdt")
	eth, _ := domain.NewMarketSymbol("eth", "usdt")
	wc, enabled := sc.For(*btc)
	assert.True(t, enabled)
	assert.True(t, decimal.NewFromFloat(0.03).Equal(wc.Threshold))
	_, enabled = sc.For(*eth)
	assert.False(t, enabled)
	assert.Equal(t, 60*time.Second, sc.MinSpan)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CRYPTOWAVE_LOG_LEVEL", "error")
	t.Setenv("CRYPTOWAVE_NOTIFY_QUEUE_SIZE", "16")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, 16, cfg.Notify.QueueSize)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"NoExchanges", "log_level: info\n"},
		{"UnknownKind", "exchanges:\n  - {name: okx, kind: okx, symbols: [btc_usdt]}\n"},
		{"BadSymbol", "exchanges:\n  - {name: binance, kind: binance, symbols: [btcusdt]}\n"},
		{"DuplicateName", "exchanges:\n  - {name: b, kind: binance, symbols: [btc_usdt]}\n  - {name: b, kind: kucoin, symbols: [btc_usdt]}\n"},
		{"DuplicateNameCase", "exchanges:\n  - {name: Binance, kind: binance, symbols: [btc_usdt]}\n  - {name: binance, kind: binance_futures, symbols: [btc_usdt]}\n"},
		{"BadLogLevel", "log_level: loud\nexchanges:\n  - {name: b, kind: binance, symbols: [btc_usdt]}\n"},
		{"KafkaWithoutTopic", "exchanges:\n  - {name: b, kind: binance, symbols: [btc_usdt]}\nnotify:\n  kafka:\n    brokers: [localhost:9092]\n"},
		{"BadStrategySymbol", "exchanges:\n  - {name: b, kind: binance, symbols: [btc_usdt]}\nstrategy:\n  symbols:\n    btc: {price_wave: true}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
