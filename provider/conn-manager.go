package provider

import (
	"fmt"

	"github.com/spooky-finn/cryptowave/config"
	"github.com/spooky-finn/cryptowave/domain"
	"github.com/spooky-finn/cryptowave/infrastructure/logger"
	"github.com/spooky-finn/cryptowave/provider/binance"
	"github.com/spooky-finn/cryptowave/provider/kucoin"
	"github.com/spooky-finn/cryptowave/usecase"
)

var log = logger.New("conn-manager")

// Connection groups the collaborators of one configured exchange.
type Connection struct {
	Name    string
	Kind    string
	Feed    domain.FeedSource
	Binding *usecase.ExchangeBinding

	closers []func()
}

// ConnectionManager resolves the feed source, snapshot provider and sequence
// rules of every configured exchange.
type ConnectionManager struct {
	connections []*Connection
	byName      map[string]*Connection
}

func NewConnectionManager(exchanges []config.ExchangeConfig) (*ConnectionManager, error) {
	cm := &ConnectionManager{byName: make(map[string]*Connection, len(exchanges))}

	for _, ex := range exchanges {
		conn, err := newConnection(ex)
		if err != nil {
			return nil, fmt.Errorf("exchange %s: %w", ex.Name, err)
		}
		cm.connections = append(cm.connections, conn)
		cm.byName[ex.Name] = conn
		log.Infow("exchange configured", "exchange", ex.Name, "kind", ex.Kind, "symbols", len(ex.Symbols))
	}

	return cm, nil
}

func newConnection(ex config.ExchangeConfig) (*Connection, error) {
	symbols, err := ex.MarketSymbols()
	if err != nil {
		return nil, err
	}

	conn := &Connection{Name: ex.Name, Kind: ex.Kind}
	binding := &usecase.ExchangeBinding{
		Name:          ex.Name,
		SnapshotDepth: ex.SnapshotDepth,
	}

	switch ex.Kind {
	case config.KindBinance, config.KindBinanceFutures:
		market := binance.MarketSpot
		if ex.Kind == config.KindBinanceFutures {
			market = binance.MarketFutures
		}

		streamEndpoint := ex.StreamEndpoint
		if streamEndpoint == "" {
			streamEndpoint = market.StreamEndpoint()
		}
		snapshotEndpoint := ex.SnapshotEndpoint
		if snapshotEndpoint == "" {
			snapshotEndpoint = market.WSAPIEndpoint()
		}

		client := binance.NewBinanceStreamClient(streamEndpoint)
		syncAPI := binance.NewBinanceSyncAPI(snapshotEndpoint)

		conn.Feed = binance.NewBinanceStreamAPI(ex.Name, market, client, symbols)
		conn.closers = append(conn.closers, client.Close, func() { _ = syncAPI.Close() })
		binding.Mapper = domain.NewSymbolMapper("", symbols)
		binding.Validator = market.DepthUpdateValidator()
		binding.SyncAPI = syncAPI

	case config.KindKucoin:
		syncAPI := kucoin.NewKucoinSyncAPI(ex.SnapshotEndpoint, kucoin.Credentials{
			Key:        ex.APIKey,
			Secret:     ex.APISecret,
			Passphrase: ex.APIPassphrase,
		})
		client := kucoin.NewKucoinStreamClient(syncAPI)

		conn.Feed = kucoin.NewKucoinStreamAPI(ex.Name, client, symbols)
		conn.closers = append(conn.closers, client.Close)
		binding.Mapper = domain.NewSymbolMapper("-", symbols)
		binding.Validator = kucoin.KucoinDepthUpdateValidator{}
		binding.SyncAPI = syncAPI

	default:
		return nil, fmt.Errorf("unknown exchange kind %q", ex.Kind)
	}

	conn.Binding = binding
	return conn, nil
}

func (cm *ConnectionManager) Connections() []*Connection {
	return cm.connections
}

func (cm *ConnectionManager) Bindings() []*usecase.ExchangeBinding {
	out := make([]*usecase.ExchangeBinding, 0, len(cm.connections))
	for _, conn := range cm.connections {
		out = append(out, conn.Binding)
	}
	return out
}

func (cm *ConnectionManager) StreamAPI(exchange string) (domain.FeedSource, error) {
	conn, ok := cm.byName[exchange]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, exchange)
	}
	return conn.Feed, nil
}

func (cm *ConnectionManager) SyncAPI(exchange string) (domain.ProviderSyncAPI, error) {
	conn, ok := cm.byName[exchange]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, exchange)
	}
	return conn.Binding.SyncAPI, nil
}

// SyncAPIs maps exchange names to their snapshot providers.
func (cm *ConnectionManager) SyncAPIs() map[string]domain.ProviderSyncAPI {
	out := make(map[string]domain.ProviderSyncAPI, len(cm.connections))
	for _, conn := range cm.connections {
		out[conn.Name] = conn.Binding.SyncAPI
	}
	return out
}

func (cm *ConnectionManager) Close() {
	for _, conn := range cm.connections {
		for _, c := range conn.closers {
			c()
		}
	}
}
