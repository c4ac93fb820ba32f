package usecase

import (
	"context"
	"fmt"

	"github.com/spooky-finn/cryptowave/domain"
	"github.com/spooky-finn/cryptowave/strategy"
)

type OrderBookSnapshotUseCase struct {
	storage *InstrumentStorage
	apis    map[string]domain.ProviderSyncAPI
}

func NewOrderBookSnapshotUseCase(
	storage *InstrumentStorage,
	apis map[string]domain.ProviderSyncAPI,
) *OrderBookSnapshotUseCase {
	return &OrderBookSnapshotUseCase{
		storage: storage,
		apis:    apis,
	}
}

// GetOrderBookSnapshot returns the local book if it is synchronized, otherwise
// the snapshot from the provider api.
func (o *OrderBookSnapshotUseCase) GetOrderBookSnapshot(
	ctx context.Context, exchange string, symbol *domain.MarketSymbol, limit int,
) (*domain.OrderBookSnapshot, error) {
	api, ok := o.apis[exchange]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, exchange)
	}

	if inst, err := o.storage.Get(exchange, symbol); err == nil {
		if snapshot, ok := inst.BookSnapshot(limit); ok {
			return snapshot, nil
		}
		log.Debugw("local order book is not synchronized, provider snapshot returned",
			"exchange", exchange, "symbol", symbol.String())
	}

	snapshot, err := api.OrderBookSnapshot(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	snapshot.Source = domain.OrderBookSource_Provider
	return snapshot, nil
}

// GetBestQuotes returns the best-quote window of an instrument, oldest first.
func (o *OrderBookSnapshotUseCase) GetBestQuotes(
	exchange string, symbol *domain.MarketSymbol,
) ([]domain.Sample[domain.BestQuote], error) {
	inst, err := o.storage.Get(exchange, symbol)
	if err != nil {
		return nil, err
	}
	return inst.Store().BestQuotes(), nil
}

type InstrumentInfo struct {
	Key         domain.SymbolKey
	Status      domain.SyncStatus
	WaveEnabled bool
	Wave        strategy.WaveAlertState
	// Book is nil unless the book is synchronized.
	Book *BookSummary
}

// Instruments lists every instrument created so far, sorted by key.
func (o *OrderBookSnapshotUseCase) Instruments() []InstrumentInfo {
	all := o.storage.All()
	out := make([]InstrumentInfo, 0, len(all))
	for _, inst := range all {
		wave, enabled := inst.WaveState()
		info := InstrumentInfo{
			Key:         inst.Key(),
			Status:      inst.Status(),
			WaveEnabled: enabled,
			Wave:        wave,
		}
		if summary, ok := inst.BookSummary(); ok {
			info.Book = &summary
		}
		out = append(out, info)
	}
	return out
}
