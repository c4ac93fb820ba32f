package usecase

import (
	"sync"

	"github.com/spooky-finn/cryptowave/domain"
	"github.com/spooky-finn/cryptowave/strategy"
)

// Instrument owns all state of one (exchange, symbol) key. mu serializes
// every mutation of the synchronizer, the windows and the detector.
type Instrument struct {
	mu sync.Mutex

	key      domain.SymbolKey
	sync     *domain.OrderBookSynchronizer
	store    *domain.RollingWindowStore
	detector *strategy.WaveDetector

	// fetching is set while a snapshot request is in flight.
	fetching bool
}

func NewInstrument(
	key domain.SymbolKey,
	synchronizer *domain.OrderBookSynchronizer,
	store *domain.RollingWindowStore,
	detector *strategy.WaveDetector,
) *Instrument {
	return &Instrument{
		key:      key,
		sync:     synchronizer,
		store:    store,
		detector: detector,
	}
}

func (i *Instrument) Key() domain.SymbolKey {
	return i.key
}

// Store is safe to read concurrently; its buffers return copies.
func (i *Instrument) Store() *domain.RollingWindowStore {
	return i.store
}

func (i *Instrument) Status() domain.SyncStatus {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.sync.Status()
}

// BookSnapshot copies the local book. The second result is false unless the
// book is synchronized.
func (i *Instrument) BookSnapshot(limit int) (*domain.OrderBookSnapshot, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.sync.Status() != domain.SyncStatus_Synchronized {
		return nil, false
	}
	return i.sync.Book().TakeSnapshot(limit), true
}

// BookSummary is the top of a synchronized book and its size per side.
type BookSummary struct {
	BestBid   *domain.PriceLevel
	BestAsk   *domain.PriceLevel
	BidLevels int
	AskLevels int
}

func (i *Instrument) BookSummary() (BookSummary, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.sync.Status() != domain.SyncStatus_Synchronized {
		return BookSummary{}, false
	}

	book := i.sync.Book()
	var summary BookSummary
	if bid, ok := book.BestBid(); ok {
		summary.BestBid = &bid
	}
	if ask, ok := book.BestAsk(); ok {
		summary.BestAsk = &ask
	}
	summary.BidLevels, summary.AskLevels = book.Depth()

	return summary, true
}

func (i *Instrument) WaveState() (strategy.WaveAlertState, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.detector == nil {
		return strategy.WaveAlertState{}, false
	}
	return i.detector.State(), true
}
