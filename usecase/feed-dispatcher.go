package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/spooky-finn/cryptowave/domain"
	"github.com/spooky-finn/cryptowave/infrastructure/logger"
	promclient "github.com/spooky-finn/cryptowave/infrastructure/prometheus"
	"github.com/spooky-finn/cryptowave/strategy"
)

var log = logger.New("dispatcher")

const (
	DefaultSnapshotRetryMin = 500 * time.Millisecond
	DefaultSnapshotRetryMax = 30 * time.Second
	DefaultSnapshotDepth    = 1000

	snapshotTimeout = 10 * time.Second
)

// ExchangeBinding is everything the dispatcher needs to know about one
// configured exchange connection.
type ExchangeBinding struct {
	Name          string
	Mapper        *domain.SymbolMapper
	Validator     domain.IDepthUpdateValidator
	SyncAPI       domain.ProviderSyncAPI
	SnapshotDepth int
}

type DispatcherConfig struct {
	Window           domain.WindowConfig
	Sync             domain.SynchronizerOptions
	Strategy         strategy.Config
	SnapshotRetryMin time.Duration
	SnapshotRetryMax time.Duration
}

type AlertNotifier interface {
	Notify(alert *domain.Alert) bool
}

type DispatcherOption func(*FeedDispatcher)

// WithDispatcherClock replaces the wall clock used by the window stores.
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *FeedDispatcher) {
		d.now = now
	}
}

// FeedDispatcher routes decoded events to the instrument owning their
// (exchange, symbol) key, creating instruments lazily. It also owns snapshot
// scheduling: whenever a book is unsynchronized a fetch is started in the
// background and retried with backoff until it succeeds.
type FeedDispatcher struct {
	cfg       DispatcherConfig
	exchanges map[string]*ExchangeBinding
	storage   *InstrumentStorage
	notifier  AlertNotifier
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewFeedDispatcher(
	cfg DispatcherConfig,
	exchanges []*ExchangeBinding,
	notifier AlertNotifier,
	opts ...DispatcherOption,
) *FeedDispatcher {
	if cfg.SnapshotRetryMin <= 0 {
		cfg.SnapshotRetryMin = DefaultSnapshotRetryMin
	}
	if cfg.SnapshotRetryMax < cfg.SnapshotRetryMin {
		cfg.SnapshotRetryMax = DefaultSnapshotRetryMax
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &FeedDispatcher{
		cfg:       cfg,
		exchanges: make(map[string]*ExchangeBinding, len(exchanges)),
		storage:   NewInstrumentStorage(),
		notifier:  notifier,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, ex := range exchanges {
		if ex.SnapshotDepth <= 0 {
			ex.SnapshotDepth = DefaultSnapshotDepth
		}
		d.exchanges[ex.Name] = ex
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *FeedDispatcher) Storage() *InstrumentStorage {
	return d.storage
}

// Run dispatches events until ctx is done or events is closed.
func (d *FeedDispatcher) Run(ctx context.Context, events <-chan domain.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := d.Dispatch(ev); err != nil && !errors.Is(err, domain.ErrUnknownSymbol) {
				log.Debugw("event not applied", "exchange", ev.Exchange, "symbol", ev.Symbol, "error", err)
			}
		}
	}
}

// Dispatch applies one event. Unknown symbols return ErrUnknownSymbol and a
// sequence gap returns an error wrapping ErrSequenceGap; neither is fatal.
func (d *FeedDispatcher) Dispatch(ev domain.Event) error {
	binding, ok := d.exchanges[ev.Exchange]
	if !ok {
		promclient.UnknownSymbolTotal.WithLabelValues(ev.Exchange).Inc()
		log.Debugw("event from unknown exchange dropped", "exchange", ev.Exchange, "symbol", ev.Symbol)
		return fmt.Errorf("%w: exchange %q", domain.ErrUnknownSymbol, ev.Exchange)
	}

	symbol, ok := binding.Mapper.Resolve(ev.Symbol)
	if !ok {
		promclient.UnknownSymbolTotal.WithLabelValues(ev.Exchange).Inc()
		log.Debugw("event for unknown symbol dropped", "exchange", ev.Exchange, "symbol", ev.Symbol)
		return fmt.Errorf("%w: %s %q", domain.ErrUnknownSymbol, ev.Exchange, ev.Symbol)
	}

	key := domain.NewSymbolKey(binding.Name, &symbol)
	inst, created := d.storage.GetOrCreate(key, func() *Instrument {
		return d.newInstrument(key, binding)
	})
	if created {
		log.Infow("instrument created", "key", key.String())
	}

	switch p := ev.Payload.(type) {
	case *domain.BookDelta:
		return d.onDelta(inst, binding, p)
	case *domain.BestQuote:
		d.onBestQuote(inst, ev.EventTime, p)
	case *domain.Trade:
		d.record(inst, domain.ChannelTrades, inst.store.UpdateTrade(ev.EventTime, *p))
	case *domain.Candle:
		d.record(inst, domain.ChannelKline, inst.store.UpdateKline(ev.EventTime, *p))
	default:
		return fmt.Errorf("unsupported payload %T", ev.Payload)
	}

	return nil
}

func (d *FeedDispatcher) newInstrument(key domain.SymbolKey, binding *ExchangeBinding) *Instrument {
	var detector *strategy.WaveDetector
	if wc, enabled := d.cfg.Strategy.For(key.Symbol); enabled {
		detector = strategy.NewWaveDetector(key, wc)
	}

	return NewInstrument(
		key,
		domain.NewOrderBookSynchronizer(key, binding.Validator, d.cfg.Sync),
		domain.NewRollingWindowStore(key, d.cfg.Window, domain.WithClock(d.now)),
		detector,
	)
}

func (d *FeedDispatcher) onDelta(inst *Instrument, binding *ExchangeBinding, delta *domain.BookDelta) error {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	before := inst.sync.Status()
	update, err := inst.sync.ApplyDelta(delta)

	switch update.Outcome {
	case domain.Outcome_Buffered:
		if update.Dropped {
			promclient.BufferOverflowTotal.WithLabelValues(inst.key.Exchange, inst.key.Symbol.String()).Inc()
			log.Warnw("pending delta buffer full, oldest delta dropped", "key", inst.key.String())
		}
	case domain.Outcome_Applied:
		d.recordDepth(inst, binding, update)
	case domain.Outcome_Resync:
		d.onResync(inst, err)
	}

	d.trackSynchronized(inst.key, before, inst.sync.Status())
	d.scheduleSnapshot(inst, binding)

	return err
}

func (d *FeedDispatcher) onResync(inst *Instrument, err error) {
	promclient.ResyncsTotal.WithLabelValues(inst.key.Exchange, inst.key.Symbol.String()).Inc()
	log.Warnw("order book resync", "key", inst.key.String(), "error", err)
}

func (d *FeedDispatcher) trackSynchronized(key domain.SymbolKey, before, after domain.SyncStatus) {
	switch {
	case before != domain.SyncStatus_Synchronized && after == domain.SyncStatus_Synchronized:
		promclient.SynchronizedBooksGauge.WithLabelValues(key.Exchange).Inc()
		log.Infow("order book synchronized", "key", key.String())
	case before == domain.SyncStatus_Synchronized && after != domain.SyncStatus_Synchronized:
		promclient.SynchronizedBooksGauge.WithLabelValues(key.Exchange).Dec()
	}
}

// recordDepth feeds an applied delta to the depth windows. The first delta
// after a snapshot records the top of the whole book.
func (d *FeedDispatcher) recordDepth(inst *Instrument, binding *ExchangeBinding, update domain.BookUpdate) {
	var bids, asks []domain.PriceLevel

	if update.Forced {
		book := inst.sync.Book()
		bids, asks = book.Bids(binding.SnapshotDepth), book.Asks(binding.SnapshotDepth)
	} else {
		for _, c := range update.Changes {
			level := domain.PriceLevel{Price: c.Price, Quantity: c.Quantity}
			if c.Side == domain.BookSideBid {
				bids = append(bids, level)
			} else {
				asks = append(asks, level)
			}
		}
	}

	d.record(inst, domain.ChannelDepth, inst.store.UpdateDepth(update.Delta.EventTime, bids, asks))
}

func (d *FeedDispatcher) onBestQuote(inst *Instrument, eventTime time.Time, quote *domain.BestQuote) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if admission := inst.store.UpdateBestQuote(eventTime, *quote); admission != domain.Admission_Admitted {
		d.record(inst, domain.ChannelBookTicker, admission)
		return
	}
	if inst.detector == nil {
		return
	}

	alert := inst.detector.Execute(inst.store.BestQuotes())
	if alert == nil {
		return
	}

	promclient.AlertsTotal.WithLabelValues(inst.key.Exchange, inst.key.Symbol.String()).Inc()
	d.notifier.Notify(alert)
}

func (d *FeedDispatcher) record(inst *Instrument, channel domain.Channel, admission domain.Admission) {
	switch admission {
	case domain.Admission_Stale:
		promclient.StaleEventsTotal.WithLabelValues(inst.key.Exchange, string(channel)).Inc()
	case domain.Admission_OutOfOrder:
		promclient.OutOfOrderEventsTotal.WithLabelValues(inst.key.Exchange, string(channel)).Inc()
	}
}

// scheduleSnapshot starts a background fetch if the book waits for one and no
// fetch is in flight. Caller holds inst.mu.
func (d *FeedDispatcher) scheduleSnapshot(inst *Instrument, binding *ExchangeBinding) {
	if inst.fetching || inst.sync.Status() != domain.SyncStatus_Unsynchronized {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	inst.fetching = true
	d.wg.Add(1)
	go d.fetchSnapshot(inst, binding)
}

func (d *FeedDispatcher) fetchSnapshot(inst *Instrument, binding *ExchangeBinding) {
	defer d.wg.Done()

	b := &backoff.Backoff{
		Min:    d.cfg.SnapshotRetryMin,
		Max:    d.cfg.SnapshotRetryMax,
		Factor: 2,
		Jitter: true,
	}

	for {
		ctx, cancel := context.WithTimeout(d.ctx, snapshotTimeout)
		snapshot, err := binding.SyncAPI.OrderBookSnapshot(ctx, &inst.key.Symbol, binding.SnapshotDepth)
		cancel()

		if err == nil {
			d.applySnapshot(inst, binding, snapshot)
			return
		}

		if d.ctx.Err() != nil {
			d.abandonFetch(inst)
			return
		}

		promclient.SnapshotFailuresTotal.WithLabelValues(inst.key.Exchange).Inc()
		wait := b.Duration()
		log.Warnw("order book snapshot failed", "key", inst.key.String(), "attempt", b.Attempt(), "retry_in", wait, "error", err)

		select {
		case <-d.ctx.Done():
			d.abandonFetch(inst)
			return
		case <-time.After(wait):
		}
	}
}

func (d *FeedDispatcher) abandonFetch(inst *Instrument) {
	inst.mu.Lock()
	inst.fetching = false
	inst.mu.Unlock()
}

func (d *FeedDispatcher) applySnapshot(inst *Instrument, binding *ExchangeBinding, snapshot *domain.OrderBookSnapshot) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	inst.fetching = false
	before := inst.sync.Status()

	updates, err := inst.sync.ApplySnapshot(snapshot)
	for _, update := range updates {
		d.recordDepth(inst, binding, update)
	}
	if err != nil {
		d.onResync(inst, err)
	}

	log.Debugw("order book snapshot applied",
		"key", inst.key.String(),
		"last_update_id", snapshot.LastUpdateId,
		"replayed", len(updates),
		"status", inst.sync.Status(),
	)

	d.trackSynchronized(inst.key, before, inst.sync.Status())
	d.scheduleSnapshot(inst, binding)
}

// Close cancels in-flight snapshot fetches and waits for them to return.
func (d *FeedDispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}
