package usecase

import (
	"sort"
	"sync"

	"github.com/spooky-finn/cryptowave/domain"
)

// InstrumentStorage indexes instruments by exchange and symbol.
type InstrumentStorage struct {
	mu      sync.RWMutex
	storage map[string]map[domain.MarketSymbol]*Instrument
}

func NewInstrumentStorage() *InstrumentStorage {
	return &InstrumentStorage{
		storage: make(map[string]map[domain.MarketSymbol]*Instrument),
	}
}

func (o *InstrumentStorage) Add(inst *Instrument) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.add(inst)
}

func (o *InstrumentStorage) add(inst *Instrument) {
	key := inst.Key()
	if _, ok := o.storage[key.Exchange]; !ok {
		o.storage[key.Exchange] = make(map[domain.MarketSymbol]*Instrument)
	}
	o.storage[key.Exchange][key.Symbol] = inst
}

func (o *InstrumentStorage) Get(exchange string, symbol *domain.MarketSymbol) (*Instrument, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	bySymbol, ok := o.storage[exchange]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}

	inst, ok := bySymbol[*symbol]
	if !ok {
		return nil, domain.ErrOrderBookNotFound
	}

	return inst, nil
}

// GetOrCreate returns the instrument for key, calling create at most once per
// key.
func (o *InstrumentStorage) GetOrCreate(key domain.SymbolKey, create func() *Instrument) (*Instrument, bool) {
	o.mu.RLock()
	inst, ok := o.storage[key.Exchange][key.Symbol]
	o.mu.RUnlock()
	if ok {
		return inst, false
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if inst, ok := o.storage[key.Exchange][key.Symbol]; ok {
		return inst, false
	}
	inst = create()
	o.add(inst)
	return inst, true
}

// InstrumentCount returns -1 for an exchange that has no instruments yet.
func (o *InstrumentStorage) InstrumentCount(exchange string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()

	bySymbol, ok := o.storage[exchange]
	if !ok {
		return -1
	}
	return len(bySymbol)
}

// All returns the instruments sorted by key.
func (o *InstrumentStorage) All() []*Instrument {
	o.mu.RLock()
	out := make([]*Instrument, 0)
	for _, bySymbol := range o.storage {
		for _, inst := range bySymbol {
			out = append(out, inst)
		}
	}
	o.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().String() < out[j].Key().String()
	})
	return out
}
