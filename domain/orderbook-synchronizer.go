package domain

import (
	"errors"
	"fmt"

	"github.com/gammazero/deque"
)

type SyncStatus string

const (
	SyncStatus_Unsynchronized SyncStatus = "Unsynchronized"
	SyncStatus_Synchronizing  SyncStatus = "Synchronizing"
	SyncStatus_Synchronized   SyncStatus = "Synchronized"
)

type BufferPolicy string

const (
	BufferPolicy_Buffer  BufferPolicy = "buffer"
	BufferPolicy_Discard BufferPolicy = "discard"
)

type Outcome string

const (
	// Outcome_Buffered: delta queued while waiting for a snapshot.
	Outcome_Buffered Outcome = "Buffered"
	// Outcome_Discarded: delta dropped while unsynchronized (discard policy).
	Outcome_Discarded Outcome = "Discarded"
	// Outcome_Skipped: delta already covered by the snapshot.
	Outcome_Skipped Outcome = "Skipped"
	Outcome_Applied Outcome = "Applied"
	Outcome_Resync  Outcome = "Resync"
)

const DefaultMaxBufferedDeltas = 1000

type SynchronizerOptions struct {
	BufferPolicy      BufferPolicy
	MaxBufferedDeltas int
}

// BookUpdate is the result of feeding one delta to the synchronizer. Forced is
// set on the first delta applied after a snapshot. Dropped is set when
// buffering the delta pushed the oldest pending delta out.
type BookUpdate struct {
	Outcome Outcome
	Forced  bool
	Dropped bool
	Changes []LevelChange
	Delta   *BookDelta
}

// OrderBookSynchronizer rebuilds one symbol's book from a snapshot plus a
// stream of deltas. Any contiguity failure drops the book and returns to
// Unsynchronized; the caller then fetches a new snapshot.
//
// Not safe for concurrent use.
type OrderBookSynchronizer struct {
	key       SymbolKey
	validator IDepthUpdateValidator
	opts      SynchronizerOptions

	status  SyncStatus
	book    *OrderBook
	pending deque.Deque[*BookDelta]
}

func NewOrderBookSynchronizer(key SymbolKey, validator IDepthUpdateValidator, opts SynchronizerOptions) *OrderBookSynchronizer {
	if opts.MaxBufferedDeltas <= 0 {
		opts.MaxBufferedDeltas = DefaultMaxBufferedDeltas
	}
	if opts.BufferPolicy == "" {
		opts.BufferPolicy = BufferPolicy_Buffer
	}

	return &OrderBookSynchronizer{
		key:       key,
		validator: validator,
		opts:      opts,
		status:    SyncStatus_Unsynchronized,
	}
}

func (s *OrderBookSynchronizer) Key() SymbolKey {
	return s.key
}

func (s *OrderBookSynchronizer) Status() SyncStatus {
	return s.status
}

// Book returns nil while unsynchronized.
func (s *OrderBookSynchronizer) Book() *OrderBook {
	return s.book
}

func (s *OrderBookSynchronizer) PendingLen() int {
	return s.pending.Len()
}

// ApplyDelta feeds one delta. On a gap it returns an Outcome_Resync update
// together with an error wrapping ErrSequenceGap.
func (s *OrderBookSynchronizer) ApplyDelta(delta *BookDelta) (BookUpdate, error) {
	switch s.status {
	case SyncStatus_Unsynchronized:
		return s.enqueue(delta), nil
	case SyncStatus_Synchronizing:
		return s.applyFirst(delta)
	default:
		return s.applyNext(delta)
	}
}

// ApplySnapshot initializes the book and replays buffered deltas. It is a
// no-op unless the synchronizer is waiting for a snapshot.
func (s *OrderBookSynchronizer) ApplySnapshot(snapshot *OrderBookSnapshot) ([]BookUpdate, error) {
	if s.status != SyncStatus_Unsynchronized {
		return nil, nil
	}

	s.book = NewOrderBook(s.key, snapshot)
	s.status = SyncStatus_Synchronizing

	updates := make([]BookUpdate, 0, s.pending.Len())
	for s.pending.Len() > 0 {
		delta := s.pending.PopFront()

		update, err := s.ApplyDelta(delta)
		if err != nil {
			return updates, err
		}
		if update.Outcome == Outcome_Applied {
			updates = append(updates, update)
		}
	}

	return updates, nil
}

// Reset drops the book and all buffered deltas.
func (s *OrderBookSynchronizer) Reset() {
	s.status = SyncStatus_Unsynchronized
	s.book = nil
	s.pending.Clear()
}

func (s *OrderBookSynchronizer) enqueue(delta *BookDelta) BookUpdate {
	if s.opts.BufferPolicy == BufferPolicy_Discard {
		return BookUpdate{Outcome: Outcome_Discarded, Delta: delta}
	}

	dropped := false
	if s.pending.Len() >= s.opts.MaxBufferedDeltas {
		s.pending.PopFront()
		dropped = true
	}
	s.pending.PushBack(delta)

	return BookUpdate{Outcome: Outcome_Buffered, Dropped: dropped, Delta: delta}
}

func (s *OrderBookSynchronizer) applyFirst(delta *BookDelta) (BookUpdate, error) {
	err := s.validator.IsValidFirstUpd(delta, s.book.LastUpdateID)
	switch {
	case errors.Is(err, ErrOrderBookUpdateIsOutdated):
		return BookUpdate{Outcome: Outcome_Skipped, Delta: delta}, nil
	case err != nil:
		return s.resync(delta, err)
	}

	changes := s.book.ApplyLevels(delta.FinalUpdateID, delta.Bids, delta.Asks)
	s.book.Synchronized = true
	s.status = SyncStatus_Synchronized

	return BookUpdate{Outcome: Outcome_Applied, Forced: true, Changes: changes, Delta: delta}, nil
}

func (s *OrderBookSynchronizer) applyNext(delta *BookDelta) (BookUpdate, error) {
	if err := s.validator.IsValidUpd(delta, s.book.LastUpdateID); err != nil {
		return s.resync(delta, err)
	}

	changes := s.book.ApplyLevels(delta.FinalUpdateID, delta.Bids, delta.Asks)

	return BookUpdate{Outcome: Outcome_Applied, Changes: changes, Delta: delta}, nil
}

func (s *OrderBookSynchronizer) resync(delta *BookDelta, cause error) (BookUpdate, error) {
	lastUpdateID := s.book.LastUpdateID
	s.Reset()

	return BookUpdate{Outcome: Outcome_Resync, Delta: delta}, fmt.Errorf(
		"%s: %w: last_update_id=%d U=%d u=%d pu=%d",
		s.key, cause, lastUpdateID, delta.FirstUpdateID, delta.FinalUpdateID, delta.PrevFinalUpdateID,
	)
}
