package domain

import "errors"

var (
	// ErrSequenceGap means a delta is not contiguous with the book. The book
	// is dropped and rebuilt from a fresh snapshot.
	ErrSequenceGap = errors.New("order book update is out of sequence")
	// ErrOrderBookUpdateIsOutdated marks deltas already covered by the
	// snapshot; they are skipped.
	ErrOrderBookUpdateIsOutdated = errors.New("order book update is outdated")

	ErrSnapshotUnavailable = errors.New("order book snapshot unavailable")
	ErrUnknownSymbol       = errors.New("unknown symbol")
	ErrNotificationFailure = errors.New("notification delivery failed")

	ErrOrderBookNotFound = errors.New("order book not found")
	ErrProviderNotFound  = errors.New("provider not found")
)
