package kucoin

import "github.com/spooky-finn/cryptowave/domain"

// KucoinDepthUpdateValidator follows the level2 rules: an update is usable
// when sequenceStart <= last+1 and sequenceEnd > last. Changes carry absolute
// sizes, so an overlap with the book is harmless.
type KucoinDepthUpdateValidator struct{}

func (v KucoinDepthUpdateValidator) IsValidFirstUpd(update *domain.BookDelta, lastUpdateID int64) error {
	if update.FinalUpdateID <= lastUpdateID {
		return domain.ErrOrderBookUpdateIsOutdated
	}

	return v.IsValidUpd(update, lastUpdateID)
}

func (KucoinDepthUpdateValidator) IsValidUpd(update *domain.BookDelta, lastUpdateID int64) error {
	if update.FirstUpdateID <= lastUpdateID+1 && update.FinalUpdateID > lastUpdateID {
		return nil
	}

	return domain.ErrSequenceGap
}
