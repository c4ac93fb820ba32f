package domain

// DepthUpdateValidator decides whether a delta may be applied on top of a
// book whose last applied update id is lastUpdateID.
//
// Both methods return nil when the delta is admissible,
// ErrOrderBookUpdateIsOutdated when it is fully covered by the snapshot and
// must be skipped, and ErrSequenceGap otherwise.
type IDepthUpdateValidator interface {
	// IsValidFirstUpd checks the first delta after a snapshot.
	IsValidFirstUpd(update *BookDelta, lastUpdateID int64) error
	// IsValidUpd checks every delta once the book is synchronized.
	IsValidUpd(update *BookDelta, lastUpdateID int64) error
}

// SpotDepthUpdateValidator implements U/u contiguity: the first processed
// event has U <= lastUpdateId+1 <= u, each following one has U == lastUpdateId+1.
type SpotDepthUpdateValidator struct{}

func (SpotDepthUpdateValidator) IsValidFirstUpd(update *BookDelta, lastUpdateID int64) error {
	// Drop any event where u is <= lastUpdateId in the snapshot
	if update.FinalUpdateID <= lastUpdateID {
		return ErrOrderBookUpdateIsOutdated
	}

	if update.FirstUpdateID <= lastUpdateID+1 && lastUpdateID+1 <= update.FinalUpdateID {
		return nil
	}

	return ErrSequenceGap
}

func (SpotDepthUpdateValidator) IsValidUpd(update *BookDelta, lastUpdateID int64) error {
	if update.FirstUpdateID != lastUpdateID+1 {
		return ErrSequenceGap
	}

	return nil
}

// FuturesDepthUpdateValidator implements the U/u/pu rules: the first processed
// event has U <= lastUpdateId <= u, each following one has pu == lastUpdateId.
type FuturesDepthUpdateValidator struct{}

func (FuturesDepthUpdateValidator) IsValidFirstUpd(update *BookDelta, lastUpdateID int64) error {
	if update.FinalUpdateID < lastUpdateID {
		return ErrOrderBookUpdateIsOutdated
	}

	if update.FirstUpdateID <= lastUpdateID && lastUpdateID <= update.FinalUpdateID {
		return nil
	}

	return ErrSequenceGap
}

func (FuturesDepthUpdateValidator) IsValidUpd(update *BookDelta, lastUpdateID int64) error {
	if update.PrevFinalUpdateID != lastUpdateID {
		return ErrSequenceGap
	}

	return nil
}
