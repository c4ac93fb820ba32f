package rpc

import (
	"context"
	"errors"

	"github.com/spooky-finn/cryptowave/domain"
	"github.com/spooky-finn/cryptowave/helpers"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// GetOrderBookSnapshot expects {exchange, market, max_depth}.
func (s *server) GetOrderBookSnapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	exchange, marketSymbol, err := s.instrumentArgs(in)
	if err != nil {
		return nil, err
	}
	depth, err := s.validationService.Depth(int(in.GetFields()["max_depth"].GetNumberValue()))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	snapshot, err := s.orderbookSnapshotUseCase.GetOrderBookSnapshot(ctx, exchange, marketSymbol, depth)
	if err != nil {
		return nil, toStatus(err)
	}

	return newStruct(map[string]interface{}{
		"source":         string(snapshot.Source),
		"last_update_id": helpers.IntToString(snapshot.LastUpdateId),
		"bids":           levels(snapshot.Bids),
		"asks":           levels(snapshot.Asks),
	})
}

// GetBestQuotes expects {exchange, market} and returns the best-quote window,
// oldest first.
func (s *server) GetBestQuotes(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	exchange, marketSymbol, err := s.instrumentArgs(in)
	if err != nil {
		return nil, err
	}

	samples, err := s.orderbookSnapshotUseCase.GetBestQuotes(exchange, marketSymbol)
	if err != nil {
		return nil, toStatus(err)
	}

	quotes := make([]interface{}, 0, len(samples))
	for _, sample := range samples {
		quotes = append(quotes, map[string]interface{}{
			"time_ms":   helpers.IntToString(sample.EventTime.UnixMilli()),
			"bid_price": sample.Value.BidPrice.String(),
			"bid_qty":   sample.Value.BidQty.String(),
			"ask_price": sample.Value.AskPrice.String(),
			"ask_qty":   sample.Value.AskQty.String(),
		})
	}

	return newStruct(map[string]interface{}{"quotes": quotes})
}

func (s *server) ListInstruments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	infos := s.orderbookSnapshotUseCase.Instruments()

	instruments := make([]interface{}, 0, len(infos))
	for _, info := range infos {
		item := map[string]interface{}{
			"exchange":     info.Key.Exchange,
			"market":       info.Key.Symbol.Join("/"),
			"status":       string(info.Status),
			"wave_enabled": info.WaveEnabled,
		}
		if !info.Wave.LastNotifiedTime.IsZero() {
			item["last_notified_ms"] = helpers.IntToString(info.Wave.LastNotifiedTime.UnixMilli())
			item["last_notified_gap"] = info.Wave.LastNotifiedGapRatio.String()
		}
		if book := info.Book; book != nil {
			item["bid_levels"] = book.BidLevels
			item["ask_levels"] = book.AskLevels
			if book.BestBid != nil {
				item["best_bid"] = book.BestBid.Price.String()
			}
			if book.BestAsk != nil {
				item["best_ask"] = book.BestAsk.Price.String()
			}
		}
		instruments = append(instruments, item)
	}

	return newStruct(map[string]interface{}{"instruments": instruments})
}

func (s *server) instrumentArgs(in *structpb.Struct) (string, *domain.MarketSymbol, error) {
	fields := in.GetFields()

	exchange := fields["exchange"].GetStringValue()
	if !s.validationService.IsSupportedProvider(exchange) {
		return "", nil, status.Errorf(codes.InvalidArgument, "provider %s is not supported", exchange)
	}

	marketSymbol, err := s.validationService.MarketSymbol(fields["market"].GetStringValue())
	if err != nil {
		return "", nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return exchange, marketSymbol, nil
}

func levels(in []domain.PriceLevel) []interface{} {
	out := make([]interface{}, 0, len(in))
	for _, l := range in {
		out = append(out, map[string]interface{}{
			"price": l.Price.String(),
			"qty":   l.Quantity.String(),
		})
	}
	return out
}

func newStruct(m map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrProviderNotFound), errors.Is(err, domain.ErrOrderBookNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrSnapshotUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
