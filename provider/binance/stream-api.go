package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/recws-org/recws"
	"github.com/shopspring/decimal"
	"github.com/spooky-finn/cryptowave/domain"
	"github.com/spooky-finn/cryptowave/helpers"
)

const reconnectPollInterval = 200 * time.Millisecond

type DepthUpdateData struct {
	Event         string     `json:"e"`
	EventTime     int64      `json:"E"`
	TradeTime     int64      `json:"T"`
	Symbol        string     `json:"s"`
	FirstUpdateId int64      `json:"U"`
	FinalUpdateId int64      `json:"u"`
	PrevUpdateId  int64      `json:"pu"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// BookTickerData is the spot and futures best bid/ask payload. Spot does not
// carry an event time.
type BookTickerData struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	TradeTime int64  `json:"T"`
	UpdateId  int64  `json:"u"`
	Symbol    string `json:"s"`
	BidPrice  string `json:"b"`
	BidQty    string `json:"B"`
	AskPrice  string `json:"a"`
	AskQty    string `json:"A"`
}

type AggTradeData struct {
	Event        string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	AggTradeId   int64  `json:"a"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	BuyerIsMaker bool   `json:"m"`
	// spot only; declared so it does not fold into "m"
	Ignore bool `json:"M"`
}

type KlineData struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     struct {
		StartTime   int64  `json:"t"`
		CloseTime   int64  `json:"T"`
		Interval    string `json:"i"`
		LastTradeId int64  `json:"L"`
		Open        string `json:"o"`
		Close       string `json:"c"`
		High        string `json:"h"`
		Low         string `json:"l"`
		IsFinal     bool   `json:"x"`
	} `json:"k"`
}

// BinanceStreamAPI is the FeedSource of one Binance connection. It
// subscribes depth diffs, book ticker, aggregated trades and 1m klines of
// every configured symbol.
type BinanceStreamAPI struct {
	exchange string
	market   Market
	symbols  []*domain.MarketSymbol
	client   *BinanceStreamClient
}

func NewBinanceStreamAPI(exchange string, market Market, client *BinanceStreamClient, symbols []*domain.MarketSymbol) *BinanceStreamAPI {
	return &BinanceStreamAPI{
		exchange: exchange,
		market:   market,
		symbols:  symbols,
		client:   client,
	}
}

func (bs *BinanceStreamAPI) Streams() []string {
	streams := make([]string, 0, len(bs.symbols)*4)
	for _, s := range bs.symbols {
		name := s.Join("")
		streams = append(streams,
			bs.market.depthStream(name),
			name+"@bookTicker",
			name+"@aggTrade",
			name+"@kline_1m",
		)
	}
	return streams
}

func (bs *BinanceStreamAPI) Run(ctx context.Context, out chan<- domain.Event) error {
	if err := bs.client.Connect(bs.Streams()); err != nil {
		return fmt.Errorf("binance %s: %w", bs.exchange, err)
	}

	go func() {
		<-ctx.Done()
		bs.client.Close()
	}()

	for {
		msg, err := bs.client.ReadMessage()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if !errors.Is(err, recws.ErrNotConnected) {
				log.Warnw("binance stream read failed", "exchange", bs.exchange, "error", err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(reconnectPollInterval):
			}
			continue
		}

		ev, ok, err := bs.Decode(msg, time.Now())
		if err != nil {
			log.Warnw("failed to decode binance message", "exchange", bs.exchange, "error", err, "message", string(msg))
			continue
		}
		if !ok {
			continue
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

// Decode turns one combined-stream message into an event. Messages that are
// not market data (subscription acks) report ok=false.
func (bs *BinanceStreamAPI) Decode(msg []byte, receipt time.Time) (domain.Event, bool, error) {
	var message Message[json.RawMessage]
	if err := json.Unmarshal(msg, &message); err != nil {
		return domain.Event{}, false, err
	}
	if message.Stream == "" || len(message.Data) == 0 {
		return domain.Event{}, false, nil
	}

	symbol, kind, _ := strings.Cut(message.Stream, "@")
	ev := domain.Event{
		Exchange:    bs.exchange,
		Symbol:      symbol,
		ReceiptTime: receipt,
	}

	var err error
	switch {
	case strings.HasPrefix(kind, "depth"):
		err = bs.decodeDepth(message.Data, &ev)
	case kind == "bookTicker":
		err = bs.decodeBookTicker(message.Data, &ev)
	case kind == "aggTrade":
		err = bs.decodeAggTrade(message.Data, &ev)
	case strings.HasPrefix(kind, "kline"):
		err = bs.decodeKline(message.Data, &ev)
	default:
		return domain.Event{}, false, nil
	}
	if err != nil {
		return domain.Event{}, false, fmt.Errorf("%s: %w", message.Stream, err)
	}

	return ev, true, nil
}

func (bs *BinanceStreamAPI) decodeDepth(raw json.RawMessage, ev *domain.Event) error {
	var data DepthUpdateData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}

	bids, err := domain.ParsePriceLevels(data.Bids)
	if err != nil {
		return err
	}
	asks, err := domain.ParsePriceLevels(data.Asks)
	if err != nil {
		return err
	}

	ev.EventTime = helpers.MillisToTime(data.EventTime)
	ev.Payload = &domain.BookDelta{
		FirstUpdateID:     data.FirstUpdateId,
		FinalUpdateID:     data.FinalUpdateId,
		PrevFinalUpdateID: data.PrevUpdateId,
		Bids:              bids,
		Asks:              asks,
		EventTime:         ev.EventTime,
	}
	return nil
}

func (bs *BinanceStreamAPI) decodeBookTicker(raw json.RawMessage, ev *domain.Event) error {
	var data BookTickerData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}

	fields := []string{data.BidPrice, data.BidQty, data.AskPrice, data.AskQty}
	values := make([]decimal.Decimal, len(fields))
	for i, f := range fields {
		v, err := decimal.NewFromString(f)
		if err != nil {
			return err
		}
		values[i] = v
	}

	ev.EventTime = ev.ReceiptTime
	if data.EventTime > 0 {
		ev.EventTime = helpers.MillisToTime(data.EventTime)
	}
	ev.Payload = &domain.BestQuote{
		BidPrice:  values[0],
		BidQty:    values[1],
		AskPrice:  values[2],
		AskQty:    values[3],
		EventTime: ev.EventTime,
	}
	return nil
}

func (bs *BinanceStreamAPI) decodeAggTrade(raw json.RawMessage, ev *domain.Event) error {
	var data AggTradeData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}

	price, err := decimal.NewFromString(data.Price)
	if err != nil {
		return err
	}
	qty, err := decimal.NewFromString(data.Quantity)
	if err != nil {
		return err
	}

	// the buyer being the maker means the aggressor sold
	side := domain.SideBuy
	if data.BuyerIsMaker {
		side = domain.SideSell
	}

	ev.EventTime = helpers.MillisToTime(data.EventTime)
	ev.Payload = &domain.Trade{
		TradeID:     strconv.FormatInt(data.AggTradeId, 10),
		Price:       price,
		Quantity:    qty,
		Side:        side,
		EventTime:   helpers.MillisToTime(data.TradeTime),
		ReceiptTime: ev.ReceiptTime,
	}
	return nil
}

func (bs *BinanceStreamAPI) decodeKline(raw json.RawMessage, ev *domain.Event) error {
	var data KlineData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}

	k := data.Kline
	prices := make([]decimal.Decimal, 4)
	for i, f := range []string{k.Open, k.Close, k.High, k.Low} {
		v, err := decimal.NewFromString(f)
		if err != nil {
			return err
		}
		prices[i] = v
	}

	ev.EventTime = helpers.MillisToTime(data.EventTime)
	ev.Payload = &domain.Candle{
		Interval:      k.Interval,
		Open:          prices[0],
		Close:         prices[1],
		High:          prices[2],
		Low:           prices[3],
		IntervalStart: helpers.MillisToTime(k.StartTime),
		IntervalEnd:   helpers.MillisToTime(k.CloseTime),
		IsFinal:       k.IsFinal,
	}
	return nil
}
