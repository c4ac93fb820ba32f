package kucoin

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Kucoin/kucoin-go-sdk"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
	"github.com/spooky-finn/cryptowave/domain"
	"github.com/spooky-finn/cryptowave/helpers"
)

const (
	topicLevel2  = "/market/level2:"
	topicTicker  = "/market/ticker:"
	topicMatch   = "/market/match:"
	topicCandles = "/market/candles:"

	candleInterval = "1min"
	// a topic accepts at most this many symbols
	maxSymbolsPerTopic = 100
)

var candleIntervals = map[string]time.Duration{
	"1min":  time.Minute,
	"3min":  3 * time.Minute,
	"5min":  5 * time.Minute,
	"15min": 15 * time.Minute,
	"30min": 30 * time.Minute,
	"1hour": time.Hour,
	"4hour": 4 * time.Hour,
	"1day":  24 * time.Hour,
}

type DepthUpdateModel struct {
	Changes       OrderBookChanges `json:"changes"`
	SequenceEnd   int64            `json:"sequenceEnd"`
	SequenceStart int64            `json:"sequenceStart"`
	Symbol        string           `json:"symbol"`
	Time          int64            `json:"time"`
}

type OrderBookChanges struct {
	Asks [][]string `json:"asks"`
	Bids [][]string `json:"bids"`
}

type TickerModel struct {
	Sequence    string `json:"sequence"`
	BestAsk     string `json:"bestAsk"`
	BestAskSize string `json:"bestAskSize"`
	BestBid     string `json:"bestBid"`
	BestBidSize string `json:"bestBidSize"`
	Time        int64  `json:"time"`
}

type MatchModel struct {
	Symbol  string      `json:"symbol"`
	Side    string      `json:"side"`
	Price   string      `json:"price"`
	Size    string      `json:"size"`
	TradeId string      `json:"tradeId"`
	Time    json.Number `json:"time"`
}

type CandleModel struct {
	Symbol  string      `json:"symbol"`
	Candles []string    `json:"candles"`
	Time    json.Number `json:"time"`
}

// KucoinStreamAPI is the FeedSource of one Kucoin connection: level2 diffs,
// ticker, matches and 1min candles of the configured symbols.
type KucoinStreamAPI struct {
	exchange string
	symbols  []*domain.MarketSymbol
	client   *KucoinStreamClient

	// last in-progress candle per symbol; Kucoin does not flag closed candles
	candles map[string]domain.Candle
}

func NewKucoinStreamAPI(exchange string, client *KucoinStreamClient, symbols []*domain.MarketSymbol) *KucoinStreamAPI {
	return &KucoinStreamAPI{
		exchange: exchange,
		symbols:  symbols,
		client:   client,
		candles:  make(map[string]domain.Candle),
	}
}

func (s *KucoinStreamAPI) Topics() []string {
	names := make([]string, 0, len(s.symbols))
	for _, symbol := range s.symbols {
		names = append(names, strings.ToUpper(symbol.Join("-")))
	}

	var topics []string
	for start := 0; start < len(names); start += maxSymbolsPerTopic {
		end := start + maxSymbolsPerTopic
		if end > len(names) {
			end = len(names)
		}
		joined := strings.Join(names[start:end], ",")
		topics = append(topics, topicLevel2+joined, topicTicker+joined, topicMatch+joined)
	}
	for _, name := range names {
		topics = append(topics, topicCandles+name+"_"+candleInterval)
	}

	return topics
}

// Run keeps a session open until ctx is done, reconnecting with backoff.
func (s *KucoinStreamAPI) Run(ctx context.Context, out chan<- domain.Event) error {
	b := &backoff.Backoff{Min: time.Second, Max: time.Minute, Factor: 2, Jitter: true}

	for {
		err := s.session(ctx, out, b)
		if ctx.Err() != nil {
			return nil
		}

		wait := b.Duration()
		log.Warnw("kucoin stream interrupted", "exchange", s.exchange, "retry_in", wait, "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (s *KucoinStreamAPI) session(ctx context.Context, out chan<- domain.Event, b *backoff.Backoff) error {
	messages, errs, err := s.client.Connect(s.Topics())
	if err != nil {
		return err
	}
	defer s.client.Close()
	b.Reset()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			return err
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			if msg.Type != kucoin.Message {
				continue
			}

			events, err := s.Decode(msg.Topic, msg.RawData, time.Now())
			if err != nil {
				log.Warnw("failed to decode kucoin message", "topic", msg.Topic, "error", err)
				continue
			}
			for _, ev := range events {
				select {
				case out <- ev:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// Decode converts the data of one downstream message. A candle message may
// yield two events when it starts a new interval: the closed candle and the
// new in-progress one.
func (s *KucoinStreamAPI) Decode(topic string, raw json.RawMessage, receipt time.Time) ([]domain.Event, error) {
	switch {
	case strings.HasPrefix(topic, topicLevel2):
		ev, err := s.decodeLevel2(raw, receipt)
		return wrap(ev, err)
	case strings.HasPrefix(topic, topicTicker):
		ev, err := s.decodeTicker(strings.TrimPrefix(topic, topicTicker), raw, receipt)
		return wrap(ev, err)
	case strings.HasPrefix(topic, topicMatch):
		ev, err := s.decodeMatch(raw, receipt)
		return wrap(ev, err)
	case strings.HasPrefix(topic, topicCandles):
		return s.decodeCandle(raw, receipt)
	}
	return nil, nil
}

func wrap(ev domain.Event, err error) ([]domain.Event, error) {
	if err != nil {
		return nil, err
	}
	return []domain.Event{ev}, nil
}

func (s *KucoinStreamAPI) decodeLevel2(raw json.RawMessage, receipt time.Time) (domain.Event, error) {
	var data DepthUpdateModel
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.Event{}, err
	}

	bids, err := domain.ParsePriceLevels(data.Changes.Bids)
	if err != nil {
		return domain.Event{}, err
	}
	asks, err := domain.ParsePriceLevels(data.Changes.Asks)
	if err != nil {
		return domain.Event{}, err
	}

	eventTime := helpers.MillisToTime(data.Time)
	return domain.Event{
		Exchange:    s.exchange,
		Symbol:      data.Symbol,
		EventTime:   eventTime,
		ReceiptTime: receipt,
		Payload: &domain.BookDelta{
			FirstUpdateID: data.SequenceStart,
			FinalUpdateID: data.SequenceEnd,
			Bids:          bids,
			Asks:          asks,
			EventTime:     eventTime,
		},
	}, nil
}

func (s *KucoinStreamAPI) decodeTicker(symbol string, raw json.RawMessage, receipt time.Time) (domain.Event, error) {
	var data TickerModel
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.Event{}, err
	}

	values := make([]decimal.Decimal, 4)
	for i, f := range []string{data.BestBid, data.BestBidSize, data.BestAsk, data.BestAskSize} {
		v, err := decimal.NewFromString(f)
		if err != nil {
			return domain.Event{}, err
		}
		values[i] = v
	}

	eventTime := helpers.MillisToTime(data.Time)
	return domain.Event{
		Exchange:    s.exchange,
		Symbol:      symbol,
		EventTime:   eventTime,
		ReceiptTime: receipt,
		Payload: &domain.BestQuote{
			BidPrice:  values[0],
			BidQty:    values[1],
			AskPrice:  values[2],
			AskQty:    values[3],
			EventTime: eventTime,
		},
	}, nil
}

func (s *KucoinStreamAPI) decodeMatch(raw json.RawMessage, receipt time.Time) (domain.Event, error) {
	var data MatchModel
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.Event{}, err
	}

	price, err := decimal.NewFromString(data.Price)
	if err != nil {
		return domain.Event{}, err
	}
	size, err := decimal.NewFromString(data.Size)
	if err != nil {
		return domain.Event{}, err
	}
	ns, err := data.Time.Int64()
	if err != nil {
		return domain.Event{}, err
	}

	side := domain.SideBuy
	if data.Side == "sell" {
		side = domain.SideSell
	}

	eventTime := helpers.NanosToTime(ns)
	return domain.Event{
		Exchange:    s.exchange,
		Symbol:      data.Symbol,
		EventTime:   eventTime,
		ReceiptTime: receipt,
		Payload: &domain.Trade{
			TradeID:     data.TradeId,
			Price:       price,
			Quantity:    size,
			Side:        side,
			EventTime:   eventTime,
			ReceiptTime: receipt,
		},
	}, nil
}

// candles: [start, open, close, high, low, volume, turnover]
func (s *KucoinStreamAPI) decodeCandle(raw json.RawMessage, receipt time.Time) ([]domain.Event, error) {
	var data CandleModel
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if len(data.Candles) < 5 {
		return nil, fmt.Errorf("candle has %d fields", len(data.Candles))
	}

	startSec, err := strconv.ParseInt(data.Candles[0], 10, 64)
	if err != nil {
		return nil, err
	}
	prices := make([]decimal.Decimal, 4)
	for i := range prices {
		v, err := decimal.NewFromString(data.Candles[i+1])
		if err != nil {
			return nil, err
		}
		prices[i] = v
	}
	ns, err := data.Time.Int64()
	if err != nil {
		return nil, err
	}

	start := time.Unix(startSec, 0)
	candle := domain.Candle{
		Interval:      candleInterval,
		Open:          prices[0],
		Close:         prices[1],
		High:          prices[2],
		Low:           prices[3],
		IntervalStart: start,
		IntervalEnd:   start.Add(candleIntervals[candleInterval]),
	}

	eventTime := helpers.NanosToTime(ns)
	newEvent := func(c domain.Candle) domain.Event {
		return domain.Event{
			Exchange:    s.exchange,
			Symbol:      data.Symbol,
			EventTime:   eventTime,
			ReceiptTime: receipt,
			Payload:     &c,
		}
	}

	var events []domain.Event
	if prev, ok := s.candles[data.Symbol]; ok && prev.IntervalStart.Before(start) {
		prev.IsFinal = true
		events = append(events, newEvent(prev))
	}
	s.candles[data.Symbol] = candle
	events = append(events, newEvent(candle))

	return events, nil
}
