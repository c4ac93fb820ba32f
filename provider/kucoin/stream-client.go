package kucoin

import (
	"fmt"
	"sync"

	"github.com/Kucoin/kucoin-go-sdk"
)

// KucoinStreamClient is one SDK websocket session. A broken session is not
// repaired; the stream api connects a new one.
type KucoinStreamClient struct {
	syncAPI *KucoinSyncAPI

	mu sync.Mutex
	wc *kucoin.WebSocketClient
}

func NewKucoinStreamClient(syncAPI *KucoinSyncAPI) *KucoinStreamClient {
	return &KucoinStreamClient{syncAPI: syncAPI}
}

func (c *KucoinStreamClient) Connect(topics []string) (<-chan *kucoin.WebSocketDownstreamMessage, <-chan error, error) {
	token, err := c.syncAPI.WsConnOpts()
	if err != nil {
		return nil, nil, err
	}

	wc := c.syncAPI.apiService.NewWebSocketClient(token)
	messages, errs, err := wc.Connect()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to kucoin websocket: %w", err)
	}

	c.mu.Lock()
	c.wc = wc
	c.mu.Unlock()

	for _, topic := range topics {
		if err := wc.Subscribe(kucoin.NewSubscribeMessage(topic, false)); err != nil {
			c.Close()
			return nil, nil, fmt.Errorf("failed to subscribe %s: %w", topic, err)
		}
	}

	log.Infow("connected to the kucoin stream websocket", "topics", len(topics))
	return messages, errs, nil
}

func (c *KucoinStreamClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.wc != nil {
		c.wc.Stop()
		c.wc = nil
	}
}
