package binance

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/recws-org/recws"
	"github.com/spooky-finn/cryptowave/config"
)

const pingDelay = time.Minute * 9

type Message[T any] struct {
	Stream string `json:"stream"`
	Data   T      `json:"data"`
}

// BinanceStreamClient is a reconnecting combined-stream connection. Streams
// are part of the URL so every reconnect resubscribes them.
type BinanceStreamClient struct {
	endpoint string
	conn     *recws.RecConn
}

func NewBinanceStreamClient(endpoint string) *BinanceStreamClient {
	return &BinanceStreamClient{endpoint: endpoint}
}

func combinedStreamURL(endpoint string, streams []string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("streams", strings.Join(streams, "/"))
	u.RawQuery = q.Encode()
	// Binance expects the slashes unescaped.
	u.RawQuery = strings.ReplaceAll(u.RawQuery, "%2F", "/")
	return u.String(), nil
}

func (c *BinanceStreamClient) Connect(streams []string) error {
	endpoint, err := combinedStreamURL(c.endpoint, streams)
	if err != nil {
		return err
	}

	conn := &recws.RecConn{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 5 * time.Second,
		KeepAliveTimeout: pingDelay,
		NonVerbose:       !config.DebugMode,
	}
	conn.Dial(endpoint, nil)
	c.conn = conn

	log.Infow("dialing binance stream", "endpoint", c.endpoint, "streams", len(streams))
	return nil
}

// ReadMessage returns recws.ErrNotConnected while the connection is being
// re-established.
func (c *BinanceStreamClient) ReadMessage() ([]byte, error) {
	_, msg, err := c.conn.ReadMessage()
	return msg, err
}

func (c *BinanceStreamClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
