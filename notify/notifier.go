package notify

import (
	"context"
	"sync"
	"time"

	"github.com/spooky-finn/cryptowave/domain"
	"github.com/spooky-finn/cryptowave/infrastructure/logger"
	promclient "github.com/spooky-finn/cryptowave/infrastructure/prometheus"
)

var log = logger.New("notify")

const DefaultQueueSize = 256

// Notifier hands alerts to a sink from a background worker so the event path
// never waits on delivery. Alerts are dropped when the queue is full.
type Notifier struct {
	sink    domain.NotificationSink
	timeout time.Duration
	queue   chan *domain.Alert

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewNotifier(sink domain.NotificationSink, queueSize int, timeout time.Duration) *Notifier {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	n := &Notifier{
		sink:    sink,
		timeout: timeout,
		queue:   make(chan *domain.Alert, queueSize),
		done:    make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify enqueues the alert. It reports false when the alert was dropped.
func (n *Notifier) Notify(a *domain.Alert) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		return false
	}

	select {
	case n.queue <- a:
		return true
	default:
		promclient.NotificationFailuresTotal.WithLabelValues("queue_full").Inc()
		log.Warnw("notification queue is full, alert dropped", "id", a.ID, "key", a.Key.String())
		return false
	}
}

func (n *Notifier) run() {
	defer close(n.done)

	for a := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		err := n.sink.Send(ctx, a)
		cancel()

		if err != nil {
			promclient.NotificationFailuresTotal.WithLabelValues("send").Inc()
			log.Errorw("failed to deliver alert", "id", a.ID, "key", a.Key.String(), "error", err)
		}
	}
}

// Close stops accepting alerts and waits until the queued ones are delivered.
func (n *Notifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	<-n.done
}
