package promclient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spooky-finn/cryptowave/infrastructure/logger"
)

var log = logger.New("promclient")

var ResyncsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cryptowave_resyncs_total",
		Help: "order book resynchronizations caused by sequence gaps",
	},
	[]string{"exchange", "symbol"},
)

var UnknownSymbolTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cryptowave_unknown_symbol_total",
		Help: "events dropped because the symbol is not configured",
	},
	[]string{"exchange"},
)

var StaleEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cryptowave_stale_events_total",
		Help: "events ignored by the rolling windows because they were too old",
	},
	[]string{"exchange", "channel"},
)

var OutOfOrderEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cryptowave_out_of_order_events_total",
		Help: "events ignored by the rolling windows because they were older than the newest sample",
	},
	[]string{"exchange", "channel"},
)

var BufferOverflowTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cryptowave_buffer_overflow_total",
		Help: "pending deltas dropped while waiting for a snapshot",
	},
	[]string{"exchange", "symbol"},
)

var AlertsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cryptowave_alerts_total",
		Help: "price wave alerts raised",
	},
	[]string{"exchange", "symbol"},
)

var NotificationFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cryptowave_notification_failures_total",
		Help: "alerts that could not be delivered",
	},
	[]string{"reason"},
)

var SnapshotFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cryptowave_snapshot_failures_total",
		Help: "failed order book snapshot requests",
	},
	[]string{"exchange"},
)

var SynchronizedBooksGauge = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "cryptowave_synchronized_books",
		Help: "order books currently synchronized",
	},
	[]string{"exchange"},
)

// NewRegistry returns a registry holding the service collectors and the Go
// runtime collector.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		ResyncsTotal,
		UnknownSymbolTotal,
		StaleEventsTotal,
		OutOfOrderEventsTotal,
		BufferOverflowTotal,
		AlertsTotal,
		NotificationFailuresTotal,
		SnapshotFailuresTotal,
		SynchronizedBooksGauge,
		collectors.NewGoCollector(),
	)
	return reg
}

// StartPromClientServer serves /metrics on addr until ctx is done.
func StartPromClientServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(NewRegistry(), promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("prometheus server listening at %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
