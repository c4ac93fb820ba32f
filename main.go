package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourcegraph/conc"
	"github.com/spooky-finn/cryptowave/config"
	"github.com/spooky-finn/cryptowave/domain"
	"github.com/spooky-finn/cryptowave/infrastructure/logger"
	promclient "github.com/spooky-finn/cryptowave/infrastructure/prometheus"
	"github.com/spooky-finn/cryptowave/notify"
	"github.com/spooky-finn/cryptowave/provider"
	"github.com/spooky-finn/cryptowave/rpc"
	"github.com/spooky-finn/cryptowave/usecase"
)

const eventBufferSize = 4096

var log = logger.New("main")

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalw("failed to load configuration", "error", err)
	}
	logger.SetLevel(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connManager, err := provider.NewConnectionManager(cfg.Exchanges)
	if err != nil {
		log.Fatalw("failed to configure exchanges", "error", err)
	}
	defer connManager.Close()

	sinks := notify.MultiSink{notify.NewLogSink(logger.New("alert"))}
	if cfg.Notify.DingTalk.Webhook != "" {
		sinks = append(sinks, notify.NewDingTalkSink(notify.DingTalkConfig{
			Webhook: cfg.Notify.DingTalk.Webhook,
			Secret:  cfg.Notify.DingTalk.Secret,
			Timeout: cfg.Notify.Timeout,
		}))
	}
	var kafkaSink *notify.KafkaSink
	if len(cfg.Notify.Kafka.Brokers) > 0 {
		kafkaSink = notify.NewKafkaSink(cfg.Notify.Kafka.Brokers, cfg.Notify.Kafka.Topic)
		sinks = append(sinks, kafkaSink)
	}
	notifier := notify.NewNotifier(sinks, cfg.Notify.QueueSize, cfg.Notify.Timeout)

	dispatcher := usecase.NewFeedDispatcher(
		usecase.DispatcherConfig{
			Window:           cfg.WindowConfig(),
			Sync:             cfg.SynchronizerOptions(),
			Strategy:         cfg.StrategyConfig(),
			SnapshotRetryMin: cfg.Sync.SnapshotRetryMin,
			SnapshotRetryMax: cfg.Sync.SnapshotRetryMax,
		},
		connManager.Bindings(),
		notifier,
	)

	snapshotUseCase := usecase.NewOrderBookSnapshotUseCase(dispatcher.Storage(), connManager.SyncAPIs())
	providers := make([]string, 0, len(cfg.Exchanges))
	for _, ex := range cfg.Exchanges {
		providers = append(providers, ex.Name)
	}
	server := rpc.NewServer(snapshotUseCase, &rpc.ValidationServiceConfig{AvailableProviders: providers})

	var wg conc.WaitGroup

	if cfg.MetricsAddr != "" {
		wg.Go(func() {
			if err := promclient.StartPromClientServer(ctx, cfg.MetricsAddr); err != nil {
				log.Errorw("metrics server stopped", "error", err)
			}
		})
	}

	if cfg.RPCAddr != "" {
		wg.Go(func() {
			if err := rpc.Serve(ctx, cfg.RPCAddr, server); err != nil {
				log.Errorw("grpc server stopped", "error", err)
			}
		})
	}

	for _, conn := range connManager.Connections() {
		conn := conn
		events := make(chan domain.Event, eventBufferSize)

		wg.Go(func() {
			if err := conn.Feed.Run(ctx, events); err != nil {
				log.Errorw("feed stopped", "exchange", conn.Name, "error", err)
			}
		})
		wg.Go(func() {
			_ = dispatcher.Run(ctx, events)
		})
	}

	log.Infow("cryptowave started", "exchanges", len(cfg.Exchanges))
	<-ctx.Done()
	log.Info("shutting down")

	wg.Wait()
	dispatcher.Close()
	notifier.Close()
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			log.Warnw("failed to close kafka writer", "error", err)
		}
	}
}
