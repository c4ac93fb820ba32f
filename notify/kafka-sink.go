package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/spooky-finn/cryptowave/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes alerts as JSON, keyed by exchange symbol so alerts of
// one instrument stay ordered within a partition.
type KafkaSink struct {
	writer messageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}}
}

func (s *KafkaSink) Send(ctx context.Context, a *domain.Alert) error {
	value, err := EncodeAlert(a)
	if err != nil {
		return err
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(a.Key.String()),
		Value: value,
		Time:  a.LastTime,
	})
	if err != nil {
		return fmt.Errorf("%w: kafka: %v", domain.ErrNotificationFailure, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
