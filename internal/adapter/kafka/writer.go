package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/location-fix-service/internal/domain"
	"github.com/couchcryptid/location-fix-service/internal/observability"
)

// flushTimeout bounds the write of the snapshot pending at shutdown.
const flushTimeout = 5 * time.Second

// messageWriter is the subset of *kafkago.Writer the feed uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Source publishes acquisition snapshots.
type Source interface {
	Subscribe() (<-chan domain.AcquisitionState, func())
}

// Feed produces every acquisition snapshot to a Kafka topic, keyed by cycle ID
// so a cycle's snapshots stay ordered within one partition.
type Feed struct {
	writer  messageWriter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewFeed creates a Kafka producer for the state topic.
func NewFeed(brokers []string, topic string, metrics *observability.Metrics, logger *slog.Logger) *Feed {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Feed{writer: w, metrics: metrics, logger: logger}
}

// Run publishes snapshots from src until ctx is cancelled. A write in
// progress when ctx is cancelled is allowed to finish, and a snapshot still
// pending at that point is flushed within flushTimeout. Cancel ctx only after
// src has published its final state. Publish failures are logged and the
// snapshot is dropped.
func (f *Feed) Run(ctx context.Context, src Source) {
	updates, cancel := src.Subscribe()
	defer cancel()

	writeCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			select {
			case s := <-updates:
				flushCtx, cancelFlush := context.WithTimeout(writeCtx, flushTimeout)
				f.publishLogged(flushCtx, s)
				cancelFlush()
			default:
			}
			return
		case s := <-updates:
			f.publishLogged(writeCtx, s)
		}
	}
}

func (f *Feed) publishLogged(ctx context.Context, s domain.AcquisitionState) {
	if err := f.Publish(ctx, s); err != nil {
		f.logger.Warn("state feed publish failed", "cycle_id", s.CycleID, "error", err)
	}
}

// Publish writes one snapshot. Snapshots from before the first cycle carry no
// cycle ID and are skipped.
func (f *Feed) Publish(ctx context.Context, s domain.AcquisitionState) error {
	if s.CycleID == "" {
		return nil
	}
	msg, err := serializeToMessage(s)
	if err != nil {
		return err
	}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write state snapshot: %w", err)
	}
	f.metrics.SnapshotsPublished.WithLabelValues("kafka").Inc()
	return nil
}

func (f *Feed) Close() error {
	return f.writer.Close()
}

// serializeToMessage marshals a snapshot into a Kafka message.
func serializeToMessage(s domain.AcquisitionState) (kafkago.Message, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize state snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(s.CycleID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "phase", Value: []byte(s.Phase)},
			{Key: "updated_at", Value: []byte(s.UpdatedAt.Format(time.RFC3339Nano))},
		},
	}, nil
}
