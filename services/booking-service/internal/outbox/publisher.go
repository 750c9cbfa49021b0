package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/linkbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/linkbook/libs/otel"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/model"
	"github.com/segmentio/kafka-go"
)

// Source hands out unpublished events and marks them published when fn succeeds.
type Source interface {
	ProcessUnpublished(ctx context.Context, limit int, fn func([]model.OutboxEvent) error) error
}

// Writer is the part of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Config struct {
	PollEvery time.Duration
	BatchSize int
}

// Publisher relays outbox rows to Kafka. The topic name equals the event type.
type Publisher struct {
	source    Source
	writer    Writer
	logger    *slog.Logger
	pollEvery time.Duration
	batchSize int
}

func NewPublisher(source Source, writer Writer, logger *slog.Logger, cfg Config) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		source:    source,
		writer:    writer,
		logger:    logger,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if p.writer == nil {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil {
				p.logger.Error("outbox publish failed", "err", err)
			}
		}
	}
}

// PublishBatch sends one batch and returns how many events went out.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	sent := 0
	err := p.source.ProcessUnpublished(ctx, p.batchSize, func(events []model.OutboxEvent) error {
		msgs := make([]kafka.Message, 0, len(events))
		for _, e := range events {
			msgCtx := otelx.ContextWithTraceContext(ctx, e.TraceParent, e.TraceState)
			meta := kafkax.EventMeta{EventID: e.EventID, EventType: e.EventType}
			msgs = append(msgs, kafka.Message{
				Topic:   e.EventType,
				Key:     []byte(e.AggregateID),
				Value:   e.Payload,
				Headers: kafkax.InjectTraceHeaders(msgCtx, meta.Headers()),
			})
		}
		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			return err
		}
		sent = len(msgs)
		return nil
	})
	return sent, err
}
