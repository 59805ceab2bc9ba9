package broker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"

	"pushbridge/internal/config"
	"pushbridge/internal/logger"
	"pushbridge/pkg/events"
	"pushbridge/pkg/logging"
	"pushbridge/pkg/metrics"
)

type KafkaConsumer struct {
	cfg         config.KafkaConfig
	wg          sync.WaitGroup
	reader      *kafka.Reader
	logger      logger.Logger
	serviceName string
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: "unknown",
	}
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	c.logger.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
		"service_name", c.serviceName,
	)

	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		consumeCtx := logging.WithServiceName(ctx, c.serviceName)
		c.logger.InfowCtx(consumeCtx, "Started consuming",
			"topic", topic,
		)

		for {
			m, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.InfowCtx(consumeCtx, "Stopped consuming",
						"topic", topic,
						"reason", "context canceled",
					)
					return
				}
				c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message",
					"error", err,
					"topic", topic,
				)
				time.Sleep(time.Second)
				continue
			}

			metrics.KafkaMessagesReadTotal.WithLabelValues(c.serviceName, topic).Inc()

			var event events.Event
			if err := json.Unmarshal(m.Value, &event); err != nil {
				c.logger.ErrorwCtx(consumeCtx, "Failed to unmarshal event",
					"error", err,
					"topic", topic,
				)
				_ = c.reader.CommitMessages(ctx, m)
				continue
			}

			msgCtx := logging.WithEventID(consumeCtx, event.ID)

			if err := c.deliverWithRedelivery(msgCtx, &event, handler, topic); err != nil {
				metrics.EventsDroppedTotal.WithLabelValues("redelivery_expired").Inc()
				c.logger.WarnwCtx(msgCtx, "Redelivery window expired, dropping event",
					"error", err,
					"topic", topic,
				)
			}
			if err := c.reader.CommitMessages(ctx, m); err != nil {
				c.logger.ErrorwCtx(msgCtx, "Failed to commit message",
					"error", err,
					"topic", topic,
				)
			}
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

func (c *KafkaConsumer) Close() error {
	var err error
	if c.reader != nil {
		err = c.reader.Close()
	}
	c.wg.Wait()
	return err
}

// deliverWithRedelivery hands the event to the handler and, while the
// handler reports it cannot take the event yet, holds it and redelivers
// with exponential backoff until the configured elapsed window runs out.
func (c *KafkaConsumer) deliverWithRedelivery(ctx context.Context, e *events.Event, handler HandlerFunc, topic string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	b.Multiplier = 2.0

	if c.cfg.Redelivery.InitialInterval > 0 {
		b.InitialInterval = c.cfg.Redelivery.InitialInterval
	}
	if c.cfg.Redelivery.MaxInterval > 0 {
		b.MaxInterval = c.cfg.Redelivery.MaxInterval
	}
	if c.cfg.Redelivery.MaxElapsedTime > 0 {
		b.MaxElapsedTime = c.cfg.Redelivery.MaxElapsedTime
	}
	if c.cfg.Redelivery.Multiplier > 0 {
		b.Multiplier = c.cfg.Redelivery.Multiplier
	}

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := handler(ctx, e)
		if err != nil {
			metrics.RedeliveryAttemptsTotal.WithLabelValues(topic).Inc()
			c.logger.DebugwCtx(ctx, "Holding event for redelivery",
				"attempt", attempt,
				"error", err,
				"topic", topic,
			)
		}
		return err
	}, backoff.WithContext(b, ctx))
}
