package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"
)

// Consumer aggregates the event topic into AnalyticsMetrics through a
// sarama consumer group.
type Consumer struct {
	consumer sarama.ConsumerGroup
	topic    string
	metrics  *AnalyticsMetrics
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string, group, topic string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true

	consumer, err := sarama.NewConsumerGroup(brokers, group, config)
	if err != nil {
		return nil, err
	}

	c := newConsumer(topic)
	c.consumer = consumer
	return c, nil
}

func newConsumer(topic string) *Consumer {
	if topic == "" {
		topic = DefaultTopic
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		topic:   topic,
		metrics: NewAnalyticsMetrics(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins consuming events
func (c *Consumer) Start() {
	go func() {
		for {
			if err := c.consumer.Consume(c.ctx, []string{c.topic}, c); err != nil {
				log.Error().Err(err).Msg("kafka consumer")
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()
	go func() {
		for err := range c.consumer.Errors() {
			log.Warn().Err(err).Msg("kafka consumer group")
		}
	}()
	log.Info().Str("topic", c.topic).Msg("kafka consumer started")
}

// Setup is called at the beginning of a new session
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is called at the end of a session
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a partition
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		c.processMessage(msg)
		session.MarkMessage(msg, "")
	}
	return nil
}

func (c *Consumer) processMessage(msg *sarama.ConsumerMessage) {
	ev, err := DecodeEvent(msg.Value)
	if err != nil {
		log.Warn().Err(err).Int64("offset", msg.Offset).Msg("skipping event")
		return
	}
	c.metrics.Apply(ev)
}

// Metrics returns the live aggregate.
func (c *Consumer) Metrics() *AnalyticsMetrics {
	return c.metrics
}

// GetMetrics returns a copy of the current metrics
func (c *Consumer) GetMetrics() *AnalyticsMetrics {
	return c.metrics.Snapshot()
}

// Stop stops the consumer
func (c *Consumer) Stop() {
	c.cancel()
	if c.consumer != nil {
		if err := c.consumer.Close(); err != nil {
			log.Warn().Err(err).Msg("close kafka consumer")
		}
	}
}
