package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"ontrack-driver/internal/events"
	"ontrack-driver/internal/logx"
)

// orderEvent is the message shape the platform publishes when an order
// changes server-side.
type orderEvent struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// KafkaConsumer listens for order-change events and turns them into
// notifications on the bus. The subscribed screens react by reloading.
type KafkaConsumer struct {
	group  sarama.ConsumerGroup
	topic  string
	bus    *events.Bus
	logger logx.Logger
}

// NewKafkaConsumer returns nil (no consumer, not an error) when the broker
// settings are absent, so deployments without Kafka just skip it.
func NewKafkaConsumer(brokers []string, groupID, topic string, bus *events.Bus, logger logx.Logger) (*KafkaConsumer, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" || strings.TrimSpace(groupID) == "" {
		return nil, nil
	}

	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}

	return &KafkaConsumer{
		group:  group,
		topic:  topic,
		bus:    bus,
		logger: logger,
	}, nil
}

// Run consumes until the context is canceled.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	if c == nil {
		return nil
	}

	h := &groupHandler{c: c}

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("kafka consume error", logx.Err(err))
			time.Sleep(time.Second)
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *KafkaConsumer) Close() error {
	if c == nil {
		return nil
	}
	return c.group.Close()
}

type groupHandler struct{ c *KafkaConsumer }

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var ev orderEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			h.c.logger.Warn("kafka bad json", logx.Err(err))
			sess.MarkMessage(msg, "")
			continue
		}
		if strings.TrimSpace(ev.OrderID) == "" {
			h.c.logger.Warn("kafka event without order_id")
			sess.MarkMessage(msg, "")
			continue
		}

		h.c.bus.PublishOrderNotification(events.OrderNotification{
			OrderID: ev.OrderID,
			Message: ev.Message,
		})
		sess.MarkMessage(msg, "")
	}
	return nil
}
