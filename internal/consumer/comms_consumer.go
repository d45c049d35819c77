package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/hockeypickup/comms/internal/models"
	"github.com/hockeypickup/comms/internal/services"
)

// FailureAlerter emails the operator about events the queue gave up on.
// *services.CommsHandler is the production implementation.
type FailureAlerter interface {
	SendRawContentEmail(ctx context.Context, subject, rawContent string) error
}

// CommsConsumer pulls communication events off the queue and hands them to
// the processor. A processing failure nacks with requeue until the delivery
// limit is reached, then dead-letters and alerts the operator — the queue is
// the only retry authority.
type CommsConsumer struct {
	base          *BaseConsumer
	processor     *services.CommsProcessor
	alerter       FailureAlerter
	logger        *slog.Logger
	maxDeliveries int
}

func NewCommsConsumer(base *BaseConsumer, processor *services.CommsProcessor, alerter FailureAlerter, logger *slog.Logger, maxDeliveries int) *CommsConsumer {
	if maxDeliveries <= 0 {
		maxDeliveries = 4
	}
	return &CommsConsumer{
		base:          base,
		processor:     processor,
		alerter:       alerter,
		logger:        logger,
		maxDeliveries: maxDeliveries,
	}
}

func (c *CommsConsumer) Start(ctx context.Context) error {
	return c.base.Start(ctx, c.handleDelivery)
}

func (c *CommsConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) error {
	var event models.CommsMessage
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error("failed to unmarshal comms message", slog.Any("error", err))
		_ = msg.Reject(false)
		return err
	}
	if event.EventID() == "" {
		event.SetEventID(uuid.NewString())
	}

	if err := c.processor.Process(ctx, &event); err != nil {
		requeue := c.shouldRetry(&msg)
		if requeue {
			c.logger.Warn("processing failed, message requeued",
				slog.String("event_id", event.EventID()),
				slog.String("type", event.Type()),
				slog.Any("error", err))
		} else {
			c.logger.Error("processing failed, message dead-lettered",
				slog.String("event_id", event.EventID()),
				slog.String("type", event.Type()),
				slog.Any("error", err))
			c.alertDeadLetter(ctx, &event, err)
		}
		_ = msg.Nack(false, requeue)
		return err
	}

	return msg.Ack(false)
}

// alertDeadLetter emails the operator so a dead-lettered event is noticed
// without watching the DLQ. Alerting is best effort; a failure here must not
// mask the original fault.
func (c *CommsConsumer) alertDeadLetter(ctx context.Context, event *models.CommsMessage, cause error) {
	if c.alerter == nil {
		return
	}
	detail := fmt.Sprintf("Comms event %s (%s) dead-lettered after %d deliveries:\n%v",
		event.EventID(), event.Type(), c.maxDeliveries, cause)
	if err := c.alerter.SendRawContentEmail(ctx, "Comms Processing Failure", detail); err != nil {
		c.logger.Error("failed to send dead-letter alert",
			slog.String("event_id", event.EventID()),
			slog.Any("error", err))
	}
}

func (c *CommsConsumer) shouldRetry(msg *amqp.Delivery) bool {
	return deliveryAttempts(msg) < c.maxDeliveries
}

func deliveryAttempts(msg *amqp.Delivery) int {
	if msg.Headers == nil {
		if msg.Redelivered {
			return 1
		}
		return 0
	}
	if raw, ok := msg.Headers["x-death"]; ok {
		if deaths, ok := raw.([]interface{}); ok && len(deaths) > 0 {
			if table, ok := deaths[0].(amqp.Table); ok {
				if count, ok := table["count"].(int64); ok {
					return int(count)
				}
			}
		}
	}
	if msg.Redelivered {
		return 1
	}
	return 0
}
