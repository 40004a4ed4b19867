package worker

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	emailQueueName     = "emails"
	analyticsQueueName = "analytics"
	dlxExchange        = "shop.dlx"
	emailDLQName       = "emails.dlq"
	analyticsDLQName   = "analytics.dlq"
)

// SetupRabbitMQ declares the exchanges, queues, and bindings both
// workers consume from. Failed messages dead-letter into a per-queue DLQ
// through a shared DLX.
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}

	for queue, dlq := range map[string]string{
		emailQueueName:     emailDLQName,
		analyticsQueueName: analyticsDLQName,
	} {
		if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare DLQ %s: %w", dlq, err)
		}
		if err := ch.QueueBind(dlq, queue, dlxExchange, false, nil); err != nil {
			return fmt.Errorf("bind DLQ %s: %w", dlq, err)
		}
		if _, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
			"x-dead-letter-exchange":    dlxExchange,
			"x-dead-letter-routing-key": queue,
		}); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}
