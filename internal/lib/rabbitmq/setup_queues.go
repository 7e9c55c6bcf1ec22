package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// QueueConfig binds a queue name to its routing key on the notifications
// exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues lists the queues consumed by the notification
// workers.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notification.receipt", RoutingKey: "payment.receipt"},
		{QueueName: "notification.password-reset", RoutingKey: "auth.password-reset"},
	}
}

// SetupQueues declares the notifications exchange and binds the known
// queues to it. Declarations are idempotent.
func SetupQueues(ch *amqp.Channel, exchange string) error {
	const op = "rabbitmq.SetupQueues"
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, q := range GetNotificationQueues() {
		if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, exchange, false, nil); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}
