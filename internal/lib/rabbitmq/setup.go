package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/designhub/internal/models"
)

// ExchangeName direct-обменник доменных событий.
const ExchangeName = "notifications"

// QueueConfig описывает очередь и routing keys, которыми она привязана к обменнику.
type QueueConfig struct {
	QueueName   string
	RoutingKeys []string
}

// EmailQueue очередь писем пользователям.
const EmailQueue = "notifications.email"

// NotificationQueues возвращает очереди, которые читает notification-sender.
func NotificationQueues() []QueueConfig {
	return []QueueConfig{
		{
			QueueName: EmailQueue,
			RoutingKeys: []string{
				models.EventUserRegistered,
				models.EventSubscriptionChanged,
				models.EventRequestStatusChanged,
			},
		},
	}
}

// SetupChannel открывает канал, объявляет обменник и очереди и привязывает их.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			q.QueueName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}

		for _, key := range q.RoutingKeys {
			if err := ch.QueueBind(q.QueueName, key, ExchangeName, false, nil); err != nil {
				return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, key, err)
			}
		}
	}

	return ch, nil
}
