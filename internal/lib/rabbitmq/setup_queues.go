package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// EventsExchange — exchange для событий жизненного цикла подписок.
const EventsExchange = "entitlements.events"

// Ключи маршрутизации публикуемых событий.
const (
	RoutingKeyCreated   = "subscription.created"
	RoutingKeyCancelled = "subscription.cancelled"
	RoutingKeyRenewed   = "subscription.renewed"
	RoutingKeyExpired   = "subscription.expired"
)

// QueueConfig описывает очередь и её ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetEventQueues возвращает очереди для потребителей событий подписок.
func GetEventQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "entitlements.subscription.created", RoutingKey: RoutingKeyCreated},
		{QueueName: "entitlements.subscription.cancelled", RoutingKey: RoutingKeyCancelled},
		{QueueName: "entitlements.subscription.renewed", RoutingKey: RoutingKeyRenewed},
		{QueueName: "entitlements.subscription.expired", RoutingKey: RoutingKeyExpired},
	}
}

// SetupChannel открывает канал, объявляет exchange и привязывает очереди.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		EventsExchange,
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

		err = ch.QueueBind(
			q.QueueName,
			q.RoutingKey,
			EventsExchange,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
