package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges.
const (
	ExchangeTriggers Exchange = "chronos.triggers"
)

// Queues.
const (
	QueueTriggersFired  Queue = "triggers.fired"
	QueueTriggersFailed Queue = "triggers.failed"
)

// Routing keys.
const (
	RoutingKeyFired  RoutingKey = "fired"
	RoutingKeyFailed RoutingKey = "failed"
)

// SetupTopology объявляет exchanges, queues и bindings.
func SetupTopology(conn *Connection) error {
	return conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeTriggers), // name
			"direct",                 // type
			true,                     // durable
			false,                    // auto-deleted
			false,                    // internal
			false,                    // no-wait
			nil,                      // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeTriggers, err)
		}

		queues := []Queue{QueueTriggersFired, QueueTriggersFailed}
		for _, q := range queues {
			_, err := ch.QueueDeclare(
				string(q), // name
				true,      // durable
				false,     // delete when unused
				false,     // exclusive
				false,     // no-wait
				nil,       // arguments
			)
			if err != nil {
				return fmt.Errorf("declare queue %s: %w", q, err)
			}
		}

		bindings := []struct {
			queue      Queue
			routingKey RoutingKey
		}{
			{QueueTriggersFired, RoutingKeyFired},
			{QueueTriggersFailed, RoutingKeyFailed},
		}
		for _, b := range bindings {
			err := ch.QueueBind(
				string(b.queue),          // queue name
				string(b.routingKey),     // routing key
				string(ExchangeTriggers), // exchange
				false,                    // no-wait
				nil,                      // arguments
			)
			if err != nil {
				return fmt.Errorf("bind queue %s: %w", b.queue, err)
			}
		}

		return nil
	})
}
