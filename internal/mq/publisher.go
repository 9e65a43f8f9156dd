package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Chronos/internal/domain"
)

// EventType — тип события в очереди.
type EventType string

// Типы событий.
const (
	EventTypeTriggerFired  EventType = "trigger.fired"
	EventTypeTriggerFailed EventType = "trigger.failed"
)

// Publisher публикует события срабатываний в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Envelope — сообщение для публикации.
type Envelope struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип события.
	Type EventType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// TriggerFiredPayload — payload события о доставленном срабатывании.
type TriggerFiredPayload struct {
	ScheduleID   uuid.UUID `json:"schedule_id"`
	ScheduleName string    `json:"schedule_name"`
	FireTime     time.Time `json:"fire_time"`
	Attempts     int       `json:"attempts"`
}

// TriggerFailedPayload — payload события об исчерпанной доставке.
type TriggerFailedPayload struct {
	ScheduleID   uuid.UUID `json:"schedule_id"`
	ScheduleName string    `json:"schedule_name"`
	FireTime     time.Time `json:"fire_time"`
	Attempts     int       `json:"attempts"`
	Error        string    `json:"error,omitempty"`
}

// Publish публикует сообщение в exchange срабатываний.
func (p *Publisher) Publish(ctx context.Context, routingKey RoutingKey, env *Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(ExchangeTriggers), // exchange
			string(routingKey),       // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    env.ID,
				Timestamp:    env.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", ExchangeTriggers, routingKey, err)
		}

		p.logger.Debug("published event",
			"routing_key", routingKey,
			"message_id", env.ID,
			"type", env.Type,
		)

		return nil
	})
}

// PublishTriggerFired публикует событие о доставленном срабатывании.
func (p *Publisher) PublishTriggerFired(ctx context.Context, evt *domain.TriggerEvent) error {
	env := &Envelope{
		ID:   uuid.New().String(),
		Type: EventTypeTriggerFired,
		Payload: TriggerFiredPayload{
			ScheduleID:   evt.ScheduleID,
			ScheduleName: evt.ScheduleName,
			FireTime:     evt.FireTime,
			Attempts:     evt.Attempt,
		},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, RoutingKeyFired, env)
}

// PublishTriggerFailed публикует событие об исчерпанной доставке.
func (p *Publisher) PublishTriggerFailed(ctx context.Context, evt *domain.TriggerEvent) error {
	env := &Envelope{
		ID:   uuid.New().String(),
		Type: EventTypeTriggerFailed,
		Payload: TriggerFailedPayload{
			ScheduleID:   evt.ScheduleID,
			ScheduleName: evt.ScheduleName,
			FireTime:     evt.FireTime,
			Attempts:     evt.Attempt,
			Error:        evt.Error,
		},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, RoutingKeyFailed, env)
}
