// Package notify publishes order lifecycle events to RabbitMQ. The email
// worker consumes them to send confirmation and out-for-delivery mail.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/crumbcraft/bakehouse-golang/internal/models"
)

const queueName = "order-events"

// OrderEvent is the wire payload on the order-events queue.
type OrderEvent struct {
	Type        string  `json:"type"` // 'order.confirmed' or 'order.out_for_delivery'
	OrderID     int64   `json:"orderId"`
	OrderNumber string  `json:"orderNumber"`
	Email       string  `json:"email"`
	Total       float64 `json:"total"`
	Status      string  `json:"status"`
}

// Publisher is the outbound side of the order-events queue.
type Publisher interface {
	OrderConfirmed(ctx context.Context, order *models.Order) error
	OrderOutForDelivery(ctx context.Context, order *models.Order) error
	Close()
}

// AMQPPublisher publishes over a long-lived RabbitMQ channel.
type AMQPPublisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel failed: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare failed: %w", err)
	}

	return &AMQPPublisher{conn: conn, ch: ch}, nil
}

func (p *AMQPPublisher) OrderConfirmed(ctx context.Context, order *models.Order) error {
	return p.publish(ctx, OrderEvent{
		Type:        "order.confirmed",
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Email:       order.ContactEmail,
		Total:       order.TotalAmount,
		Status:      order.Status,
	})
}

func (p *AMQPPublisher) OrderOutForDelivery(ctx context.Context, order *models.Order) error {
	return p.publish(ctx, OrderEvent{
		Type:        "order.out_for_delivery",
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Email:       order.ContactEmail,
		Total:       order.TotalAmount,
		Status:      order.Status,
	})
}

func (p *AMQPPublisher) publish(ctx context.Context, event OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() {
	if err := p.ch.Close(); err != nil {
		log.Printf("error closing rabbitmq channel: %v", err)
	}
	if err := p.conn.Close(); err != nil {
		log.Printf("error closing rabbitmq connection: %v", err)
	}
}

// NopPublisher is used when no broker is configured (local development).
// Events are logged and dropped.
type NopPublisher struct{}

func (NopPublisher) OrderConfirmed(_ context.Context, order *models.Order) error {
	log.Printf("order-events disabled: dropping confirmation for %s", order.OrderNumber)
	return nil
}

func (NopPublisher) OrderOutForDelivery(_ context.Context, order *models.Order) error {
	log.Printf("order-events disabled: dropping out-for-delivery for %s", order.OrderNumber)
	return nil
}

func (NopPublisher) Close() {}
