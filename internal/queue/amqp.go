package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"

	"checkin/internal/config"
)

var redeliveryDelay = time.Second

// AMQPQueue publishes to and consumes from a durable RabbitMQ queue.
type AMQPQueue struct {
	conn      *amqp.Connection
	ch        *amqp.Channel
	queueName string
	cb        *gobreaker.CircuitBreaker
}

// NewAMQPQueue dials the broker and declares the queue.
func NewAMQPQueue(amqpURL, queueName string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", queueName, err)
	}

	return &AMQPQueue{
		conn:      conn,
		ch:        ch,
		queueName: queueName,
		cb:        config.NewCircuitBreaker("RabbitMQ", 0),
	}, nil
}

// Publish sends a persistent message; Type travels in the AMQP type property.
func (q *AMQPQueue) Publish(ctx context.Context, msg Message) error {
	_, err := q.cb.Execute(func() (interface{}, error) {
		return nil, q.ch.PublishWithContext(
			ctx,
			"",          // default exchange
			q.queueName, // routing key == queue name
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Type:         msg.Type,
				Body:         msg.Body,
			},
		)
	})
	return err
}

// Consume streams deliveries with manual acknowledgement. Run acks a delivery
// after its handler succeeds, drops it when the handler reports ErrMalformed
// and otherwise requeues it after a pause.
func (q *AMQPQueue) Consume(ctx context.Context) (<-chan Message, error) {
	deliveries, err := q.ch.ConsumeWithContext(ctx, q.queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("amqp consume: %w", err)
	}
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- Message{Type: d.Type, Body: d.Body, settle: settleDelivery(d)}:
				case <-ctx.Done():
					_ = d.Nack(false, true)
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func settleDelivery(d amqp.Delivery) func(error) {
	return func(err error) {
		switch {
		case err == nil:
			_ = d.Ack(false)
		case errors.Is(err, ErrMalformed):
			_ = d.Nack(false, false)
		default:
			time.Sleep(redeliveryDelay)
			_ = d.Nack(false, true)
		}
	}
}

// Close shuts the channel and the connection.
func (q *AMQPQueue) Close() error {
	if q.ch != nil {
		if err := q.ch.Close(); err != nil {
			return err
		}
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
