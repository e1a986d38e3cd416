package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JobPublisher hands completed-upload projects to the downstream processing
// service over a durable topic exchange.
type JobPublisher struct {
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

func NewJobPublisher(conn *amqp.Connection, exchange, routingKey string) (*JobPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true, // durable
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	return &JobPublisher{
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

func (p *JobPublisher) Publish(ctx context.Context, body json.RawMessage) error {
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		p.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}
