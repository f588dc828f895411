package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher struct {
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	return &Publisher{channel: ch, exchange: exchange}, nil
}

func (p *Publisher) Close() error {
	return p.channel.Close()
}

// VerdictPublisher announces finished checks on the moderation exchange.
type VerdictPublisher struct {
	pub        *Publisher
	routingKey string
}

func NewVerdictPublisher(pub *Publisher) *VerdictPublisher {
	return &VerdictPublisher{pub: pub, routingKey: RoutingKeyVerdict}
}

func (vp *VerdictPublisher) PublishVerdict(ctx context.Context, msg []byte) error {
	err := vp.pub.channel.PublishWithContext(ctx,
		vp.pub.exchange,
		vp.routingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         msg,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish verdict: %w", err)
	}
	return nil
}

// DLQPublisher parks undeliverable check requests, bypassing the exchange.
type DLQPublisher struct {
	pub   *Publisher
	queue string
}

func NewDLQPublisher(pub *Publisher, dlqQueue string) *DLQPublisher {
	return &DLQPublisher{pub: pub, queue: dlqQueue}
}

func (dp *DLQPublisher) PublishToDLQ(ctx context.Context, msg []byte, reason string) error {
	now := time.Now().UTC()
	err := dp.pub.channel.PublishWithContext(ctx,
		"",
		dp.queue,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         msg,
			DeliveryMode: amqp.Persistent,
			Timestamp:    now,
			Headers: amqp.Table{
				"x-dlq-reason": reason,
				"x-failed-at":  now.Format(time.RFC3339),
			},
		},
	)
	if err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}
