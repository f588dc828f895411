package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	RoutingKeyCheck   = "video.check"
	RoutingKeyVerdict = "video.verdict"

	attemptHeader = "x-attempt"
	maxBackoff    = 60 * time.Second
)

// MessageHandler processes one delivery. A non-nil error asks for a retry.
type MessageHandler func(ctx context.Context, body []byte, attempt int) error

type Consumer struct {
	conn        *amqp.Connection
	channel     *amqp.Channel
	retry       *amqp.Channel
	queue       string
	workerCount int
	baseDelay   time.Duration
	handler     MessageHandler
	logger      *zap.Logger
	wg          sync.WaitGroup
}

type ConsumerConfig struct {
	URL          string
	Exchange     string
	Queue        string
	DLQ          string
	VerdictQueue string
	Prefetch     int
	WorkerCount  int
	BaseDelayMs  int
}

func NewConsumer(cfg ConsumerConfig, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	retry, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open retry channel: %w", err)
	}

	return &Consumer{
		conn:        conn,
		channel:     ch,
		retry:       retry,
		queue:       cfg.Queue,
		workerCount: cfg.WorkerCount,
		baseDelay:   time.Duration(cfg.BaseDelayMs) * time.Millisecond,
		handler:     handler,
		logger:      logger,
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg ConsumerConfig) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range []string{cfg.Queue, cfg.DLQ, cfg.VerdictQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	if err := ch.QueueBind(cfg.Queue, RoutingKeyCheck, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind check queue: %w", err)
	}
	if err := ch.QueueBind(cfg.VerdictQueue, RoutingKeyVerdict, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind verdict queue: %w", err)
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.ConsumeWithContext(
		ctx,
		c.queue,
		"",
		false, // autoAck=false
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.logger.Info("starting worker pool",
		zap.Int("workers", c.workerCount),
		zap.String("queue", c.queue),
	)

	for i := 0; i < c.workerCount; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, deliveries)
	}

	<-ctx.Done()
	c.logger.Info("context cancelled, waiting for workers to finish")
	c.wg.Wait()
	return nil
}

func (c *Consumer) worker(ctx context.Context, id int, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	log := c.logger.With(zap.Int("worker_id", id))
	log.Info("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Info("delivery channel closed")
				return
			}
			c.processDelivery(ctx, d, log)
		}
	}
}

func (c *Consumer) processDelivery(ctx context.Context, d amqp.Delivery, log *zap.Logger) {
	attempt := attemptFromHeaders(d.Headers)

	err := c.handler(ctx, d.Body, attempt)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	if ctx.Err() != nil {
		log.Info("shutting down, returning message to queue", zap.Uint64("delivery_tag", d.DeliveryTag))
		_ = d.Nack(false, true)
		return
	}

	delay := backoff(c.baseDelay, attempt)
	log.Warn("message processing failed, retrying",
		zap.Error(err),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
	)

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		_ = d.Nack(false, true)
		return
	}

	if err := c.republish(ctx, d, attempt+1); err != nil {
		log.Error("failed to republish message, requeueing", zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// republish puts a copy of d back on the queue carrying the next attempt number.
func (c *Consumer) republish(ctx context.Context, d amqp.Delivery, attempt int) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[attemptHeader] = int32(attempt)

	return c.retry.PublishWithContext(ctx,
		"",
		c.queue,
		false, false,
		amqp.Publishing{
			ContentType:  d.ContentType,
			Body:         d.Body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Headers:      headers,
		},
	)
}

func attemptFromHeaders(headers amqp.Table) int {
	var n int64
	switch v := headers[attemptHeader].(type) {
	case int:
		n = int64(v)
	case int8:
		n = int64(v)
	case int16:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case uint8:
		n = int64(v)
	case uint16:
		n = int64(v)
	case uint32:
		n = int64(v)
	}
	if n < 1 {
		return 1
	}
	return int(n)
}

func backoff(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt && delay < maxBackoff; i++ {
		delay *= 2
	}
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

func (c *Consumer) Close() error {
	if c.retry != nil {
		c.retry.Close()
	}
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
