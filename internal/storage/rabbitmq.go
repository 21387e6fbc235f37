package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"docintel-go/internal/config"
	"docintel-go/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

// MessageQueue publishes extraction events.
type MessageQueue interface {
	PublishMessage(ctx context.Context, exchange, routingKey, messageID string, body []byte) error
	EnsureExchange(name, kind string, durable bool) error
	EnsureQueue(name string, durable bool) error
	BindQueue(queue, exchange, routingKey string) error
	Close() error
}

var _ MessageQueue = (*RabbitMQ)(nil)

// RabbitMQ holds one connection and a pool of channels.
type RabbitMQ struct {
	conn        *amqp.Connection
	channelPool sync.Pool
	declared    map[string]bool
	mu          sync.Mutex
	publishMu   sync.Mutex
	cfg         *config.RabbitMQConfig
	log         zerolog.Logger
}

// NewRabbitMQ dials the broker and checks that a channel can be opened.
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	mq := &RabbitMQ{
		conn:     conn,
		declared: make(map[string]bool),
		cfg:      cfg,
		log:      logger.Component("rabbitmq"),
	}
	mq.channelPool = sync.Pool{
		New: func() interface{} {
			ch, err := conn.Channel()
			if err != nil {
				mq.log.Error().Err(err).Msg("open channel")
				return nil
			}
			return ch
		},
	}

	ch := mq.getChannel()
	if ch == nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel")
	}
	mq.putChannel(ch)
	mq.log.Info().Msg("rabbitmq connected")
	return mq, nil
}

func (r *RabbitMQ) getChannel() *amqp.Channel {
	v := r.channelPool.Get()
	if v == nil {
		return nil
	}
	ch, _ := v.(*amqp.Channel)
	if ch == nil || ch.IsClosed() {
		fresh, err := r.conn.Channel()
		if err != nil {
			r.log.Error().Err(err).Msg("open channel")
			return nil
		}
		return fresh
	}
	return ch
}

func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch != nil && !ch.IsClosed() {
		r.channelPool.Put(ch)
	}
}

// Close closes the connection.
func (r *RabbitMQ) Close() error {
	return r.conn.Close()
}

// withChannel runs fn once per key; later calls with the same key are no-ops.
func (r *RabbitMQ) withChannel(key string, fn func(ch *amqp.Channel) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.declared[key] {
		return nil
	}
	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("no rabbitmq channel available")
	}
	defer r.putChannel(ch)
	if err := fn(ch); err != nil {
		return err
	}
	r.declared[key] = true
	return nil
}

// EnsureExchange declares an exchange.
func (r *RabbitMQ) EnsureExchange(name, kind string, durable bool) error {
	if name == "" || name == "amq.default" {
		return fmt.Errorf("invalid exchange name %q", name)
	}
	return r.withChannel("exchange:"+name, func(ch *amqp.Channel) error {
		if err := ch.ExchangeDeclare(name, kind, durable, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", name, err)
		}
		return nil
	})
}

// EnsureQueue declares a queue.
func (r *RabbitMQ) EnsureQueue(name string, durable bool) error {
	return r.withChannel("queue:"+name, func(ch *amqp.Channel) error {
		if _, err := ch.QueueDeclare(name, durable, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", name, err)
		}
		return nil
	})
}

// BindQueue binds queue to exchange with routingKey.
func (r *RabbitMQ) BindQueue(queue, exchange, routingKey string) error {
	return r.withChannel("binding:"+exchange+":"+queue+":"+routingKey, func(ch *amqp.Channel) error {
		if err := ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s (%s): %w", queue, exchange, routingKey, err)
		}
		return nil
	})
}

// SetupTopology declares the events exchange and binds the audit queue to
// both extraction routing keys.
func (r *RabbitMQ) SetupTopology() error {
	if err := r.EnsureExchange(r.cfg.EventsExchange, amqp.ExchangeTopic, true); err != nil {
		return err
	}
	if r.cfg.AuditQueue == "" {
		return nil
	}
	if err := r.EnsureQueue(r.cfg.AuditQueue, true); err != nil {
		return err
	}
	for _, key := range []string{r.cfg.ResumeRoutingKey, r.cfg.DocumentRoutingKey} {
		if key == "" {
			continue
		}
		if err := r.BindQueue(r.cfg.AuditQueue, r.cfg.EventsExchange, key); err != nil {
			return err
		}
	}
	return nil
}

// amqpHeaderCarrier adapts amqp.Table for trace context propagation.
type amqpHeaderCarrier amqp.Table

func (c amqpHeaderCarrier) Get(key string) string {
	v, _ := c[key].(string)
	return v
}

func (c amqpHeaderCarrier) Set(key, value string) { c[key] = value }

func (c amqpHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// PublishMessage publishes a persistent JSON message carrying the current
// trace context in its headers.
func (r *RabbitMQ) PublishMessage(ctx context.Context, exchange, routingKey, messageID string, body []byte) error {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("no rabbitmq channel available")
	}
	defer r.putChannel(ch)

	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, amqpHeaderCarrier(headers))

	return ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		Headers:      headers,
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    messageID,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// PublishJSON marshals data and publishes it.
func (r *RabbitMQ) PublishJSON(ctx context.Context, exchange, routingKey, messageID string, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return r.PublishMessage(ctx, exchange, routingKey, messageID, body)
}

// StartConsumer delivers messages from queue to handler until ctx ends.
// A false return from handler requeues the message.
func (r *RabbitMQ) StartConsumer(ctx context.Context, queue string, prefetch int, handler func(context.Context, amqp.Delivery) bool) error {
	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("no rabbitmq channel available")
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		r.putChannel(ch)
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		r.putChannel(ch)
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	go func() {
		defer r.putChannel(ch)
		r.log.Info().Str("queue", queue).Int("prefetch", prefetch).Msg("consumer started")
		defer r.log.Info().Str("queue", queue).Msg("consumer stopped")
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				msgCtx := otel.GetTextMapPropagator().Extract(ctx, amqpHeaderCarrier(d.Headers))
				if handler(msgCtx, d) {
					if err := d.Ack(false); err != nil {
						r.log.Warn().Err(err).Msg("ack failed")
					}
				} else if err := d.Nack(false, true); err != nil {
					r.log.Warn().Err(err).Msg("nack failed")
				}
			}
		}
	}()
	return nil
}
