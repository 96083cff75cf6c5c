package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sapliy/reminder-engine/pkg/observability"
)

var (
	ErrCircuitOpen  = errors.New("circuit breaker is open")
	ErrNotConnected = errors.New("rabbitmq connection is not available")
)

// Config holds configuration for the RabbitMQ client
type Config struct {
	URL string

	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	HeartbeatTimeout  time.Duration

	CircuitBreakerEnabled   bool
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

func DefaultConfig(url string) Config {
	return Config{
		URL:                     url,
		ReconnectDelay:          time.Second,
		MaxReconnectDelay:       60 * time.Second,
		HeartbeatTimeout:        10 * time.Second,
		CircuitBreakerEnabled:   true,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
	}
}

type RabbitMQClient struct {
	config Config
	logger *observability.Logger
	cb     *CircuitBreaker

	mu           sync.RWMutex
	conn         *amqp.Connection
	ch           *amqp.Channel
	reconnecting bool
	closed       bool
}

func NewRabbitMQClient(config Config, logger *observability.Logger) (*RabbitMQClient, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if config.ReconnectDelay == 0 {
		config.ReconnectDelay = time.Second
	}
	if config.MaxReconnectDelay == 0 {
		config.MaxReconnectDelay = 60 * time.Second
	}
	if config.HeartbeatTimeout == 0 {
		config.HeartbeatTimeout = 10 * time.Second
	}

	client := &RabbitMQClient{
		config: config,
		logger: logger,
		cb:     NewCircuitBreaker(config.CircuitBreakerThreshold, config.CircuitBreakerTimeout),
	}

	notify, err := client.connect()
	if err != nil {
		return nil, err
	}
	go client.watch(notify)

	return client, nil
}

func (r *RabbitMQClient) connect() (chan *amqp.Error, error) {
	r.logger.Info("Connecting to RabbitMQ", "url", maskURL(r.config.URL))

	conn, err := amqp.DialConfig(r.config.URL, amqp.Config{
		Heartbeat: r.config.HeartbeatTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	notify := conn.NotifyClose(make(chan *amqp.Error, 1))

	r.mu.Lock()
	r.conn = conn
	r.ch = ch
	r.reconnecting = false
	r.mu.Unlock()

	r.logger.Info("Connected to RabbitMQ")
	return notify, nil
}

// watch waits for the connection to drop and reconnects with exponential
// backoff until it succeeds or the client is closed.
func (r *RabbitMQClient) watch(notify chan *amqp.Error) {
	for {
		err, ok := <-notify
		if !ok || err == nil {
			return
		}

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return
		}
		r.reconnecting = true
		r.mu.Unlock()
		r.logger.Warn("RabbitMQ connection closed, reconnecting", "error", err)

		backoff := r.config.ReconnectDelay
		for {
			r.mu.RLock()
			closed := r.closed
			r.mu.RUnlock()
			if closed {
				return
			}

			next, cerr := r.connect()
			if cerr == nil {
				notify = next
				break
			}
			r.logger.Warn("Failed to reconnect to RabbitMQ", "retry_in", backoff, "error", cerr)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > r.config.MaxReconnectDelay {
				backoff = r.config.MaxReconnectDelay
			}
		}
	}
}

func (r *RabbitMQClient) channel() (*amqp.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.reconnecting || r.ch == nil {
		return nil, ErrNotConnected
	}
	return r.ch, nil
}

func (r *RabbitMQClient) DeclareQueue(name string) (amqp.Queue, error) {
	ch, err := r.channel()
	if err != nil {
		return amqp.Queue{}, err
	}
	return ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

// DeclareQueueWithDLQ declares name plus a name.dlq dead-letter queue that
// receives rejected messages.
func (r *RabbitMQClient) DeclareQueueWithDLQ(name string) (amqp.Queue, error) {
	ch, err := r.channel()
	if err != nil {
		return amqp.Queue{}, err
	}

	dlqName := name + ".dlq"
	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare DLQ: %w", err)
	}

	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlqName,
		},
	)
}

func (r *RabbitMQClient) Publish(ctx context.Context, queueName string, body []byte) error {
	if r.config.CircuitBreakerEnabled && !r.cb.Allow() {
		return ErrCircuitOpen
	}

	ch, err := r.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		"",        // exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		})

	if r.config.CircuitBreakerEnabled {
		if err != nil {
			r.cb.RecordFailure()
		} else {
			r.cb.RecordSuccess()
		}
	}
	return err
}

// ConsumeWithContext delivers messages to handler until ctx is cancelled,
// re-registering the consumer after a reconnect. A handler error rejects the
// message without requeue so it lands in the dead-letter queue.
func (r *RabbitMQClient) ConsumeWithContext(ctx context.Context, queueName string, handler func(ctx context.Context, body []byte) error) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		ch, err := r.channel()
		if err != nil {
			if !sleep(ctx, r.config.ReconnectDelay) {
				return nil
			}
			continue
		}

		msgs, err := ch.ConsumeWithContext(ctx, queueName, "", false, false, false, false, nil)
		if err != nil {
			r.logger.Warn("Failed to register a consumer", "queue", queueName, "error", err)
			if !sleep(ctx, 2*time.Second) {
				return nil
			}
			continue
		}

		r.drain(ctx, queueName, msgs, handler)
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Warn("Consumer channel closed, waiting for reconnection", "queue", queueName)
		if !sleep(ctx, r.config.ReconnectDelay) {
			return nil
		}
	}
}

func (r *RabbitMQClient) drain(ctx context.Context, queueName string, msgs <-chan amqp.Delivery, handler func(ctx context.Context, body []byte) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				return
			}
			if err := handler(ctx, d.Body); err != nil {
				r.logger.Warn("Error handling message", "queue", queueName, "error", err)
				d.Nack(false, false)
			} else {
				d.Ack(false)
			}
		}
	}
}

func (r *RabbitMQClient) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.ch != nil {
		r.ch.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}

func (r *RabbitMQClient) IsHealthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn != nil && !r.conn.IsClosed() && !r.reconnecting
}

func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
