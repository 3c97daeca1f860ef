package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ds124wfegd/notification-engine/internal/entity"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// rabbitBroker maps each logical channel onto a fanout exchange. Every
// subscriber session gets its own exclusive auto-delete queue, which gives
// the same at-most-once-per-session semantics as Redis pub/sub.
type rabbitBroker struct {
	conn *amqp.Connection

	mu       sync.Mutex
	pubCh    *amqp.Channel
	declared map[string]bool
}

type RabbitConfig struct {
	URL      string
	Host     string
	Port     int
	Username string
	Password string
}

func (c RabbitConfig) amqpURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.Username, c.Password, c.Host, c.Port)
}

func NewRabbitBroker(cfg RabbitConfig) (Broker, error) {
	conn, err := amqp.Dial(cfg.amqpURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	pubCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &rabbitBroker{
		conn:     conn,
		pubCh:    pubCh,
		declared: map[string]bool{},
	}, nil
}

func (b *rabbitBroker) declareExchange(ch *amqp.Channel, channel string) error {
	return ch.ExchangeDeclare(
		channel,  // name
		"fanout", // kind
		false,    // durable: transport is best-effort by contract
		true,     // auto-delete
		false,    // internal
		false,    // no-wait
		nil,
	)
}

func (b *rabbitBroker) Publish(ctx context.Context, channel string, event *entity.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.declared[channel] {
		if err := b.declareExchange(b.pubCh, channel); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", channel, err)
		}
		b.declared[channel] = true
	}

	err = b.pubCh.PublishWithContext(
		ctx,
		channel, // exchange
		"",      // routing key: fanout ignores it
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	return nil
}

func (b *rabbitBroker) Subscribe(ctx context.Context, channels []string, handler Handler) (Subscription, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// One exclusive queue per session, bound to every subscribed exchange.
	q, err := ch.QueueDeclare(
		"",    // name: server-generated
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare session queue: %w", err)
	}

	for _, channel := range channels {
		if err := b.declareExchange(ch, channel); err != nil {
			ch.Close()
			return nil, fmt.Errorf("failed to declare exchange %s: %w", channel, err)
		}
		if err := ch.QueueBind(q.Name, "", channel, false, nil); err != nil {
			ch.Close()
			return nil, fmt.Errorf("failed to bind %s to %s: %w", q.Name, channel, err)
		}
	}

	msgs, err := ch.Consume(
		q.Name,
		"",    // consumer
		true,  // auto-ack: the store, not the broker, is the durability layer
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume from %s: %w", q.Name, err)
	}

	sub := &rabbitSubscription{
		channel: ch,
		errCh:   make(chan error, 1),
		done:    make(chan struct{}),
	}

	closeCh := ch.NotifyClose(make(chan *amqp.Error, 1))
	go sub.receive(ctx, msgs, closeCh, handler)

	return sub, nil
}

func (b *rabbitBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	if err := b.pubCh.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := b.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors while closing RabbitMQ: %v", errs)
	}
	return nil
}

type rabbitSubscription struct {
	channel *amqp.Channel
	errCh   chan error
	done    chan struct{}
}

func (s *rabbitSubscription) receive(ctx context.Context, msgs <-chan amqp.Delivery, closeCh <-chan *amqp.Error, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case amqpErr := <-closeCh:
			if amqpErr != nil {
				select {
				case s.errCh <- amqpErr:
				default:
				}
			}
			return
		case msg, ok := <-msgs:
			if !ok {
				select {
				case s.errCh <- fmt.Errorf("delivery channel closed"):
				default:
				}
				return
			}

			var event entity.Event
			if err := json.Unmarshal(msg.Body, &event); err != nil {
				logrus.Warnf("Dropping undecodable event: %v", err)
				continue
			}

			handler(&event)
		}
	}
}

func (s *rabbitSubscription) Err() <-chan error {
	return s.errCh
}

func (s *rabbitSubscription) Close() error {
	close(s.done)
	return s.channel.Close()
}
