package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/config"
)

// messageWriter is the subset of *kafka.Writer used for publishing.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type dialFunc func(ctx context.Context, network, address string) (io.Closer, error)

// KafkaPublisher publishes events to one topic per entity kind. Messages are
// keyed by entity id so a single entity's events share a partition.
type KafkaPublisher struct {
	cfg    config.BrokerConfig
	logger *zap.Logger

	mu        sync.Mutex
	writers   map[string]messageWriter
	newWriter func(topic string) messageWriter
	dial      dialFunc
}

// Connect blocks until the broker answers or the configured attempts are
// exhausted, then returns a ready publisher. Cancelling ctx aborts the wait.
func Connect(ctx context.Context, cfg config.BrokerConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	dialer := &kafka.Dialer{Timeout: 5 * time.Second, ClientID: cfg.ClientID}
	dial := func(ctx context.Context, network, address string) (io.Closer, error) {
		conn, err := dialer.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	if err := waitForBroker(ctx, cfg, dial, logger); err != nil {
		return nil, err
	}

	p := newKafkaPublisher(cfg, logger)
	p.dial = dial
	p.newWriter = func(topic string) messageWriter {
		return &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			MaxAttempts:            cfg.MaxAttempts,
			WriteTimeout:           cfg.WriteTimeout,
			Async:                  cfg.Async,
			AllowAutoTopicCreation: true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					logger.Error("failed to deliver events",
						zap.String("topic", topic),
						zap.Int("count", len(messages)),
						zap.Error(err))
				}
			},
		}
	}
	logger.Info("connected to broker", zap.Strings("brokers", cfg.Brokers))
	return p, nil
}

func newKafkaPublisher(cfg config.BrokerConfig, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		cfg:     cfg,
		logger:  logger,
		writers: make(map[string]messageWriter),
	}
}

func waitForBroker(ctx context.Context, cfg config.BrokerConfig, dial dialFunc, logger *zap.Logger) error {
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("no brokers configured")
	}
	attempts := cfg.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(cfg.ConnectBackoff))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		address := cfg.Brokers[(attempt-1)%len(cfg.Brokers)]
		conn, err := dial(ctx, "tcp", address)
		if err != nil {
			logger.Warn("broker not reachable",
				zap.String("address", address),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		return conn.Close()
	})
	if err != nil {
		return fmt.Errorf("broker not reachable after %d attempts: %w", attempt, err)
	}
	return nil
}

// Ping reports whether any configured broker accepts a connection.
func (p *KafkaPublisher) Ping(ctx context.Context) error {
	if p.dial == nil || len(p.cfg.Brokers) == 0 {
		return errors.New("broker not configured")
	}
	var lastErr error
	for _, address := range p.cfg.Brokers {
		conn, err := p.dial(ctx, "tcp", address)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return lastErr
}

// Topic returns the topic that receives events for kind.
func (p *KafkaPublisher) Topic(kind string) string {
	return p.cfg.TopicPrefix + "." + kind
}

func (p *KafkaPublisher) writer(topic string) messageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := p.newWriter(topic)
	p.writers[topic] = w
	return w
}

// Publish hands the event to the topic writer. In async mode it returns before delivery.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if event.Kind == "" {
		return fmt.Errorf("event %s for %s has no kind", event.Type, event.EntityID)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.EntityID),
		Value: payload,
		Time:  event.EmittedAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}
	topic := p.Topic(event.Kind)
	if err := p.writer(topic).WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Close flushes and closes every topic writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close writer %s: %w", topic, err)
		}
	}
	p.writers = make(map[string]messageWriter)
	return firstErr
}
