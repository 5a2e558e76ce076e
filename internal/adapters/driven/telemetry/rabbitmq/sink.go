// Package rabbitmq publishes query and ingestion events to a RabbitMQ queue
// for an external analytics consumer.
//
// Events are buffered and published by a background goroutine so recording
// never waits on the broker. When the buffer is full, events are dropped and
// counted rather than blocking the query path.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Sink implements the interface.
var _ driven.EventSink = (*Sink)(nil)

// Default configuration values.
const (
	DefaultQueue          = "sercha.events"
	DefaultBufferSize     = 256
	DefaultPublishTimeout = 5 * time.Second
)

// Event kinds carried in the message type property.
const (
	KindQuery  = "query"
	KindIngest = "ingest"
)

// Publisher is the subset of *amqp.Channel the sink uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Config holds configuration for the sink.
type Config struct {
	// Queue is the durable queue name (default: sercha.events).
	Queue string

	// BufferSize bounds the number of pending events (default: 256).
	BufferSize int

	// PublishTimeout bounds each publish call (default: 5s).
	PublishTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Queue == "" {
		c.Queue = DefaultQueue
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = DefaultPublishTimeout
	}
}

// Message is the JSON body of a published event.
type Message struct {
	Kind        string   `json:"kind"`
	Tenant      string   `json:"tenant"`
	Mode        string   `json:"mode,omitempty"`
	Document    string   `json:"document,omitempty"`
	LatencyMS   int64    `json:"latency_ms"`
	ResultCount int      `json:"result_count,omitempty"`
	ChunkCount  int      `json:"chunk_count,omitempty"`
	Success     bool     `json:"success"`
	Warnings    []string `json:"warnings,omitempty"`
	Error       string   `json:"error,omitempty"`
	At          string   `json:"at"`
}

// Sink publishes events to a queue through the default exchange.
type Sink struct {
	pub     Publisher
	cfg     Config
	events  chan Message
	dropped atomic.Int64
	closers []func() error

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a sink over an existing publisher and starts its worker.
func New(pub Publisher, cfg Config) *Sink {
	cfg.applyDefaults()
	s := &Sink{
		pub:    pub,
		cfg:    cfg,
		events: make(chan Message, cfg.BufferSize),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Dial connects to the broker at url, declares the durable queue and
// returns a sink that owns the connection.
func Dial(url string, cfg Config) (*Sink, error) {
	cfg.applyDefaults()

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}

	s := New(ch, cfg)
	s.closers = []func() error{ch.Close, conn.Close}
	return s, nil
}

// RecordQuery enqueues a query event.
func (s *Sink) RecordQuery(_ context.Context, event domain.QueryEvent) {
	msg := Message{
		Kind:        KindQuery,
		Tenant:      event.Tenant,
		Mode:        string(event.Mode),
		LatencyMS:   event.Latency.Milliseconds(),
		ResultCount: event.ResultCount,
		Success:     event.Err == nil,
		Warnings:    event.Warnings,
		At:          timestamp(event.At),
	}
	if event.Err != nil {
		msg.Error = event.Err.Error()
	}
	s.enqueue(msg)
}

// RecordIngest enqueues an ingestion event.
func (s *Sink) RecordIngest(_ context.Context, event domain.IngestEvent) {
	msg := Message{
		Kind:       KindIngest,
		Tenant:     event.Tenant,
		Document:   event.Document,
		LatencyMS:  event.Latency.Milliseconds(),
		ChunkCount: event.ChunkCount,
		Success:    event.Success,
		At:         timestamp(event.At),
	}
	if event.Err != nil {
		msg.Error = event.Err.Error()
	}
	s.enqueue(msg)
}

// Dropped returns the number of events discarded because the buffer was full.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops accepting events, publishes what is buffered and closes the
// connection if the sink owns one.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()

	s.wg.Wait()
	var err error
	for _, c := range s.closers {
		if cerr := c(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (s *Sink) enqueue(msg Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.events <- msg:
	default:
		if s.dropped.Add(1) == 1 {
			logger.Warn("event buffer full, dropping analytics events")
		}
	}
}

func (s *Sink) run() {
	defer s.wg.Done()
	for msg := range s.events {
		if err := s.publish(msg); err != nil {
			logger.Error(err, "publish %s event for tenant %s", msg.Kind, msg.Tenant)
		}
	}
}

func (s *Sink) publish(msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PublishTimeout)
	defer cancel()

	err = s.pub.PublishWithContext(ctx, "", s.cfg.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Type:         msg.Kind,
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}
