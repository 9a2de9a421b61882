// Package hitevents publishes browse events to Kafka without blocking the request path.
package hitevents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/catalog-cache/internal/logger"
)

// BrowseEvent describes one served listing or detail.
type BrowseEvent struct {
	Route    string            `json:"route"`
	Slug     string            `json:"slug,omitempty"`
	Page     int               `json:"page,omitempty"`
	Endpoint string            `json:"endpoint,omitempty"`
	Filters  map[string]string `json:"filters,omitempty"`
	Items    int               `json:"items"`
	Partial  bool              `json:"partial,omitempty"`
	Cached   bool              `json:"cached,omitempty"`
	TS       time.Time         `json:"ts"`
}

// Sink receives browse events. Implementations must not block.
type Sink interface {
	Publish(ev BrowseEvent)
}

type Nop struct{}

func (Nop) Publish(BrowseEvent) {}

type Publisher struct {
	topic   string
	events  chan BrowseEvent
	prod    sarama.AsyncProducer
	log     *slog.Logger
	stopped chan struct{}
	dropped atomic.Int64

	// mu guards closed and the send on events against Close.
	mu     sync.RWMutex
	closed bool
}

func NewPublisher(brokers []string, topic string, queueSize int, l *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("hitevents: create async producer: %w", err)
	}
	return newWithProducer(prod, topic, queueSize, l), nil
}

func newWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, l *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	p := &Publisher{
		topic:   topic,
		events:  make(chan BrowseEvent, queueSize),
		prod:    prod,
		log:     logger.For(l, "hitevents"),
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Warn("marshal browse event", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Route + ":" + ev.Slug),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				p.log.Warn("producer error", "err", err)
			}
		}
	}()

	return p
}

// Publish enqueues ev, dropping it when the queue is full or the publisher is closed.
func (p *Publisher) Publish(ev BrowseEvent) {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return
	}
	select {
	case p.events <- ev:
	default:
		p.dropped.Add(1)
	}
}

func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

// Close drains queued events into the producer and closes it. Later calls are no-ops.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()
	<-p.stopped

	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("hitevents: close producer: %w", err)
	}
	return nil
}
