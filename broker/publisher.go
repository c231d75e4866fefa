package broker

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

// Transport is the connection the publisher writes through
type Transport interface {
	IsConnected() bool
	Publish(topic string, payload []byte) error
}

// Message is one queued publish
type Message struct {
	Topic   string
	Payload []byte
}

// Publisher drains a bounded queue of messages onto a Transport
// Enqueue never blocks so the caller's loop keeps its cadence
type Publisher struct {
	transport Transport
	queue     chan Message

	mu     sync.RWMutex
	closed bool

	published atomic.Int64
	failed    atomic.Int64
}

// NewPublisher creates a publisher with the given queue depth
func NewPublisher(t Transport, depth int) *Publisher {
	if depth <= 0 {
		depth = 1
	}
	return &Publisher{
		transport: t,
		queue:     make(chan Message, depth),
	}
}

// Enqueue schedules a message for publishing
// A nil publisher reports ErrNotConnected
func (p *Publisher) Enqueue(topic string, payload []byte) error {
	if p == nil {
		return ErrNotConnected
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if !p.transport.IsConnected() {
		return ErrNotConnected
	}
	select {
	case p.queue <- Message{Topic: topic, Payload: payload}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start publishes queued messages until ctx is cancelled or Close is called
func (p *Publisher) Start(ctx context.Context) {
	log.Println("MQTT Publisher: Starting...")

	for {
		select {
		case <-ctx.Done():
			log.Println("MQTT Publisher: Context cancelled, shutting down...")
			return

		case msg, ok := <-p.queue:
			if !ok {
				log.Println("MQTT Publisher: Queue closed, shutting down...")
				return
			}
			if err := p.transport.Publish(msg.Topic, msg.Payload); err != nil {
				p.failed.Add(1)
				log.Printf("MQTT Publisher: %v", err)
				continue
			}
			p.published.Add(1)
		}
	}
}

// Close stops accepting messages; Start drains what is queued and returns
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.queue)
}

// Stats returns published and failed counts
func (p *Publisher) Stats() (published, failed int64) {
	return p.published.Load(), p.failed.Load()
}
