package broker

import (
	"context"
	"log"
	"sync"
)

// queueDepth bounds messages waiting for the broker
const queueDepth = 64

// Service owns the broker connection and its publisher goroutine
// An unreachable or unconfigured broker leaves the service running without a publisher
type Service struct {
	config ClientConfig

	mu        sync.Mutex
	client    *Client
	publisher *Publisher
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewService creates a broker service
func NewService() *Service {
	return &Service{}
}

// Name implements service.Service
func (s *Service) Name() string {
	return "broker"
}

// Dependencies implements service.Service
func (s *Service) Dependencies() []string {
	return nil
}

// Init implements service.Service
// args[0]: ClientConfig - empty Broker disables publishing
func (s *Service) Init(args ...any) error {
	if len(args) > 0 {
		if cfg, ok := args[0].(ClientConfig); ok {
			s.config = cfg
		}
	}
	return nil
}

// Start implements service.Service
func (s *Service) Start() error {
	if s.config.Broker == "" {
		log.Println("MQTT: no broker configured, publish actions disabled")
		return nil
	}

	client, err := NewClient(s.config)
	if err != nil {
		log.Printf("MQTT: %v, publish actions disabled", err)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	pub := NewPublisher(client, queueDepth)
	done := make(chan struct{})
	go func() {
		defer close(done)
		pub.Start(ctx)
	}()

	s.mu.Lock()
	s.client, s.publisher, s.cancel, s.done = client, pub, cancel, done
	s.mu.Unlock()
	return nil
}

// Stop implements service.Service
// Queued messages are flushed before disconnecting
func (s *Service) Stop() error {
	s.mu.Lock()
	client, pub, cancel, done := s.client, s.publisher, s.cancel, s.done
	s.client, s.publisher, s.cancel, s.done = nil, nil, nil, nil
	s.mu.Unlock()

	if pub == nil {
		return nil
	}
	pub.Close()
	<-done
	cancel()
	client.Close()
	return nil
}

// Publisher returns the live publisher, nil when disconnected
func (s *Service) Publisher() *Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publisher
}

// Enqueue forwards to the live publisher, so the service can be handed out before Start
func (s *Service) Enqueue(topic string, payload []byte) error {
	return s.Publisher().Enqueue(topic, payload)
}
