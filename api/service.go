package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"
)

// Service serves the router on a local address
type Service struct {
	addr   string
	server *Server

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
	done     chan struct{}
}

// NewService creates the HTTP service
func NewService() *Service {
	return &Service{}
}

// Name implements service.Service
func (s *Service) Name() string {
	return "api"
}

// Dependencies implements service.Service
func (s *Service) Dependencies() []string {
	return []string{"audio", "broker"}
}

// Init implements service.Service
// args[0]: string - listen address
// args[1]: *Server or func() *Server - handler dependencies, the func form runs
// here so it sees dependencies that were initialised first
func (s *Service) Init(args ...any) error {
	if len(args) > 0 {
		if addr, ok := args[0].(string); ok {
			s.addr = addr
		}
	}
	if len(args) > 1 {
		switch srv := args[1].(type) {
		case *Server:
			s.server = srv
		case func() *Server:
			s.server = srv()
		}
	}
	if s.server == nil {
		return errors.New("api: no server configured")
	}
	if s.addr == "" {
		s.addr = "127.0.0.1:7777"
	}
	return nil
}

// Start implements service.Service
func (s *Service) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", s.addr, err)
	}
	srv := &http.Server{
		Handler:           NewRouter(s.server),
		ReadHeaderTimeout: 5 * time.Second,
	}
	done := make(chan struct{})

	s.mu.Lock()
	s.http, s.listener, s.done = srv, ln, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("API: serve: %v", err)
		}
	}()
	log.Printf("API: listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address, useful when listening on port 0
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop implements service.Service
// Ends any listening session, then shuts the server down
func (s *Service) Stop() error {
	s.mu.Lock()
	srv, done := s.http, s.done
	s.http, s.listener, s.done = nil, nil, nil
	s.mu.Unlock()

	if s.server != nil && s.server.Dispatcher != nil {
		s.server.Dispatcher.Stop()
	}
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(ctx)
	<-done
	return err
}
