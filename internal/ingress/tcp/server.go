// Package tcp implements the raw TCP ingress: one connection carries one
// JSON wrapper object read until EOF, answered with a plain-text status
// line on success or a JSON error object on failure, mirroring spec.md's
// "UTF-8 JSON terminated by EOF" wire protocol.
package tcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/pkg/logger"
)

// Queue is the subset of internal/queue.Queue the server needs.
type Queue interface {
	Put(ctx context.Context, w *domain.Wrapper) error
}

// Server listens for raw JSON-over-TCP wrapper submissions and enqueues
// them, replying with a status line before closing the connection.
type Server struct {
	addr   string
	queue  Queue
	log    logger.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

func NewServer(addr string, queue Queue, log logger.Logger) *Server {
	return &Server{addr: addr, queue: queue, log: log}
}

// Addr returns the address the server is actually bound to, useful when
// addr was given as "host:0" and the OS picked a free port. Empty before
// Start has bound a listener.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start listens on addr and serves connections until ctx is cancelled or
// Shutdown is called. It returns once the listener is closed.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{Control: reuseAddrControl}
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("tcp: listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.WithField("addr", s.addr).Info("tcp ingress listening")

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				return fmt.Errorf("tcp: accept: %w", err)
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

// Shutdown closes the listener and waits for in-flight connections to
// finish being handled.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return nil
	}
	if err := listener.Close(); err != nil {
		return fmt.Errorf("tcp: close listener: %w", err)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	data, err := io.ReadAll(conn)
	if err != nil {
		s.log.WithField("error", err.Error()).Warn("tcp ingress: read failed")
		return
	}

	reply := s.process(ctx, data)
	if _, err := conn.Write([]byte(reply)); err != nil {
		s.log.WithField("error", err.Error()).Warn("tcp ingress: write failed")
	}

	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
}

func (s *Server) process(ctx context.Context, data []byte) string {
	w, err := domain.NewWrapperFromJSON(data, func(reason string) {
		s.log.WithField("reason", reason).Warn("tcp ingress: dropped malformed recipient")
	})
	if err != nil {
		return errorReply("parse-error", err)
	}

	if err := s.queue.Put(ctx, w); err != nil {
		return errorReply("queue-full", err)
	}

	return fmt.Sprintf("Message %s was Queued with id %s.", w.Provider, w.ID.String())
}

func errorReply(kind string, err error) string {
	payload, marshalErr := json.Marshal(map[string]string{"error": err.Error(), "kind": kind})
	if marshalErr != nil {
		return fmt.Sprintf(`{"error":%q,"kind":%q}`, err.Error(), kind)
	}
	return string(payload)
}
