package telnet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/pokebattle/internal/config"
)

// SessionHandler processes a connected Telnet session.
// Implementations run the command loop for a single client and return when
// the client quits, the connection fails, or ctx is cancelled.
type SessionHandler interface {
	HandleSession(ctx context.Context, conn *Conn) error
}

// SessionHandlerFunc adapts a function to SessionHandler.
type SessionHandlerFunc func(ctx context.Context, conn *Conn) error

// HandleSession calls f(ctx, conn).
func (f SessionHandlerFunc) HandleSession(ctx context.Context, conn *Conn) error {
	return f(ctx, conn)
}

// Acceptor listens for Telnet connections on a TCP port and dispatches
// each connection to a SessionHandler.
type Acceptor struct {
	cfg     config.TelnetConfig
	handler SessionHandler
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	ready  chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	listener net.Listener
	conns    map[*Conn]struct{}
	running  bool
	stopped  bool
}

// NewAcceptor creates a Telnet acceptor with the given configuration.
//
// Precondition: handler and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to be started with ListenAndServe or Serve.
func NewAcceptor(cfg config.TelnetConfig, handler SessionHandler, logger *zap.Logger) *Acceptor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
		conns:   make(map[*Conn]struct{}),
	}
}

// ListenAndServe listens on the configured address and serves until Stop is called.
//
// Precondition: The acceptor must not already be running.
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) ListenAndServe() error {
	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}
	return a.Serve(listener)
}

// Serve accepts connections on listener until Stop is called.
//
// Precondition: The acceptor must not already be running.
// Postcondition: listener is closed and every session has ended when this returns.
func (a *Acceptor) Serve(listener net.Listener) error {
	a.mu.Lock()
	if a.running || a.stopped {
		a.mu.Unlock()
		listener.Close()
		return errors.New("telnet acceptor already started")
	}
	a.listener = listener
	a.running = true
	a.mu.Unlock()
	close(a.ready)
	defer close(a.done)

	a.logger.Info("telnet acceptor listening",
		zap.String("addr", listener.Addr().String()),
	)

	for {
		raw, err := listener.Accept()
		if err != nil {
			if a.ctx.Err() != nil {
				a.wg.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				a.wg.Wait()
				return err
			}
			a.logger.Error("accepting connection", zap.Error(err))
			continue
		}

		a.wg.Add(1)
		go a.handleConn(raw)
	}
}

// Ready is closed once the acceptor is listening.
func (a *Acceptor) Ready() <-chan struct{} { return a.ready }

func (a *Acceptor) handleConn(raw net.Conn) {
	defer a.wg.Done()
	start := time.Now()
	addr := raw.RemoteAddr().String()
	logger := a.logger.With(zap.String("remote_addr", addr))

	conn := NewConn(raw, a.cfg.ReadTimeout, a.cfg.WriteTimeout)
	if !a.track(conn) {
		conn.Close()
		return
	}
	defer func() {
		a.untrack(conn)
		conn.Close()
	}()

	logger.Info("client connected")
	if err := conn.Negotiate(); err != nil {
		logger.Error("telnet negotiation failed", zap.Error(err))
		return
	}

	if err := a.handler.HandleSession(a.ctx, conn); err != nil {
		logger.Debug("session ended",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return
	}
	logger.Info("session ended cleanly", zap.Duration("duration", time.Since(start)))
}

func (a *Acceptor) track(c *Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return false
	}
	a.conns[c] = struct{}{}
	return true
}

func (a *Acceptor) untrack(c *Conn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.conns, c)
}

// Stop closes the listener, cancels every session context and closes every
// open connection, then waits for all sessions to finish.
//
// Postcondition: All connections are closed and goroutines have exited.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	wasRunning := a.running
	a.stopped = true
	a.running = false
	a.cancel()
	if a.listener != nil {
		a.listener.Close()
	}
	for c := range a.conns {
		c.Close()
	}
	a.mu.Unlock()

	if wasRunning {
		<-a.done
	}
	a.logger.Info("telnet acceptor stopped")
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the acceptor is currently accepting connections.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// ActiveSessions returns the number of connected clients.
func (a *Acceptor) ActiveSessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conns)
}
