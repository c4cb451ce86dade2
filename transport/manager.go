// Package transport provides an asynchronous message connection over TCP.
//
// Blocking socket I/O runs on short-lived goroutines while every completion
// callback (connect, read, write) is executed on a single dispatcher
// goroutine owned by the Manager. Callbacks for a manager therefore never run
// concurrently with each other and may freely touch session state without
// additional locking.
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/szellmann/warpvr/log"
	"github.com/szellmann/warpvr/protocol"
)

const (
	defaultDialTimeout = 10 * time.Second
	eventQueueSize     = 16
)

// Invoked once a connection has been established or failed to establish.
type ConnectHandler func(conn *Conn, err error)

// Invoked when a read completes.
type MessageHandler func(msg protocol.Message, err error)

// Invoked when a write completes.
type CompletionHandler func(err error)

// Manager owns the dispatcher goroutine, listeners and connections.
type Manager struct {
	logger log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// Completion callbacks waiting to be executed by the dispatcher.
	events chan func()

	// Closed when the dispatcher exits.
	done     chan struct{}
	doneOnce sync.Once

	// Tracks goroutines performing blocking I/O.
	ioWG sync.WaitGroup

	mu        sync.Mutex
	running   bool
	stopped   bool
	listeners []net.Listener
	conns     map[*Conn]struct{}

	payloadLimit uint32
	dialTimeout  time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// Set the largest payload accepted by reads.
func WithPayloadLimit(limit uint32) Option {
	return func(m *Manager) {
		m.payloadLimit = limit
	}
}

// Set the timeout for outgoing connection attempts.
func WithDialTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.dialTimeout = d
	}
}

// Create a new connection manager. Call Run to start dispatching callbacks.
func NewManager(opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		logger:       log.New("transport"),
		ctx:          ctx,
		cancel:       cancel,
		events:       make(chan func(), eventQueueSize),
		done:         make(chan struct{}),
		conns:        make(map[*Conn]struct{}),
		payloadLimit: protocol.DefaultPayloadLimit,
		dialTimeout:  defaultDialTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start the dispatcher goroutine. Calling Run more than once has no effect.
func (m *Manager) Run() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running || m.stopped {
		return
	}
	m.running = true
	go m.dispatch()
}

// Block until the dispatcher exits after a call to Stop.
func (m *Manager) Wait() {
	<-m.done
}

// Stop the manager: close all listeners and connections and interrupt any
// callback blocked on a connection context. Completions of I/O that was in
// flight are still delivered before the dispatcher exits.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.cancel()

	listeners := m.listeners
	m.listeners = nil
	conns := make([]*Conn, 0, len(m.conns))
	for c := range m.conns {
		conns = append(conns, c)
	}
	running := m.running
	m.mu.Unlock()

	for _, ln := range listeners {
		ln.Close()
	}
	for _, c := range conns {
		c.Close()
	}

	if !running {
		m.doneOnce.Do(func() { close(m.done) })
	}
}

// Asynchronously connect to addr. Cancelling ctx aborts a pending dial with
// ErrClosed. onConnect runs on the dispatcher.
func (m *Manager) Connect(ctx context.Context, addr string, onConnect ConnectHandler) {
	ok := m.spawn(func() {
		if ctx.Err() != nil {
			m.post(func() { onConnect(nil, ErrClosed) })
			return
		}

		dialCtx, cancel := context.WithTimeout(m.ctx, m.dialTimeout)
		defer cancel()
		stopDial := context.AfterFunc(ctx, cancel)
		defer stopDial()

		var d net.Dialer
		nc, err := d.DialContext(dialCtx, "tcp", addr)
		if err != nil {
			switch {
			case m.ctx.Err() != nil:
				err = ErrStopped
			case ctx.Err() != nil:
				err = ErrClosed
			default:
				err = fmt.Errorf("%w: could not connect to %s: %w", ErrTransport, addr, err)
			}
			m.post(func() { onConnect(nil, err) })
			return
		}

		conn, err := m.newConn(nc)
		m.post(func() { onConnect(conn, err) })
	})
	if !ok {
		m.post(func() { onConnect(nil, ErrStopped) })
	}
}

// Listen on addr and asynchronously accept a single connection. The bound
// address is returned so callers may listen on port 0. Cancelling ctx closes
// the listener and reports ErrClosed to onConnect.
func (m *Manager) Accept(ctx context.Context, addr string, onConnect ConnectHandler) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: could not listen on %s: %w", ErrTransport, addr, err)
	}

	m.mu.Lock()
	m.listeners = append(m.listeners, ln)
	m.mu.Unlock()

	ok := m.spawn(func() {
		stopClose := context.AfterFunc(ctx, func() { ln.Close() })
		nc, err := ln.Accept()
		stopClose()
		m.removeListener(ln)
		ln.Close()

		if err != nil {
			switch {
			case m.ctx.Err() != nil:
				err = ErrStopped
			case ctx.Err() != nil:
				err = ErrClosed
			default:
				err = fmt.Errorf("%w: accept failed: %w", ErrTransport, err)
			}
			m.post(func() { onConnect(nil, err) })
			return
		}

		conn, err := m.newConn(nc)
		m.post(func() { onConnect(conn, err) })
	})
	if !ok {
		m.removeListener(ln)
		ln.Close()
		return nil, ErrStopped
	}

	return ln.Addr(), nil
}

// Run fn on a tracked I/O goroutine unless the manager has been stopped.
func (m *Manager) spawn(fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return false
	}

	m.ioWG.Add(1)
	go func() {
		defer m.ioWG.Done()
		fn()
	}()
	return true
}

// Queue a callback for the dispatcher. Callbacks posted after the dispatcher
// has exited are dropped.
func (m *Manager) post(fn func()) {
	select {
	case m.events <- fn:
	case <-m.done:
	}
}

func (m *Manager) dispatch() {
	defer m.doneOnce.Do(func() { close(m.done) })

	for {
		select {
		case fn := <-m.events:
			fn()
		case <-m.ctx.Done():
			m.flush()
			return
		}
	}
}

// Deliver completions of I/O goroutines that were unblocked by Stop.
func (m *Manager) flush() {
	flushed := make(chan struct{})
	go func() {
		m.ioWG.Wait()
		close(flushed)
	}()

	for {
		select {
		case fn := <-m.events:
			fn()
		case <-flushed:
			for {
				select {
				case fn := <-m.events:
					fn()
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) newConn(nc net.Conn) (*Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		nc.Close()
		return nil, ErrStopped
	}

	c := newConn(m, nc)
	m.conns[c] = struct{}{}
	m.logger.Infof("[%s] connection established with %s", c.ID(), nc.RemoteAddr())
	return c, nil
}

func (m *Manager) removeConn(c *Conn) {
	m.mu.Lock()
	delete(m.conns, c)
	m.mu.Unlock()
}

func (m *Manager) removeListener(ln net.Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for idx, l := range m.listeners {
		if l == ln {
			m.listeners = append(m.listeners[:idx], m.listeners[idx+1:]...)
			return
		}
	}
}
