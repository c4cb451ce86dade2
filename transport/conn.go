package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/szellmann/warpvr/protocol"
)

const readBufferSize = 64 * 1024

// Conn is a message connection. At most one read and one write may be
// outstanding at any time.
type Conn struct {
	id  string
	mgr *Manager
	nc  net.Conn
	rd  *bufio.Reader

	// Cancelled with the failure cause on the first I/O error, on Close and
	// when the manager stops.
	ctx    context.Context
	cancel context.CancelCauseFunc

	reading atomic.Bool
	writing atomic.Bool

	closeOnce sync.Once

	bytesIn  atomic.Uint64
	bytesOut atomic.Uint64
}

// I/O counters for a connection.
type Stats struct {
	BytesIn  uint64
	BytesOut uint64
}

func newConn(m *Manager, nc net.Conn) *Conn {
	ctx, cancel := context.WithCancelCause(m.ctx)
	return &Conn{
		id:     uuid.NewString(),
		mgr:    m,
		nc:     nc,
		rd:     bufio.NewReaderSize(nc, readBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Get the unique connection id used in log messages.
func (c *Conn) ID() string {
	return c.id
}

// Get the address of the peer.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// The connection context is done once the connection can no longer be used.
func (c *Conn) Context() context.Context {
	return c.ctx
}

// Get the reason the connection was shut down or nil if it is still open.
func (c *Conn) Err() error {
	if c.ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(c.ctx)
	if errors.Is(cause, context.Canceled) {
		return ErrStopped
	}
	return cause
}

// Get a snapshot of the connection I/O counters.
func (c *Conn) Stats() Stats {
	return Stats{
		BytesIn:  c.bytesIn.Load(),
		BytesOut: c.bytesOut.Load(),
	}
}

// Asynchronously read the next message. onMessage runs on the dispatcher.
// Framing errors reported by the protocol package are passed through as is;
// all other failures wrap ErrTransport. Either way the connection is closed.
func (c *Conn) Read(onMessage MessageHandler) error {
	if err := c.Err(); err != nil {
		return err
	}
	if !c.reading.CompareAndSwap(false, true) {
		return ErrReadPending
	}

	ok := c.mgr.spawn(func() {
		msg, err := protocol.ReadMessage(c.rd, c.mgr.payloadLimit)
		if err != nil {
			err = c.fail(err)
		} else {
			c.bytesIn.Add(uint64(msg.WireSize()))
		}
		c.reading.Store(false)
		c.mgr.post(func() { onMessage(msg, err) })
	})
	if !ok {
		c.reading.Store(false)
		return ErrStopped
	}
	return nil
}

// Asynchronously write msg. The message is serialized before Write returns
// so the caller may reuse its buffers immediately. onComplete runs on the
// dispatcher.
func (c *Conn) Write(msg protocol.Message, onComplete CompletionHandler) error {
	if err := c.Err(); err != nil {
		return err
	}
	if !c.writing.CompareAndSwap(false, true) {
		return ErrWritePending
	}

	data := protocol.Encode(msg)
	ok := c.mgr.spawn(func() {
		n, err := c.nc.Write(data)
		c.bytesOut.Add(uint64(n))
		if err != nil {
			err = c.fail(err)
		}
		c.writing.Store(false)
		c.mgr.post(func() { onComplete(err) })
	})
	if !ok {
		c.writing.Store(false)
		return ErrStopped
	}
	return nil
}

// Close the connection. Outstanding operations complete with an error.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel(ErrClosed)
		err = c.nc.Close()
		c.mgr.removeConn(c)
		c.mgr.logger.Infof("[%s] connection closed", c.id)
	})
	return err
}

// Record an I/O failure, shut the connection down and return the error to
// report to the operation's callback.
func (c *Conn) fail(err error) error {
	if cause := c.Err(); cause != nil {
		// The socket was closed under us; report why.
		err = fmt.Errorf("%w: %w", cause, err)
	} else if !errors.Is(err, protocol.ErrMalformedMessage) && !errors.Is(err, protocol.ErrUnknownKind) {
		err = fmt.Errorf("%w: %w", ErrTransport, err)
	}

	c.cancel(err)
	c.closeOnce.Do(func() {
		c.nc.Close()
		c.mgr.removeConn(c)
		c.mgr.logger.Infof("[%s] connection closed: %v", c.id, err)
	})
	return err
}
