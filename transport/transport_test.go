package transport

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/szellmann/warpvr/protocol"
	"github.com/szellmann/warpvr/scene"
	"github.com/szellmann/warpvr/types"
)

const testTimeout = 5 * time.Second

type connResult struct {
	conn *Conn
	err  error
}

// Establish a loopback connection pair managed by m.
func connectPair(t *testing.T, m *Manager) (server, client *Conn) {
	t.Helper()

	accepted := make(chan connResult, 1)
	addr, err := m.Accept(context.Background(), "127.0.0.1:0", func(c *Conn, err error) {
		accepted <- connResult{c, err}
	})
	require.NoError(t, err)

	connected := make(chan connResult, 1)
	m.Connect(context.Background(), addr.String(), func(c *Conn, err error) {
		connected <- connResult{c, err}
	})

	for _, ch := range []chan connResult{accepted, connected} {
		select {
		case res := <-ch:
			require.NoError(t, res.err)
			if ch == accepted {
				server = res.conn
			} else {
				client = res.conn
			}
		case <-time.After(testTimeout):
			t.Fatal("timed out waiting for connection")
		}
	}
	return server, client
}

func TestReadWrite(t *testing.T) {
	m := NewManager()
	m.Run()
	defer m.Stop()

	server, client := connectPair(t, m)
	assert.NotEqual(t, server.ID(), client.ID())

	cam := scene.NewCamera(4, 4)
	received := make(chan protocol.Message, 1)
	require.NoError(t, server.Read(func(msg protocol.Message, err error) {
		assert.NoError(t, err)
		received <- msg
	}))

	written := make(chan error, 1)
	require.NoError(t, client.Write(protocol.NewCameraMessage(cam), func(err error) {
		written <- err
	}))

	select {
	case err := <-written:
		require.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for write completion")
	}

	select {
	case msg := <-received:
		got, err := msg.Camera()
		require.NoError(t, err)
		assert.True(t, got.Equal(cam))
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for message")
	}

	assert.Equal(t, uint64(protocol.HeaderSize+protocol.CameraSize), client.Stats().BytesOut)
	assert.Equal(t, uint64(protocol.HeaderSize+protocol.CameraSize), server.Stats().BytesIn)
}

func TestSingleOutstandingOperation(t *testing.T) {
	m := NewManager()
	m.Run()
	defer m.Stop()

	server, client := connectPair(t, m)

	require.NoError(t, server.Read(func(protocol.Message, error) {}))
	assert.ErrorIs(t, server.Read(func(protocol.Message, error) {}), ErrReadPending)

	// A large payload keeps the write in flight until the peer drains it.
	big := protocol.NewPointCloudMessage(make([]types.Vec4, 1<<20))
	done := make(chan error, 2)
	require.NoError(t, client.Write(big, func(err error) { done <- err }))
	err := client.Write(big, func(err error) { done <- err })
	if err != nil {
		assert.ErrorIs(t, err, ErrWritePending)
	}
}

func TestCallbacksRunSequentially(t *testing.T) {
	m := NewManager()
	m.Run()
	defer m.Stop()

	server, client := connectPair(t, m)

	const numMessages = 50
	var active, maxActive atomic.Int32
	finished := make(chan struct{})
	count := 0

	var onMessage MessageHandler
	onMessage = func(msg protocol.Message, err error) {
		n := active.Add(1)
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)

		assert.NoError(t, err)
		count++
		if count == numMessages {
			close(finished)
			return
		}
		assert.NoError(t, server.Read(onMessage))
	}
	require.NoError(t, server.Read(onMessage))

	var onWritten CompletionHandler
	sent := 0
	onWritten = func(err error) {
		n := active.Add(1)
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		active.Add(-1)

		assert.NoError(t, err)
		sent++
		if sent < numMessages {
			assert.NoError(t, client.Write(protocol.NewColorsMessage(make([]types.Vec4, 4)), onWritten))
		}
	}
	require.NoError(t, client.Write(protocol.NewColorsMessage(make([]types.Vec4, 4)), onWritten))

	select {
	case <-finished:
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for messages")
	}
	assert.Equal(t, int32(1), maxActive.Load(), "callbacks must never overlap")
}

func TestPeerDisconnect(t *testing.T) {
	m := NewManager()
	m.Run()
	defer m.Stop()

	server, client := connectPair(t, m)

	readErr := make(chan error, 1)
	require.NoError(t, server.Read(func(_ protocol.Message, err error) {
		readErr <- err
	}))
	require.NoError(t, client.Close())

	select {
	case err := <-readErr:
		assert.ErrorIs(t, err, ErrTransport)
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for read failure")
	}

	select {
	case <-server.Context().Done():
	default:
		t.Fatal("expected connection context to be cancelled after a read failure")
	}
	assert.ErrorIs(t, server.Read(func(protocol.Message, error) {}), ErrTransport)
}

func TestMalformedFramingClosesConnection(t *testing.T) {
	m := NewManager()
	m.Run()
	defer m.Stop()

	accepted := make(chan connResult, 1)
	addr, err := m.Accept(context.Background(), "127.0.0.1:0", func(c *Conn, err error) {
		accepted <- connResult{c, err}
	})
	require.NoError(t, err)

	raw, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer raw.Close()

	var res connResult
	select {
	case res = <-accepted:
		require.NoError(t, res.err)
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for connection")
	}

	readErr := make(chan error, 1)
	require.NoError(t, res.conn.Read(func(_ protocol.Message, err error) {
		readErr <- err
	}))

	// PointCloud header declaring a 15 byte payload.
	_, err = raw.Write([]byte{2, 0, 0, 0, 15, 0, 0, 0})
	require.NoError(t, err)

	select {
	case err := <-readErr:
		assert.ErrorIs(t, err, protocol.ErrMalformedMessage)
		assert.False(t, errors.Is(err, ErrTransport))
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for read failure")
	}
	assert.Error(t, res.conn.Err())
}

func TestStopInterruptsBlockedCallback(t *testing.T) {
	m := NewManager()
	m.Run()

	server, _ := connectPair(t, m)

	unblocked := make(chan error, 1)
	m.post(func() {
		<-server.Context().Done()
		unblocked <- server.Err()
	})

	// Give the dispatcher a chance to enter the callback.
	time.Sleep(10 * time.Millisecond)
	m.Stop()

	select {
	case err := <-unblocked:
		assert.Error(t, err)
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for the blocked callback to return")
	}

	exited := make(chan struct{})
	go func() {
		m.Wait()
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for the dispatcher to exit")
	}
}

func TestConnectFailure(t *testing.T) {
	m := NewManager(WithDialTimeout(time.Second))
	m.Run()
	defer m.Stop()

	// Grab a free port and release it so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	res := make(chan error, 1)
	m.Connect(context.Background(), addr, func(c *Conn, err error) {
		assert.Nil(t, c)
		res <- err
	})

	select {
	case err := <-res:
		assert.ErrorIs(t, err, ErrTransport)
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for connect failure")
	}
}

func TestCancelPendingAccept(t *testing.T) {
	m := NewManager()
	m.Run()
	defer m.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	res := make(chan connResult, 1)
	addr, err := m.Accept(ctx, "127.0.0.1:0", func(c *Conn, err error) {
		res <- connResult{c, err}
	})
	require.NoError(t, err)

	cancel()
	select {
	case r := <-res:
		assert.Nil(t, r.conn)
		assert.ErrorIs(t, r.err, ErrClosed)
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for the cancelled accept")
	}

	// The listener is gone so nothing accepts the connection.
	nc, err := net.DialTimeout("tcp", addr.String(), time.Second)
	if err == nil {
		nc.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		_, err = nc.Read(make([]byte, 1))
		nc.Close()
	}
	assert.Error(t, err)
}

func TestConnectWithCancelledContext(t *testing.T) {
	m := NewManager()
	m.Run()
	defer m.Stop()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := make(chan connResult, 1)
	m.Connect(ctx, ln.Addr().String(), func(c *Conn, err error) {
		res <- connResult{c, err}
	})

	select {
	case r := <-res:
		assert.Nil(t, r.conn)
		assert.ErrorIs(t, r.err, ErrClosed)
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for the cancelled connect")
	}
}

func TestPayloadLimit(t *testing.T) {
	m := NewManager(WithPayloadLimit(32))
	m.Run()
	defer m.Stop()

	server, client := connectPair(t, m)

	readErr := make(chan error, 1)
	require.NoError(t, server.Read(func(_ protocol.Message, err error) {
		readErr <- err
	}))
	require.NoError(t, client.Write(protocol.NewPointCloudMessage(make([]types.Vec4, 3)), func(error) {}))

	select {
	case err := <-readErr:
		assert.ErrorIs(t, err, protocol.ErrMalformedMessage)
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for the oversized read to fail")
	}
}
