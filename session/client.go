package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/szellmann/warpvr/log"
	"github.com/szellmann/warpvr/protocol"
	"github.com/szellmann/warpvr/scene"
	"github.com/szellmann/warpvr/transport"
	"github.com/szellmann/warpvr/types"
)

// Client drives the request loop: it sends the shared camera, receives the
// point cloud and colors rendered for it, commits them to the shared state
// and then waits until the camera changes before sending the next request.
// All handlers run on the transport dispatcher.
type Client struct {
	logger log.Logger
	state  *SharedState

	// Owned by the dispatcher.
	conn   *transport.Conn
	sent   scene.Camera
	sentAt time.Time
	points []types.Vec4

	// Cancelled on close; aborts a pending dial.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	phase     Phase
	stats     Stats
	err       error
	done      chan struct{}
	closeOnce sync.Once
}

// Create a client session that synchronizes through state.
func NewClient(state *SharedState) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		logger: log.New("client"),
		state:  state,
		ctx:    ctx,
		cancel: cancel,
		phase:  Connecting,
		done:   make(chan struct{}),
	}
}

// Connect to the server at addr. The session starts once the connection is up.
func (c *Client) Connect(mgr *transport.Manager, addr string) {
	c.logger.Noticef("connecting to %s", addr)
	mgr.Connect(c.ctx, addr, c.handleConnect)
}

// Get the current protocol phase.
func (c *Client) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Get a snapshot of the session statistics.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	stats := c.stats
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		ioStats := conn.Stats()
		stats.BytesIn, stats.BytesOut = ioStats.BytesIn, ioStats.BytesOut
	}
	return stats
}

// Returns a channel that is closed when the session ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Get the error that ended the session.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Shut the session down. A handler parked waiting for a fresh camera is
// woken up by the connection context and a pending dial is aborted.
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
		return
	}
	c.close(transport.ErrClosed)
}

func (c *Client) handleConnect(conn *transport.Conn, err error) {
	if err != nil {
		c.close(err)
		return
	}

	// A session closed while connecting stays closed.
	c.mu.Lock()
	if c.phase == Closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()
	c.logger.Noticef("[%s] connected to %s", conn.ID(), conn.RemoteAddr())

	if !c.armRead() {
		return
	}
	c.sendCamera(c.state.Camera())
}

// Send cam and remember it as the most recently sent camera.
func (c *Client) sendCamera(cam scene.Camera) {
	c.sent = cam
	c.sentAt = time.Now()
	c.setPhase(AwaitingPoints)

	c.logger.Debugf("[%s] requesting frame for %s", c.conn.ID(), cam)
	if err := c.conn.Write(protocol.NewCameraMessage(cam), c.handleCameraWritten); err != nil {
		c.close(err)
	}
}

func (c *Client) handleCameraWritten(err error) {
	if err != nil {
		c.close(err)
	}
}

func (c *Client) armRead() bool {
	if err := c.conn.Read(c.handleMessage); err != nil {
		c.close(err)
		return false
	}
	return true
}

func (c *Client) handleMessage(msg protocol.Message, err error) {
	if err != nil {
		c.close(err)
		return
	}

	switch phase := c.Phase(); {
	case phase == AwaitingPoints && msg.Kind == protocol.PointCloud:
		c.handlePoints(msg)
	case phase == AwaitingColors && msg.Kind == protocol.Colors:
		c.handleColors(msg)
	default:
		c.close(fmt.Errorf("%w: received %s while %s", ErrUnexpectedMessage, msg.Kind, phase))
	}
}

func (c *Client) handlePoints(msg protocol.Message) {
	points, err := c.decodeSamples(msg)
	if err != nil {
		c.close(err)
		return
	}

	c.points = points
	c.setPhase(AwaitingColors)
	c.armRead()
}

func (c *Client) handleColors(msg protocol.Message) {
	colors, err := c.decodeSamples(msg)
	if err != nil {
		c.close(err)
		return
	}

	roundTrip := time.Since(c.sentAt)
	err = c.state.CommitFrame(c.sent.Viewport, c.points, colors)
	c.points = nil

	c.mu.Lock()
	c.stats.RoundTripTime += roundTrip
	c.stats.LastFrameTime = roundTrip
	if err != nil {
		c.stats.StaleFrames++
	} else {
		c.stats.Frames++
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Infof("[%s] discarding frame: %v", c.conn.ID(), err)
	} else {
		c.logger.Debugf("[%s] received %dx%d frame in %s", c.conn.ID(), c.sent.Viewport.W, c.sent.Viewport.H, roundTrip)
	}

	// The server only answers cameras so the read for the next point cloud
	// can be armed now; it also surfaces a peer disconnect while parked.
	c.setPhase(AwaitingFreshCamera)
	if !c.armRead() {
		return
	}

	cam, err := c.state.WaitForCamera(c.conn.Context(), c.sent)
	if err != nil {
		c.close(c.conn.Err())
		return
	}
	c.sendCamera(cam)
}

// Decode a sample payload after checking it against the viewport of the
// camera it was rendered for.
func (c *Client) decodeSamples(msg protocol.Message) ([]types.Vec4, error) {
	if err := protocol.ValidateSamples(msg, c.sent.Viewport); err != nil {
		return nil, err
	}
	return msg.Samples()
}

func (c *Client) setPhase(p Phase) {
	c.mu.Lock()
	if c.phase != Closed {
		c.phase = p
	}
	c.mu.Unlock()
}

func (c *Client) close(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		prev := c.phase
		c.phase = Closed
		c.err = err
		conn := c.conn
		c.mu.Unlock()

		c.cancel()
		if conn != nil {
			conn.Close()
		}
		if errors.Is(err, transport.ErrClosed) || errors.Is(err, transport.ErrStopped) {
			c.logger.Noticef("session closed while %s", prev)
		} else {
			c.logger.Errorf("session closed while %s: %v", prev, err)
		}
		close(c.done)
	})
}
