package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/szellmann/warpvr/engine"
	"github.com/szellmann/warpvr/frame"
	"github.com/szellmann/warpvr/log"
	"github.com/szellmann/warpvr/protocol"
	"github.com/szellmann/warpvr/scene"
	"github.com/szellmann/warpvr/transport"
)

// Server renders a frame for every camera received from its peer and
// streams back the point cloud followed by the colors. All handlers run on
// the transport dispatcher.
type Server struct {
	logger log.Logger
	engine engine.RenderEngine

	// Owned by the dispatcher.
	conn       *transport.Conn
	fb         *frame.Buffer
	camera     scene.Camera
	frameStart time.Time
	sendStart  time.Time

	// Cancelled on close; aborts a pending accept.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	phase     Phase
	stats     Stats
	err       error
	done      chan struct{}
	closeOnce sync.Once
}

// Create a server session that renders with eng.
func NewServer(eng engine.RenderEngine) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		logger: log.New("server"),
		engine: eng,
		fb:     frame.New(0, 0),
		ctx:    ctx,
		cancel: cancel,
		phase:  Accepting,
		done:   make(chan struct{}),
	}
}

// Listen on addr and serve the first peer that connects. The bound address
// is returned.
func (s *Server) Serve(mgr *transport.Manager, addr string) (net.Addr, error) {
	boundAddr, err := mgr.Accept(s.ctx, addr, s.handleConnect)
	if err != nil {
		s.close(err)
		return nil, err
	}
	s.logger.Noticef("accepting connections on %s", boundAddr)
	return boundAddr, nil
}

// Get the current protocol phase.
func (s *Server) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Get a snapshot of the session statistics.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	stats := s.stats
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		ioStats := conn.Stats()
		stats.BytesIn, stats.BytesOut = ioStats.BytesIn, ioStats.BytesOut
	}
	return stats
}

// Returns a channel that is closed when the session ends.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Get the error that ended the session.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Shut the session down. A pending listener is closed; a peer that connects
// after Close is disconnected immediately.
func (s *Server) Close() {
	s.close(transport.ErrClosed)
}

func (s *Server) handleConnect(conn *transport.Conn, err error) {
	if err != nil {
		s.close(err)
		return
	}

	// A session closed while connecting stays closed.
	s.mu.Lock()
	if s.phase == Closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()

	s.logger.Noticef("[%s] client connected from %s", conn.ID(), conn.RemoteAddr())
	s.awaitCamera()
}

// Enter the idle phase and arm the read for the next camera.
func (s *Server) awaitCamera() {
	s.setPhase(Idle)
	if err := s.conn.Read(s.handleMessage); err != nil {
		s.close(err)
	}
}

func (s *Server) handleMessage(msg protocol.Message, err error) {
	if err != nil {
		s.close(err)
		return
	}

	if phase := s.Phase(); phase != Idle || msg.Kind != protocol.Camera {
		s.close(fmt.Errorf("%w: received %s while %s", ErrUnexpectedMessage, msg.Kind, phase))
		return
	}

	cam, err := msg.Camera()
	if err == nil && !cam.Viewport.Valid() {
		err = fmt.Errorf("%w: camera viewport %s", protocol.ErrSizeMismatch, cam.Viewport)
	}
	if err != nil {
		if errors.Is(err, protocol.ErrSizeMismatch) {
			s.logger.Warningf("[%s] dropping camera: %v", s.conn.ID(), err)
			s.mu.Lock()
			s.stats.RejectedCameras++
			s.mu.Unlock()
			s.awaitCamera()
			return
		}
		s.close(err)
		return
	}

	s.render(cam)
}

func (s *Server) render(cam scene.Camera) {
	s.setPhase(Rendering)
	s.camera = cam
	s.frameStart = time.Now()

	w, h := int(cam.Viewport.W), int(cam.Viewport.H)
	if s.fb.Resize(w, h) {
		s.logger.Infof("[%s] resized frame buffer to %dx%d", s.conn.ID(), w, h)
	}

	if err := s.engine.Render(s.conn.Context(), cam, s.fb); err != nil {
		s.close(fmt.Errorf("session: render failed: %w", err))
		return
	}
	renderTime := time.Since(s.frameStart)

	s.mu.Lock()
	s.stats.RenderTime += renderTime
	s.mu.Unlock()
	s.logger.Debugf("[%s] rendered %dx%d frame in %s", s.conn.ID(), w, h, renderTime)

	s.setPhase(SendingPoints)
	s.sendStart = time.Now()
	if err := s.conn.Write(protocol.NewPointCloudMessage(s.fb.Points), s.handlePointsWritten); err != nil {
		s.close(err)
	}
}

func (s *Server) handlePointsWritten(err error) {
	if err != nil {
		s.close(err)
		return
	}
	s.logger.Debugf("[%s] points written. Elapsed: %s", s.conn.ID(), time.Since(s.sendStart))

	s.setPhase(SendingColors)
	if err := s.conn.Write(protocol.NewColorsMessage(s.fb.Colors), s.handleColorsWritten); err != nil {
		s.close(err)
	}
}

func (s *Server) handleColorsWritten(err error) {
	if err != nil {
		s.close(err)
		return
	}

	now := time.Now()
	s.mu.Lock()
	s.stats.Frames++
	s.stats.SendTime += now.Sub(s.sendStart)
	s.stats.LastFrameTime = now.Sub(s.frameStart)
	s.mu.Unlock()
	s.logger.Debugf("[%s] colors written. Elapsed: %s", s.conn.ID(), now.Sub(s.sendStart))

	s.awaitCamera()
}

func (s *Server) setPhase(p Phase) {
	s.mu.Lock()
	if s.phase != Closed {
		s.phase = p
	}
	s.mu.Unlock()
}

func (s *Server) close(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		prev := s.phase
		s.phase = Closed
		s.err = err
		conn := s.conn
		s.mu.Unlock()

		s.cancel()
		if conn != nil {
			conn.Close()
		}
		if errors.Is(err, transport.ErrClosed) || errors.Is(err, transport.ErrStopped) {
			s.logger.Noticef("session closed while %s", prev)
		} else {
			s.logger.Errorf("session closed while %s: %v", prev, err)
		}
		close(s.done)
	})
}
