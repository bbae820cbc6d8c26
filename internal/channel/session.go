// Package channel maintains the realtime connection over which the backend
// reports generation progress.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/raphaelgruber/syllabus-go/internal/metrics"
	"github.com/raphaelgruber/syllabus-go/internal/progress"
)

// ErrClosed is returned when connecting a session that was closed.
var ErrClosed = errors.New("channel session closed")

// State is the connection state of a session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Options configures a Session.
type Options struct {
	URL    string
	Header http.Header
	Dialer Dialer

	// ReconnectAttempts bounds consecutive failed dials before the session
	// gives up; ReconnectDelay is the fixed pause between them.
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Collector

	// OnStateChange, if set, is called after every state transition.
	OnStateChange func(State)
}

// Session owns one realtime connection and its reconnection loop.
// Consumers only observe state, the server-assigned id and progress events.
type Session struct {
	opts   Options
	logger *slog.Logger
	events *progress.Slot

	mu      sync.RWMutex
	state   State
	id      string
	conn    Conn
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}

	// ready is closed while connected with a known id.
	ready       chan struct{}
	readyClosed bool
}

// NewSession creates a disconnected session.
func NewSession(opts Options) *Session {
	if opts.Dialer == nil {
		opts.Dialer = NewWebsocketDialer()
	}
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = 15
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		opts:   opts,
		logger: logger.With("component", "channel"),
		events: progress.NewSlot(),
		state:  StateDisconnected,
		ready:  make(chan struct{}),
	}
}

// Connect starts the connection loop and returns immediately. It is a no-op
// while the session is already connecting or connected; a session whose
// loop gave up can be connected again.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.started {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.started = true
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	return nil
}

// Close stops the loop, closes the connection and waits for the loop to exit.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel, done, conn := s.cancel, s.done, s.conn
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if conn != nil {
		err = conn.Close()
	}
	if done != nil {
		<-done
	}
	s.setState(StateDisconnected, "")
	return err
}

// ID returns the server-assigned channel id, or "" until the server sent one.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// IsConnected reports whether the transport is connected.
func (s *Session) IsConnected() bool {
	return s.State() == StateConnected
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Events returns the latest-event slot. It survives reconnections.
func (s *Session) Events() *progress.Slot {
	return s.events
}

// WaitConnected blocks until the session is connected with a known id.
func (s *Session) WaitConnected(ctx context.Context) error {
	for {
		s.mu.RLock()
		ready, ok := s.ready, s.readyClosed
		s.mu.RUnlock()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ready:
		}
	}
}

// signalLocked opens or re-arms the ready channel to match state and id.
func (s *Session) signalLocked() {
	ready := s.state == StateConnected && s.id != ""
	switch {
	case ready && !s.readyClosed:
		close(s.ready)
		s.readyClosed = true
	case !ready && s.readyClosed:
		s.ready = make(chan struct{})
		s.readyClosed = false
	}
}

func (s *Session) setState(state State, id string) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.id = id
	s.signalLocked()
	s.mu.Unlock()

	if changed && s.opts.OnStateChange != nil {
		s.opts.OnStateChange(state)
	}
}

func (s *Session) setID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	s.signalLocked()
}

func (s *Session) setConn(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conn = conn
	return true
}

// run dials, reads until the connection drops, and redials with a fixed
// delay. It gives up after ReconnectAttempts consecutive failed dials.
func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		s.started = false
		s.conn = nil
		s.mu.Unlock()
	}()

	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		s.setState(StateConnecting, "")
		start := time.Now()
		conn, err := s.opts.Dialer.DialContext(ctx, s.opts.URL, s.opts.Header)
		s.opts.Metrics.Observe(metrics.OpChannelConnect, start, err)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			if failures > s.opts.ReconnectAttempts {
				s.logger.Error("giving up on realtime channel", "attempts", failures, "error", err)
				s.setState(StateDisconnected, "")
				return
			}
			s.logger.Debug("channel dial failed", "attempt", failures, "error", err)
			s.setState(StateDisconnected, "")
			if !sleep(ctx, s.opts.ReconnectDelay) {
				return
			}
			continue
		}

		if !s.setConn(conn) {
			conn.Close()
			return
		}
		failures = 0
		s.setState(StateConnected, "")
		s.logger.Debug("channel connected", "url", s.opts.URL)

		err = s.read(conn)
		conn.Close()
		s.setState(StateDisconnected, "")
		if ctx.Err() != nil {
			return
		}
		s.logger.Info("channel disconnected", "error", err)
		if !sleep(ctx, s.opts.ReconnectDelay) {
			return
		}
	}
}

// read dispatches frames until the connection fails or the server
// announces a disconnect.
func (s *Session) read(conn Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Warn("dropping malformed frame", "error", err)
			continue
		}

		switch frame.Event {
		case EventConnect:
			var cd ConnectData
			if err := json.Unmarshal(frame.Data, &cd); err != nil || cd.ID == "" {
				s.logger.Warn("connect frame without id", "error", err)
				continue
			}
			s.setID(cd.ID)
			s.logger.Info("channel ready", "channel_id", cd.ID)

		case EventProgress:
			var e progress.Event
			if err := json.Unmarshal(frame.Data, &e); err != nil {
				s.logger.Warn("dropping malformed progress event", "error", err)
				continue
			}
			s.events.Put(e)

		case EventDisconnect:
			return errors.New("server closed the channel")

		default:
			s.logger.Debug("ignoring frame", "event", frame.Event)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
