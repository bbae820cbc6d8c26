package channel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/syllabus-go/internal/metrics"
	"github.com/raphaelgruber/syllabus-go/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeConn replays frames pushed by the test until closed.
type fakeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.frames:
		return websocket.TextMessage, f, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) send(t *testing.T, event string, data any) {
	t.Helper()
	f, err := NewFrame(event, data)
	require.NoError(t, err)
	raw, err := json.Marshal(f)
	require.NoError(t, err)
	c.frames <- raw
}

// fakeDialer hands out connections from conns, failing when it is empty.
type fakeDialer struct {
	dials atomic.Int32
	mu    sync.Mutex
	conns []*fakeConn
}

func (d *fakeDialer) DialContext(ctx context.Context, url string, header http.Header) (Conn, error) {
	d.dials.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

func newTestSession(d Dialer, attempts int) *Session {
	return NewSession(Options{
		URL:               "ws://test/realtime",
		Dialer:            d,
		ReconnectAttempts: attempts,
		ReconnectDelay:    time.Millisecond,
		Logger:            testLogger(),
	})
}

func TestSessionCapturesChannelID(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(&fakeDialer{conns: []*fakeConn{conn}}, 3)
	defer s.Close()

	assert.Equal(t, StateDisconnected, s.State())
	assert.Empty(t, s.ID())

	require.NoError(t, s.Connect())
	require.Eventually(t, s.IsConnected, time.Second, 5*time.Millisecond)
	assert.Empty(t, s.ID(), "id arrives with the connect frame")

	conn.send(t, EventConnect, ConnectData{ID: "chan-42"})
	require.Eventually(t, func() bool { return s.ID() == "chan-42" }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.WaitConnected(ctx))
}

func TestSessionConnectIsIdempotent(t *testing.T) {
	d := &fakeDialer{conns: []*fakeConn{newFakeConn(), newFakeConn()}}
	s := newTestSession(d, 3)
	defer s.Close()

	require.NoError(t, s.Connect())
	require.Eventually(t, s.IsConnected, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Connect())
	require.NoError(t, s.Connect())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), d.dials.Load())
}

func TestSessionProgressOverwritesLatest(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(&fakeDialer{conns: []*fakeConn{conn}}, 3)
	defer s.Close()
	require.NoError(t, s.Connect())

	conn.send(t, EventConnect, ConnectData{ID: "c"})
	conn.send(t, EventProgress, progress.Event{Status: progress.StatusStarting, Progress: "0% completed"})
	conn.send(t, EventProgress, progress.Event{Status: progress.StatusProcessing, Progress: "30% completed"})
	conn.send(t, EventProgress, progress.Event{Status: progress.StatusProcessing, Progress: "80% completed"})

	require.Eventually(t, func() bool {
		e, ok := s.Events().Latest()
		return ok && e.Percent() == 80
	}, time.Second, 5*time.Millisecond)

	e := <-s.Events().C()
	assert.Equal(t, 80, e.Percent())
}

func TestSessionIgnoresMalformedFrames(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(&fakeDialer{conns: []*fakeConn{conn}}, 3)
	defer s.Close()
	require.NoError(t, s.Connect())

	conn.frames <- []byte("not json")
	conn.frames <- []byte(`{"event":"progress","data":"oops"}`)
	conn.frames <- []byte(`{"event":"connect","data":{}}`)
	conn.frames <- []byte(`{"event":"something-else"}`)
	conn.send(t, EventProgress, progress.Event{Status: progress.StatusCompleted, Progress: "100% completed"})

	require.Eventually(t, func() bool {
		e, ok := s.Events().Latest()
		return ok && e.Status == progress.StatusCompleted
	}, time.Second, 5*time.Millisecond)
	assert.True(t, s.IsConnected())
	assert.Empty(t, s.ID())
}

func TestSessionGivesUpAfterReconnectAttempts(t *testing.T) {
	d := &fakeDialer{}
	var mu sync.Mutex
	var states []State
	s := NewSession(Options{
		URL:               "ws://test/realtime",
		Dialer:            d,
		ReconnectAttempts: 3,
		ReconnectDelay:    time.Millisecond,
		Logger:            testLogger(),
		Metrics:           metrics.NewCollector(),
		OnStateChange: func(st State) {
			mu.Lock()
			states = append(states, st)
			mu.Unlock()
		},
	})
	defer s.Close()

	require.NoError(t, s.Connect())
	require.Eventually(t, func() bool { return d.dials.Load() == 4 }, time.Second, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(4), d.dials.Load(), "initial dial plus three retries")
	assert.Equal(t, StateDisconnected, s.State())

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, states, StateConnected)
	assert.Contains(t, states, StateConnecting)
}

func TestSessionReconnectsWithNewID(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	s := newTestSession(&fakeDialer{conns: []*fakeConn{first, second}}, 3)
	defer s.Close()
	require.NoError(t, s.Connect())

	first.send(t, EventConnect, ConnectData{ID: "one"})
	require.Eventually(t, func() bool { return s.ID() == "one" }, time.Second, 5*time.Millisecond)

	first.send(t, EventDisconnect, nil)
	second.send(t, EventConnect, ConnectData{ID: "two"})
	require.Eventually(t, func() bool { return s.ID() == "two" }, time.Second, 5*time.Millisecond)
	assert.True(t, s.IsConnected())
}

func TestSessionEventsSurviveReconnect(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	s := newTestSession(&fakeDialer{conns: []*fakeConn{first, second}}, 3)
	defer s.Close()
	require.NoError(t, s.Connect())

	slot := s.Events()
	first.send(t, EventProgress, progress.Event{Status: progress.StatusProcessing, Progress: "10% completed"})
	require.Eventually(t, func() bool { _, ok := slot.Latest(); return ok }, time.Second, 5*time.Millisecond)
	first.Close()

	second.send(t, EventProgress, progress.Event{Status: progress.StatusProcessing, Progress: "20% completed"})
	require.Eventually(t, func() bool {
		e, _ := slot.Latest()
		return e.Percent() == 20
	}, time.Second, 5*time.Millisecond)
	assert.Same(t, slot, s.Events())
}

func TestSessionCloseStopsLoop(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	s := newTestSession(d, 3)
	require.NoError(t, s.Connect())
	require.Eventually(t, s.IsConnected, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	assert.Equal(t, StateDisconnected, s.State())
	assert.ErrorIs(t, s.Connect(), ErrClosed)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), d.dials.Load())
	require.NoError(t, s.Close())
}

func TestSessionOverWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, f := range []string{
			`{"event":"connect","data":{"id":"ws-1"}}`,
			`{"event":"progress","data":{"progress":"57% completed","status":"processing","message":"Writing slides"}}`,
		} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Hold the connection until the client goes away.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	s := NewSession(Options{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		ReconnectDelay: 10 * time.Millisecond,
		Logger:         testLogger(),
	})
	defer s.Close()
	require.NoError(t, s.Connect())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.WaitConnected(ctx))
	assert.Equal(t, "ws-1", s.ID())

	select {
	case e := <-s.Events().C():
		assert.Equal(t, progress.StatusProcessing, e.Status)
		assert.Equal(t, 57, e.Percent())
		assert.Equal(t, "Writing slides", e.Message)
	case <-ctx.Done():
		t.Fatal("no progress event received")
	}
}

func TestSessionWaitConnectedWakesOnID(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(&fakeDialer{conns: []*fakeConn{conn}}, 1)
	defer s.Close()
	require.NoError(t, s.Connect())
	require.Eventually(t, s.IsConnected, time.Second, 5*time.Millisecond)

	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	assert.ErrorIs(t, s.WaitConnected(short), context.DeadlineExceeded, "no id yet")

	waited := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		waited <- s.WaitConnected(ctx)
	}()
	conn.send(t, EventConnect, ConnectData{ID: "chan-7"})

	select {
	case err := <-waited:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitConnected did not return after the id arrived")
	}

	// Losing the connection re-arms the wait.
	conn.Close()
	require.Eventually(t, func() bool { return !s.IsConnected() }, time.Second, 5*time.Millisecond)
	after, cancelAfter := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelAfter()
	assert.ErrorIs(t, s.WaitConnected(after), context.DeadlineExceeded)
}
