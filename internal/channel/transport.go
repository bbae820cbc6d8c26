package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Event names carried in the frame envelope.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
	EventProgress   = "progress"
)

// Frame is the JSON envelope of every message on the channel:
//
//	{"event":"connect","data":{"id":"9f1c..."}}
//	{"event":"progress","data":{"progress":"42% completed","status":"processing","message":"..."}}
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ConnectData is the payload of a connect frame.
type ConnectData struct {
	ID string `json:"id"`
}

// NewFrame marshals data into a frame.
func NewFrame(event string, data any) (Frame, error) {
	f := Frame{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Frame{}, fmt.Errorf("marshal %s frame: %w", event, err)
		}
		f.Data = raw
	}
	return f, nil
}

// Conn is the read side of an open channel connection.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens channel connections.
type Dialer interface {
	DialContext(ctx context.Context, url string, header http.Header) (Conn, error)
}

// WebsocketDialer dials the channel over WebSocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
}

// NewWebsocketDialer returns a dialer with a bounded handshake.
func NewWebsocketDialer() *WebsocketDialer {
	return &WebsocketDialer{
		Dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// DialContext implements Dialer.
func (d *WebsocketDialer) DialContext(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connect: %w (status %s)", err, resp.Status)
		}
		return nil, fmt.Errorf("websocket connect: %w", err)
	}
	return conn, nil
}
