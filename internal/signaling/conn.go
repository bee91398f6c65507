package signaling

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrMalformedFrame = errors.New("malformed frame")
)

// maxFrameSize bounds inbound frames. SDP offers run a few KB; anything
// larger is not signaling traffic.
const maxFrameSize = 64 * 1024

// socket is the subset of *websocket.Conn the relay uses. Narrowed to an
// interface so hub tests can run without a network.
type socket interface {
	WriteJSON(v any) error
	ReadMessage() (messageType int, p []byte, err error)
	SetReadLimit(limit int64)
	Close() error
}

// Conn is one WebSocket connection tracked by the hub. RoomID, UserID, and
// IsHost are set on join and guarded by the hub's lock; the write mutex
// serializes concurrent sends onto the single socket.
type Conn struct {
	ID          string
	RoomID      string
	UserID      string
	IsHost      bool
	ConnectedAt time.Time

	sock   socket
	mu     sync.Mutex
	closed bool
}

func NewConn(sock socket) *Conn {
	sock.SetReadLimit(maxFrameSize)
	return &Conn{
		ID:          uuid.NewString(),
		ConnectedAt: time.Now(),
		sock:        sock,
	}
}

// Send writes one event frame. Thread-safe.
func (c *Conn) Send(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	return c.sock.WriteJSON(Frame{Event: event, Data: raw})
}

// SendError reports a failed event to this client without closing it.
func (c *Conn) SendError(code, message string) {
	_ = c.Send(EventError, ErrorPayload{Code: code, Message: message})
}

// ReadFrame blocks for the next frame. A frame that is not valid JSON returns
// ErrMalformedFrame; the socket itself is still usable.
func (c *Conn) ReadFrame() (Frame, error) {
	_, msg, err := c.sock.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return Frame{}, ErrMalformedFrame
	}
	return f, nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.sock.Close()
}
