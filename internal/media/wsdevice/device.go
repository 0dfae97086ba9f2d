// Package wsdevice exposes a browser microphone, streamed over a websocket,
// as a practice.Device.
//
// Server to client control frames are JSON text messages of type "start",
// "stop" and "release". The client sends audio as binary frames, an optional
// {"type":"hello","mime_type":"..."} on connect, and {"type":"flushed"} once
// the last chunk after a "stop" has been sent.
package wsdevice

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SAP-F-2025/practice-service/internal/practice"
)

const (
	DefaultMimeType = "audio/webm;codecs=opus"

	writeWait      = 5 * time.Second
	maxMessageSize = 1 << 20
)

var (
	ErrNoClient      = errors.New("no microphone client connected")
	ErrAlreadyServed = errors.New("microphone client already connected")
)

type controlMessage struct {
	Type     string `json:"type"`
	MimeType string `json:"mime_type,omitempty"`
}

// connection is one attached websocket and its read loop state.
type connection struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}

	mu       sync.Mutex
	mimeType string
	sink     func([]byte)
	flushed  chan struct{}
}

func (c *connection) send(msgType string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(controlMessage{Type: msgType})
}

// Device is the microphone of one practice session.
type Device struct {
	logger *slog.Logger

	mu   sync.Mutex
	conn *connection
}

func New(logger *slog.Logger) *Device {
	return &Device{logger: logger.With("component", "wsdevice")}
}

func (d *Device) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

// Serve runs the read loop for an upgraded connection and blocks until it
// closes or ctx ends. Only one client may be attached at a time.
func (d *Device) Serve(ctx context.Context, ws *websocket.Conn) error {
	c := &connection{ws: ws, done: make(chan struct{}), mimeType: DefaultMimeType}

	d.mu.Lock()
	if d.conn != nil {
		d.mu.Unlock()
		_ = ws.Close()
		return ErrAlreadyServed
	}
	d.conn = c
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		if d.conn == c {
			d.conn = nil
		}
		d.mu.Unlock()
		close(c.done)
		_ = ws.Close()
	}()

	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer stop()

	ws.SetReadLimit(maxMessageSize)
	d.logger.Info("Microphone client attached")

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				d.logger.Warn("Microphone connection dropped", "error", err)
			}
			d.logger.Info("Microphone client detached")
			return nil
		}

		switch msgType {
		case websocket.BinaryMessage:
			c.mu.Lock()
			sink := c.sink
			c.mu.Unlock()
			if sink != nil {
				sink(data)
			}
		case websocket.TextMessage:
			var msg controlMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				d.logger.Debug("Ignoring malformed control frame", "error", err)
				continue
			}
			d.handleControl(c, msg)
		}
	}
}

// Close detaches the current client, if any. Serve returns once its read loop sees the close.
func (d *Device) Close() {
	d.mu.Lock()
	c := d.conn
	d.mu.Unlock()
	if c == nil {
		return
	}

	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	_ = c.ws.Close()
}

func (d *Device) handleControl(c *connection, msg controlMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Type {
	case "hello":
		if msg.MimeType != "" {
			c.mimeType = msg.MimeType
		}
	case "flushed":
		if c.flushed != nil {
			close(c.flushed)
			c.flushed = nil
		}
	}
}

func (d *Device) Acquire(ctx context.Context) (practice.Stream, error) {
	d.mu.Lock()
	c := d.conn
	d.mu.Unlock()
	if c == nil {
		return nil, ErrNoClient
	}
	return &stream{conn: c, logger: d.logger, released: make(chan struct{})}, nil
}

func (d *Device) NewRecorder(s practice.Stream) (practice.Recorder, error) {
	ms, ok := s.(*stream)
	if !ok {
		return nil, errors.New("stream was not acquired from this device")
	}
	c := ms.conn
	c.mu.Lock()
	mime := c.mimeType
	c.mu.Unlock()
	return &recorder{conn: c, stream: ms, mimeType: mime}, nil
}

type stream struct {
	conn     *connection
	logger   *slog.Logger
	once     sync.Once
	released chan struct{}
}

func (s *stream) Tracks() []practice.Track { return []practice.Track{s} }

// Stop tells the client to release its microphone tracks. No audio can
// follow, so a recorder still waiting for its flush stops waiting.
func (s *stream) Stop() {
	s.once.Do(func() {
		close(s.released)
		select {
		case <-s.conn.done:
			return
		default:
		}
		if err := s.conn.send("release"); err != nil {
			s.logger.Debug("Failed to send release", "error", err)
		}
	})
}

type recorder struct {
	conn     *connection
	stream   *stream
	mimeType string

	mu      sync.Mutex
	started bool
	done    chan struct{} // closed when the first Stop finishes
	stopErr error
}

func (r *recorder) MimeType() string { return r.mimeType }

func (r *recorder) Start(onChunk func([]byte)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("recorder already started")
	}

	c := r.conn
	c.mu.Lock()
	c.sink = onChunk
	c.flushed = make(chan struct{})
	c.mu.Unlock()

	if err := c.send("start"); err != nil {
		c.mu.Lock()
		c.sink = nil
		c.flushed = nil
		c.mu.Unlock()
		return err
	}
	r.started = true
	return nil
}

// Stop asks the client to stop and waits for its flush acknowledgement. A
// client that disconnects, or a released stream, counts as flushed. A call
// made while the first is still waiting waits for it within its own ctx;
// later calls return the first result.
func (r *recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	if done := r.done; done != nil {
		r.mu.Unlock()
		select {
		case <-done:
			return r.result()
		default:
		}
		select {
		case <-done:
			return r.result()
		case <-r.stream.released:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	done := make(chan struct{})
	r.done = done
	r.mu.Unlock()

	err := r.awaitFlush(ctx)

	r.mu.Lock()
	r.stopErr = err
	r.mu.Unlock()
	close(done)
	return err
}

func (r *recorder) result() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopErr
}

func (r *recorder) awaitFlush(ctx context.Context) error {
	c := r.conn
	c.mu.Lock()
	flushed := c.flushed
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.sink = nil
		c.flushed = nil
		c.mu.Unlock()
	}()

	select {
	case <-c.done:
		return nil
	case <-r.stream.released:
		return nil
	default:
	}
	if err := c.send("stop"); err != nil {
		return err
	}
	if flushed == nil {
		return nil
	}

	select {
	case <-flushed:
		return nil
	case <-c.done:
		return nil
	case <-r.stream.released:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
