package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/room4-2/livedesk/messages"
	"github.com/room4-2/livedesk/relay"
)

const (
	writeBufferSize = 256
	writeTimeout    = 10 * time.Second
	readLimit       = 512 * 1024
)

// WSTransport carries frames over a client WebSocket. All writes go through
// one pump goroutine; gorilla allows a single concurrent writer.
type WSTransport struct {
	conn      *websocket.Conn
	keepAlive time.Duration
	logger    *zap.Logger

	writeChan chan *messages.ServerFrame
	done      chan struct{}
	pumpDone  chan struct{}
	closeOnce sync.Once

	// set while a ReadFrame context is done; pongs must not extend the deadline then
	readCancelled atomic.Bool
}

// NewWSTransport starts the write pump. keepAlive > 0 enables pings and a
// read deadline of twice that period.
func NewWSTransport(conn *websocket.Conn, keepAlive time.Duration, logger *zap.Logger) *WSTransport {
	conn.SetReadLimit(readLimit)
	conn.EnableWriteCompression(true)
	_ = conn.SetCompressionLevel(6)

	t := &WSTransport{
		conn:      conn,
		keepAlive: keepAlive,
		logger:    logger,
		writeChan: make(chan *messages.ServerFrame, writeBufferSize),
		done:      make(chan struct{}),
		pumpDone:  make(chan struct{}),
	}
	if keepAlive > 0 {
		conn.SetPongHandler(func(string) error {
			if t.readCancelled.Load() {
				return conn.SetReadDeadline(time.Now())
			}
			return conn.SetReadDeadline(time.Now().Add(2 * keepAlive))
		})
	}
	go t.writePump()
	return t
}

func (t *WSTransport) closed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// ReadFrame returns the next client frame. Binary messages are raw 16 kHz
// PCM and are wrapped as audio frames.
func (t *WSTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	// keepalive deadline first so a cancel cannot be overwritten by it
	t.readCancelled.Store(false)
	if t.keepAlive > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(2 * t.keepAlive))
	}
	stop := context.AfterFunc(ctx, func() {
		t.readCancelled.Store(true)
		_ = t.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	messageType, data, err := t.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var closeErr *websocket.CloseError
		if t.closed() || errors.As(err, &closeErr) {
			return nil, fmt.Errorf("%w: %v", relay.ErrClosed, err)
		}
		return nil, fmt.Errorf("websocket read: %w", err)
	}

	if messageType == websocket.BinaryMessage {
		return messages.AudioFrameFromPCM(data)
	}
	return data, nil
}

// WriteFrame queues a frame, waiting for room in the queue
func (t *WSTransport) WriteFrame(ctx context.Context, frame *messages.ServerFrame) error {
	if t.closed() {
		return relay.ErrClosed
	}
	select {
	case t.writeChan <- frame:
		return nil
	case <-t.done:
		return relay.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify queues a frame if there is room
func (t *WSTransport) Notify(frame *messages.ServerFrame) bool {
	if t.closed() {
		return false
	}
	select {
	case t.writeChan <- frame:
		return true
	default:
		return false
	}
}

// Close flushes queued frames, sends a close message and closes the socket
func (t *WSTransport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	<-t.pumpDone
	return nil
}

// writePump handles all outgoing messages in a single goroutine
func (t *WSTransport) writePump() {
	defer close(t.pumpDone)
	defer t.conn.Close()

	var ping <-chan time.Time
	if t.keepAlive > 0 {
		ticker := time.NewTicker(t.keepAlive)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-t.done:
			t.flush()
			_ = t.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout),
			)
			return

		case frame := <-t.writeChan:
			if err := t.write(frame); err != nil {
				t.logger.Debug("websocket write failed", zap.Error(err))
				t.closeOnce.Do(func() { close(t.done) })
				return
			}

		case <-ping:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				t.logger.Debug("websocket ping failed", zap.Error(err))
				t.closeOnce.Do(func() { close(t.done) })
				return
			}
		}
	}
}

// flush writes whatever is still queued
func (t *WSTransport) flush() {
	for {
		select {
		case frame := <-t.writeChan:
			if err := t.write(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (t *WSTransport) write(frame *messages.ServerFrame) error {
	data, err := messages.Encode(frame)
	if err != nil {
		return err
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}
