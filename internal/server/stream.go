package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/anthropics/emoji-gateway/internal/biz/domain"
)

const maxReconnectDelay = 60 * time.Second

// MentionHandler receives validated mention notes from the stream
type MentionHandler interface {
	HandleMention(ctx context.Context, note *domain.Note)
}

// StreamClient owns the long-lived streaming connection and its reconnect
// policy. At most one connection and one pending reconnect timer exist at any
// instant; teardown-before-reconnect is enforced by Connect.
type StreamClient struct {
	url     string
	handler MentionHandler
	log     *zap.Logger

	mu             sync.Mutex
	conn           *websocket.Conn
	reconnectTimer *time.Timer
	attempt        int
	channelID      string
	closed         bool
}

// NewStreamClient creates a stream client for the given websocket URL
func NewStreamClient(url string, handler MentionHandler, log *zap.Logger) *StreamClient {
	return &StreamClient{
		url:     url,
		handler: handler,
		log:     log,
	}
}

type streamFrame struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

type channelFrame struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

type connectFrame struct {
	Type string `json:"type"`
	Body struct {
		Channel string `json:"channel"`
		ID      string `json:"id"`
	} `json:"body"`
}

// Connect establishes the streaming connection, tearing down any previous
// connection and pending reconnect timer first. Dial or handshake failure
// schedules a reconnect; Connect itself never blocks on the read loop.
func (c *StreamClient) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.teardownLocked()

	c.log.Info("connecting to streaming API")
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		c.log.Warn("stream dial failed", zap.Error(err))
		c.scheduleReconnectLocked()
		return
	}

	c.channelID = uuid.NewString()
	frame := connectFrame{Type: "connect"}
	frame.Body.Channel = "main"
	frame.Body.ID = c.channelID
	if err := conn.WriteJSON(frame); err != nil {
		c.log.Warn("channel connect failed", zap.Error(err))
		_ = conn.Close()
		c.scheduleReconnectLocked()
		return
	}

	c.conn = conn
	c.attempt = 0
	c.log.Info("connected to streaming API")

	go c.readLoop(conn, c.channelID)
}

// Close stops the client permanently
func (c *StreamClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.teardownLocked()
}

func (c *StreamClient) readLoop(conn *websocket.Conn, channelID string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.onDisconnect(conn, err)
			return
		}
		c.dispatch(data, channelID)
	}
}

func (c *StreamClient) onDisconnect(conn *websocket.Conn, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A read loop from an already torn-down connection must not
	// trigger another reconnect.
	if c.conn != conn {
		return
	}
	c.conn = nil
	_ = conn.Close()

	if c.closed {
		return
	}
	c.log.Warn("disconnected from streaming API", zap.Error(err))
	c.scheduleReconnectLocked()
}

// dispatch decodes a raw frame and hands mention notes to the handler.
// Each mention runs in its own goroutine; a panic there is logged and never
// terminates the read loop.
func (c *StreamClient) dispatch(data []byte, channelID string) {
	var frame streamFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.log.Debug("undecodable stream frame", zap.Error(err))
		return
	}
	if frame.Type != "channel" {
		return
	}

	var ch channelFrame
	if err := json.Unmarshal(frame.Body, &ch); err != nil {
		c.log.Debug("undecodable channel frame", zap.Error(err))
		return
	}
	if ch.ID != channelID || ch.Type != "mention" {
		return
	}

	var note domain.Note
	if err := json.Unmarshal(ch.Body, &note); err != nil {
		c.log.Warn("undecodable mention note", zap.Error(err))
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("panic in mention handler",
					zap.String("noteId", note.ID),
					zap.Any("panic", r))
			}
		}()
		c.handler.HandleMention(context.Background(), &note)
	}()
}

func (c *StreamClient) scheduleReconnectLocked() {
	c.attempt++
	delay := fibonacciBackoff(c.attempt)
	c.log.Info("scheduling reconnect",
		zap.Int("attempt", c.attempt),
		zap.Duration("delay", delay))

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = time.AfterFunc(delay, c.Connect)
}

func (c *StreamClient) teardownLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// fibonacciBackoff returns the reconnect delay for the given attempt:
// 1, 1, 2, 3, 5, 8, … seconds, capped at maxReconnectDelay.
func fibonacciBackoff(attempt int) time.Duration {
	a, b := 1, 1
	for i := 1; i < attempt; i++ {
		if a >= int(maxReconnectDelay/time.Second) {
			break
		}
		a, b = b, a+b
	}

	delay := time.Duration(a) * time.Second
	if delay > maxReconnectDelay {
		return maxReconnectDelay
	}
	return delay
}
