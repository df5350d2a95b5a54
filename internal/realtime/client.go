package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tribeapp/tribe-server/internal/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 8192
	sendBufferSize = 256
)

// Client is one websocket session bound to a (tribe, member) pair. Its
// presence entry lives exactly as long as the connection.
type Client struct {
	co      *Coordinator
	chatSvc *chat.Service
	conn    *websocket.Conn
	send    chan []byte
	log     zerolog.Logger

	tribeID  string
	memberID string

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded connection. The caller must invoke
// Coordinator.Join before Start.
func NewClient(co *Coordinator, chatSvc *chat.Service, conn *websocket.Conn, tribeID, memberID string, log zerolog.Logger) *Client {
	return &Client{
		co:       co,
		chatSvc:  chatSvc,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		log:      log,
		tribeID:  tribeID,
		memberID: memberID,
	}
}

// TribeID returns the room this session is attached to.
func (c *Client) TribeID() string { return c.tribeID }

// MemberID returns the member that owns this session.
func (c *Client) MemberID() string { return c.memberID }

// Start launches the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		// Abrupt disconnects land here too; presence removal is identical
		// to a voluntary leave, but no tribe activity is recorded.
		c.co.Leave(c)
		c.closeSend()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Str("member", c.memberID).Msg("websocket read failed")
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.trySend(errorFrame("invalid frame"))
			continue
		}

		switch frame.Event {
		case eventSendMessage:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_, err := c.chatSvc.Send(ctx, c.tribeID, c.memberID, frame.Content, frame.Type, frame.Metadata)
			cancel()
			if err != nil {
				c.trySend(errorFrame(err.Error()))
			}
		case eventTyping:
			c.co.Typing(c, frame.IsTyping)
		case eventMarkRead:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			var err error
			if len(frame.MessageIDs) == 0 {
				err = c.chatSvc.MarkAllRead(ctx, c.tribeID, c.memberID)
			} else {
				err = c.chatSvc.MarkRead(ctx, c.tribeID, c.memberID, frame.MessageIDs)
			}
			cancel()
			if err != nil {
				c.trySend(errorFrame(err.Error()))
			}
		case eventLeaveRoom:
			return
		default:
			c.trySend(errorFrame("unknown event"))
		}
	}
}

// trySend enqueues without blocking while holding the close guard, so a
// concurrent closeSend cannot interleave with the channel send. It reports
// false only when a live client's buffer is full; frames offered to a
// closed client are dropped.
func (c *Client) trySend(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Warn().Err(err).Str("member", c.memberID).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
