package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"friend-connect-backend/internal/features/notification/models"
	"friend-connect-backend/internal/features/notification/presence"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// conn is a presence.Channel over a websocket. Frames are queued and written
// by a single writer goroutine so Send never blocks the caller.
type conn struct {
	id     string
	ws     *websocket.Conn
	send   chan models.Frame
	done   chan struct{}
	once   sync.Once
	logger zerolog.Logger
}

func newConn(ws *websocket.Conn, buffer int, logger zerolog.Logger) *conn {
	if buffer <= 0 {
		buffer = 1
	}
	id := uuid.NewString()
	return &conn{
		id:     id,
		ws:     ws,
		send:   make(chan models.Frame, buffer),
		done:   make(chan struct{}),
		logger: logger.With().Str("channel", id).Logger(),
	}
}

func (c *conn) ID() string { return c.id }

func (c *conn) Send(frame models.Frame) error {
	select {
	case <-c.done:
		return presence.ErrChannelClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return presence.ErrChannelClosed
	default:
		return presence.ErrChannelFull
	}
}

// Close stops the writer, which sends a close frame and closes the socket.
func (c *conn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(frame); err != nil {
				c.logger.Debug().Err(err).Msg("Websocket write failed")
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			// Flush what is already queued before closing.
			for {
				select {
				case frame := <-c.send:
					_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.ws.WriteJSON(frame); err != nil {
						return
					}
				default:
					_ = c.ws.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(writeWait))
					return
				}
			}
		}
	}
}
