// Package ws implements the framing client that turns the byte-stream
// socket into discrete WebSocket messages. The connection is exclusively
// owned by the forwarder goroutine, so no locking is needed here.
package ws

import (
	"net"
	"net/url"
	"strconv"

	"codeberg.org/mutker/sensornode/internal/errors"
	"codeberg.org/mutker/sensornode/internal/logger"
	"github.com/gorilla/websocket"
)

const bufferSize = 4096

// Client is a thin wrapper around a persistent WebSocket connection.
type Client struct {
	conn   *websocket.Conn
	dialer websocket.Dialer
}

func NewClient() *Client {
	return &Client{
		dialer: websocket.Dialer{
			ReadBufferSize:  bufferSize,
			WriteBufferSize: bufferSize,
		},
	}
}

// Connect opens the WebSocket session. The handshake blocks until the
// server responds or the underlying dial times out.
func (c *Client) Connect(host string, port int, path string) error {
	errFactory := errors.New()

	// Reconnect replaces the session; drop the old one so it cannot leak
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			logger.Debug().Err(err).Msg("Failed to close previous session")
		}
		c.conn = nil
	}

	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   path,
	}

	conn, _, err := c.dialer.Dial(u.String(), nil)
	if err != nil {
		return errFactory.Wrap(ErrConnectFailed, err)
	}

	c.conn = conn
	logger.Debug().Str("url", u.String()).Msg("WebSocket session open")

	return nil
}

// SendText sends one text message.
func (c *Client) SendText(text string) error {
	if c.conn == nil {
		return errors.New().New(ErrNotConnected)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return errors.New().Wrap(ErrSendFailed, err)
	}

	return nil
}

// SendBinary sends one binary message.
func (c *Client) SendBinary(data []byte) error {
	if c.conn == nil {
		return errors.New().New(ErrNotConnected)
	}

	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return errors.New().Wrap(ErrSendFailed, err)
	}

	return nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}
