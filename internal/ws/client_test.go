package ws_test

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/sensornode/internal/errors"
	"codeberg.org/mutker/sensornode/internal/ws"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	messageType int
	data        []byte
}

// startEchoServer runs a WebSocket server that reports every received
// frame on the returned channel.
func startEchoServer(t *testing.T) (host string, port int, frames chan received) {
	t.Helper()

	frames = make(chan received, 16)
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- received{messageType: mt, data: data}
		}
	}))
	t.Cleanup(server.Close)

	host, portStr, err := net.SplitHostPort(server.Listener.Addr().String())
	require.NoError(t, err)
	port, err = strconv.Atoi(portStr)
	require.NoError(t, err)

	return host, port, frames
}

func TestSendBeforeConnect(t *testing.T) {
	client := ws.NewClient()

	err := client.SendBinary([]byte{0x01})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ws.ErrNotConnected))

	err = client.SendText("hello")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ws.ErrNotConnected))
}

func TestConnectFailure(t *testing.T) {
	client := ws.NewClient()

	err := client.Connect("127.0.0.1", 1, "/")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ws.ErrConnectFailed))
}

func TestSendBinary(t *testing.T) {
	host, port, frames := startEchoServer(t)

	client := ws.NewClient()
	require.NoError(t, client.Connect(host, port, "/ingest"))
	defer client.Close()

	payload := []byte{0x0a, 0x07, 'f', 'e', 'a', 't', 'h', 'e', 'r'}
	require.NoError(t, client.SendBinary(payload))

	frame := <-frames
	assert.Equal(t, websocket.BinaryMessage, frame.messageType)
	assert.Equal(t, payload, frame.data)
}

func TestSendText(t *testing.T) {
	host, port, frames := startEchoServer(t)

	client := ws.NewClient()
	require.NoError(t, client.Connect(host, port, "/"))
	defer client.Close()

	require.NoError(t, client.SendText("ping"))

	frame := <-frames
	assert.Equal(t, websocket.TextMessage, frame.messageType)
	assert.Equal(t, []byte("ping"), frame.data)
}

func TestReconnectClosesPreviousSession(t *testing.T) {
	var open atomic.Int32
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		open.Add(1)
		defer open.Add(-1)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	host, portStr, err := net.SplitHostPort(server.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client := ws.NewClient()
	require.NoError(t, client.Connect(host, port, "/"))
	require.NoError(t, client.Connect(host, port, "/"))
	defer client.Close()

	require.Eventually(t, func() bool {
		return open.Load() == 1
	}, time.Second, 10*time.Millisecond, "the replaced session should be closed")

	require.NoError(t, client.SendText("still alive"))
}

func TestCloseIsIdempotent(t *testing.T) {
	host, port, _ := startEchoServer(t)

	client := ws.NewClient()
	require.NoError(t, client.Connect(host, port, "/"))
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	err := client.SendBinary([]byte{0x01})
	assert.True(t, errors.HasCode(err, ws.ErrNotConnected))
}
