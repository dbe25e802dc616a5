package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer upgrades /ws, sends a binary frame (which clients skip) and one
// text frame, then echoes text frames back.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.BinaryMessage, []byte{0x01})
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"hello"}`))
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == "bye" {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			conn.WriteMessage(mt, data)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + EndpointPath
}

func TestWebSocketDialer(t *testing.T) {
	srv := echoServer(t)
	dialer := &WebSocketDialer{HandshakeTimeout: 5 * time.Second}

	conn, err := dialer.Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer conn.Close()

	frame, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"hello"}`, string(frame), "binary frames are skipped")

	require.NoError(t, conn.WriteMessage([]byte(`{"type":"trigger_event","event_id":"e"}`)))
	frame, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"trigger_event","event_id":"e"}`, string(frame))

	require.NoError(t, conn.WriteMessage([]byte("bye")))
	_, err = conn.ReadMessage()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWebSocketDialerFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := (&WebSocketDialer{}).Dial(context.Background(), wsURL(srv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status: 404")
}

func TestWebSocketCloseUnblocksRead(t *testing.T) {
	srv := echoServer(t)
	conn, err := (&WebSocketDialer{}).Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)

	_, err = conn.ReadMessage()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := conn.ReadMessage()
		done <- err
	}()

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close(), "Close is idempotent")
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ReadMessage still blocked after Close")
	}
}
