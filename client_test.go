package statebind

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/st-keller/statebind-client/connection"
	"github.com/st-keller/statebind-client/dom"
	"github.com/st-keller/statebind-client/standard"
	"github.com/st-keller/statebind-client/transport"
)

const counterPage = `<!DOCTYPE html>
<html><body>
  <h1 data-bind-text="greeting">...</h1>
  <span id="echo" data-bind-text="name"></span>
  <input id="name" data-bind-value="name">
  <input id="done" type="checkbox" data-bind-checked="done">
  <button onclick="winup.sendEvent('save')">Save</button>
</body></html>`

// stateServer serves counterPage at / and hands every /ws connection to the
// test.
type stateServer struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
}

func newStateServer(t *testing.T) *stateServer {
	t.Helper()
	s := &stateServer{conns: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, counterPage)
	})
	mux.HandleFunc(transport.EndpointPath, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- conn
	})
	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *stateServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("client never connected")
		return nil
	}
}

func push(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func receive(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func element(t *testing.T, doc *dom.Document, xpath string) *dom.Element {
	t.Helper()
	el, err := doc.QuerySelector(xpath)
	require.NoError(t, err)
	require.NotNil(t, el, xpath)
	return el
}

func startClient(t *testing.T, s *stateServer, delay time.Duration) *Client {
	t.Helper()
	client, err := New(Config{PageURL: s.srv.URL + "/", ReconnectDelay: delay})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Start(ctx))
	t.Cleanup(client.Stop)
	return client
}

func TestClientSynchronizesBothWays(t *testing.T) {
	s := newStateServer(t)
	client := startClient(t, s, 0)
	server := s.accept(t)

	require.Eventually(t, func() bool {
		return client.Status().State == connection.StateOpen
	}, 5*time.Second, 5*time.Millisecond)

	doc := client.Document()
	h1 := element(t, doc, "//h1")
	echo := element(t, doc, "//span[@id='echo']")
	name := element(t, doc, "//input[@id='name']")
	done := element(t, doc, "//input[@id='done']")

	// Inbound: text, value, checked.
	push(t, server, `{"type":"state_update","key":"greeting","value":"Hello"}`)
	push(t, server, `{"type":"state_update","key":"name","value":"Grace"}`)
	push(t, server, `{"type":"state_update","key":"done","value":1}`)
	require.Eventually(t, func() bool { return done.Checked() }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Hello", h1.TextContent())
	assert.Equal(t, "Grace", echo.TextContent())
	assert.Equal(t, "Grace", name.Value())

	value, ok := client.Value("done")
	require.True(t, ok)
	assert.Equal(t, float64(1), value)

	// Outbound: a user edit becomes exactly one state_set.
	doc.Focus(name)
	doc.Input(name, "Ada")
	assert.Equal(t, map[string]any{"type": "state_set", "key": "name", "value": "Ada"}, receive(t, server))

	doc.Toggle(done)
	assert.Equal(t, map[string]any{"type": "state_set", "key": "done", "value": false}, receive(t, server))

	// The focused input ignores a racing echo; other bindings still update.
	push(t, server, `{"type":"state_update","key":"name","value":"Ad"}`)
	require.Eventually(t, func() bool { return echo.TextContent() == "Ad" }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Ada", name.Value())

	// Unknown and malformed frames change nothing.
	push(t, server, `{"type":"ping"}`)
	push(t, server, `{"type":"state_batch","key":["greeting","name"]}`)
	push(t, server, `{not json`)
	push(t, server, `{"type":"state_update","key":"greeting","value":"After"}`)
	require.Eventually(t, func() bool { return h1.TextContent() == "After" }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Ada", name.Value())
	assert.Equal(t, connection.StateOpen, client.Status().State, "malformed frames do not drop the connection")

	var malformed int
	for _, entry := range client.Logs().Entries() {
		if entry.Level == standard.LevelWarn && entry.Message == "Ignoring malformed frame" {
			malformed++
		}
	}
	assert.Equal(t, 1, malformed, "only the non-JSON frame is malformed")

	// Application event.
	require.NoError(t, client.SendEvent("save"))
	assert.Equal(t, map[string]any{"type": "trigger_event", "event_id": "save"}, receive(t, server))
}

func TestClientReconnectsAfterServerClose(t *testing.T) {
	s := newStateServer(t)
	client := startClient(t, s, 20*time.Millisecond)
	first := s.accept(t)
	require.Eventually(t, func() bool {
		return client.Status().State == connection.StateOpen
	}, 5*time.Second, 5*time.Millisecond)
	firstID := client.Status().ConnectionID

	first.Close()

	second := s.accept(t)
	require.Eventually(t, func() bool {
		status := client.Status()
		return status.State == connection.StateOpen && status.ConnectionID != firstID
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), client.Status().Attempts)

	push(t, second, `{"type":"state_update","key":"greeting","value":"back"}`)
	h1 := element(t, client.Document(), "//h1")
	require.Eventually(t, func() bool { return h1.TextContent() == "back" }, 5*time.Second, 5*time.Millisecond)

	snap := client.Connectivity().Snapshot()
	assert.Equal(t, 2, snap.Opened)
	assert.GreaterOrEqual(t, snap.Closed, 1)
}

// blockingDialer never completes a dial until its context ends.
type blockingDialer struct{}

func (blockingDialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSendEventWhileNotOpen(t *testing.T) {
	doc, err := dom.ParseString(counterPage)
	require.NoError(t, err)

	client, err := New(Config{PageURL: "http://localhost:1/"},
		WithDocument(doc), WithDialer(blockingDialer{}))
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:1/ws", client.Endpoint())

	assert.True(t, IsNotOpen(client.SendEvent("too-early")))

	require.NoError(t, client.Start(context.Background()))
	require.Eventually(t, func() bool {
		return client.Status().State == connection.StateConnecting
	}, 5*time.Second, 5*time.Millisecond)
	assert.True(t, IsNotOpen(client.SendEvent("still-early")))

	name := element(t, doc, "//input[@id='name']")
	assert.NotPanics(t, func() { doc.Input(name, "typed offline") })

	decls, err := client.Declarations()
	require.NoError(t, err)
	assert.Len(t, decls, 4)

	client.Stop()
	assert.ErrorIs(t, client.SendEvent("late"), connection.ErrStopped)
	assert.ErrorIs(t, client.Start(context.Background()), connection.ErrStopped)
	require.Eventually(t, func() bool {
		return client.Status().State == connection.StateClosed
	}, 5*time.Second, 5*time.Millisecond)
}

func TestStopDuringPageLoadPreventsAttach(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		io.WriteString(w, counterPage)
	}))
	t.Cleanup(srv.Close)

	client, err := New(Config{PageURL: srv.URL + "/"}, WithDialer(blockingDialer{}))
	require.NoError(t, err)

	started := make(chan error, 1)
	go func() { started <- client.Start(context.Background()) }()

	<-entered
	client.Stop()
	close(release)

	select {
	case err := <-started:
		require.ErrorIs(t, err, connection.ErrStopped)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return")
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Nil(t, client.listener, "no listener on a stopped client")
	assert.Nil(t, client.dispatcher)
	assert.False(t, client.running)
}
