package statebind

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/st-keller/statebind-client/binding"
	"github.com/st-keller/statebind-client/codec"
	"github.com/st-keller/statebind-client/connection"
	"github.com/st-keller/statebind-client/dom"
	"github.com/st-keller/statebind-client/registry"
	"github.com/st-keller/statebind-client/standard"
	"github.com/st-keller/statebind-client/transport"
)

// Option customizes a Client.
type Option func(*options)

type options struct {
	dialer     transport.Dialer
	clock      connection.Clock
	logger     *zap.Logger
	doc        *dom.Document
	httpClient *http.Client
}

// WithDialer replaces the websocket dialer (tests use a fake transport).
func WithDialer(d transport.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithClock replaces the clock that schedules reconnects.
func WithClock(clock connection.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithLogger mirrors diagnostics to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDocument binds an already parsed page instead of fetching PageURL.
func WithDocument(doc *dom.Document) Option {
	return func(o *options) { o.doc = doc }
}

// WithHTTPClient replaces the client used by LoadPage.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// Client is the binding client for one page.
type Client struct {
	config   Config
	endpoint string
	http     *http.Client

	logs         *standard.RecentLogs
	connectivity *standard.ConnectivityTracker
	state        *registry.Registry
	manager      *connection.Manager

	mu         sync.Mutex
	doc        *dom.Document
	dispatcher *binding.Dispatcher
	listener   *binding.Listener
	running    bool
	stopped    bool
}

// New creates a client for config. Nothing connects until Start.
func New(config Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	endpoint, err := transport.EndpointURL(config.PageURL)
	if err != nil {
		return nil, err
	}

	tlsConfig, err := transport.BuildTLSConfig(config.CAPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build TLS config: %w", err)
	}
	if o.httpClient == nil {
		o.httpClient, err = transport.BuildHTTP2Client(tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to build HTTP client: %w", err)
		}
	}
	if o.dialer == nil {
		o.dialer = &transport.WebSocketDialer{
			TLSConfig:        tlsConfig,
			HandshakeTimeout: config.HandshakeTimeout,
		}
	}

	logs := standard.NewRecentLogs(config.MaxLogEntries, o.logger)
	connectivity := standard.NewConnectivityTracker(endpoint)

	c := &Client{
		config:       config,
		endpoint:     endpoint,
		http:         o.httpClient,
		logs:         logs,
		connectivity: connectivity,
		state:        registry.New(),
		doc:          o.doc,
	}

	c.manager, err = connection.NewManager(connection.Options{
		URL:            endpoint,
		Dialer:         o.dialer,
		OnMessage:      c.handleFrame,
		ReconnectDelay: config.ReconnectDelay,
		Clock:          o.clock,
		Logs:           logs,
		Connectivity:   connectivity,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}

	logs.Info("Binding client initialized", map[string]any{
		"page_url": config.PageURL,
		"endpoint": endpoint,
	})
	return c, nil
}

// LoadPage fetches PageURL and parses it as the bound document. It must be
// called before Start; Start calls it when no document was supplied.
func (c *Client) LoadPage(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.PageURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build page request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("failed to fetch page: HTTP %d: %s", resp.StatusCode, string(body))
	}

	doc, err := dom.Parse(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse page: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("cannot replace the document of a running client")
	}
	c.doc = doc

	c.logs.Info("Page loaded", map[string]any{
		"page_url": c.config.PageURL,
		"proto":    resp.Proto,
	})
	return nil
}

// Start is the DOM-ready step: it loads the page if needed, attaches the
// binding listener and opens the connection.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return connection.ErrStopped
	}
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("client already running")
	}
	needPage := c.doc == nil
	c.mu.Unlock()

	if needPage {
		if err := c.LoadPage(ctx); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return connection.ErrStopped
	}
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("client already running")
	}
	doc := c.doc
	c.dispatcher = binding.NewDispatcher(doc)
	c.listener = binding.NewListener(doc, c.manager)
	c.listener.Attach()
	c.running = true
	c.mu.Unlock()

	decls, err := registry.Declarations(doc)
	if err != nil {
		c.logs.Warn("Failed to index bindings", map[string]any{
			"error": err.Error(),
		})
	} else {
		c.logs.Info("Bindings discovered", map[string]any{
			"declarations": len(decls),
		})
	}

	return c.manager.Start()
}

// Stop detaches the listener and closes the connection. There is no restart.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.running = false
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		listener.Detach()
	}
	c.manager.Stop()

	c.logs.Info("Binding client stopped", map[string]any{
		"endpoint": c.endpoint,
	})
}

// SendEvent fires an application event at the server without waiting for
// any acknowledgement. When the connection is not open the event is dropped
// and connection.ErrNotOpen is returned; it is never sent later.
func (c *Client) SendEvent(eventID string) error {
	return c.manager.Send(codec.TriggerEvent{EventID: eventID})
}

// Status reports the connection state.
func (c *Client) Status() connection.Status {
	return c.manager.Status()
}

// Endpoint returns the derived state socket address.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Value returns the last value the server sent for key.
func (c *Client) Value(key string) (any, bool) {
	entry, ok := c.state.Get(key)
	return entry.Value, ok
}

// State returns the mirrored state registry.
func (c *Client) State() *registry.Registry {
	return c.state
}

// Document returns the bound document, or nil before it is loaded.
func (c *Client) Document() *dom.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc
}

// Declarations indexes the binding attributes of the bound document.
func (c *Client) Declarations() ([]registry.Declaration, error) {
	doc := c.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	return registry.Declarations(doc)
}

// Logs returns the diagnostics buffer.
func (c *Client) Logs() *standard.RecentLogs {
	return c.logs
}

// Connectivity returns the connection tracker.
func (c *Client) Connectivity() *standard.ConnectivityTracker {
	return c.connectivity
}

// handleFrame is the connection's message callback.
func (c *Client) handleFrame(frame []byte) {
	msg, err := codec.Decode(frame)
	if err != nil {
		// Malformed frames are logged and dropped; the connection stays up.
		c.logs.Warn("Ignoring malformed frame", map[string]any{
			"error": err.Error(),
			"bytes": len(frame),
		})
		return
	}

	switch m := msg.(type) {
	case codec.StateUpdate:
		if _, err := c.state.Record(m.Key, m.Value); err != nil {
			c.logs.Debug("Failed to mirror state", map[string]any{
				"key":   m.Key,
				"error": err.Error(),
			})
		}

		c.mu.Lock()
		dispatcher := c.dispatcher
		c.mu.Unlock()
		if dispatcher == nil {
			return
		}
		if err := dispatcher.Dispatch(m.Key, m.Value); err != nil {
			c.logs.Warn("Failed to apply state update", map[string]any{
				"key":   m.Key,
				"error": err.Error(),
			})
		}
	default:
		c.logs.Debug("Ignoring message", map[string]any{
			"type": msg.Type(),
		})
	}
}

var _ binding.Sender = (*connection.Manager)(nil)

// IsNotOpen reports whether err means a command was dropped because the
// connection was not open.
func IsNotOpen(err error) bool {
	return errors.Is(err, connection.ErrNotOpen)
}
