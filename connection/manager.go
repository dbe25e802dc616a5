// Package connection owns the single logical connection to the state server:
// it opens it, notices when it is gone, and reopens it after a fixed delay,
// forever.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/st-keller/statebind-client/codec"
	"github.com/st-keller/statebind-client/standard"
	"github.com/st-keller/statebind-client/transport"
)

// DefaultReconnectDelay is the fixed pause between a detected close and the
// next connection attempt. There is no backoff and no retry cap.
const DefaultReconnectDelay = 3000 * time.Millisecond

var (
	ErrNotOpen = errors.New("connection is not open")
	ErrStopped = errors.New("connection manager stopped")
)

// State of a Connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of the manager.
type Status struct {
	State        State
	ConnectionID string // empty before the first attempt
	Attempts     uint64
}

// Options configures a Manager. URL, Dialer and OnMessage are required.
type Options struct {
	URL            string
	Dialer         transport.Dialer
	OnMessage      func(frame []byte)
	ReconnectDelay time.Duration // 0 = DefaultReconnectDelay
	Clock          Clock         // nil = SystemClock
	Logs           *standard.RecentLogs
	Connectivity   *standard.ConnectivityTracker
}

// connectionHandle is one attempt. It is created per attempt and never
// reused; only the Manager holds it.
type connectionHandle struct {
	id        uuid.UUID
	state     State
	conn      transport.Conn
	closeOnce sync.Once
}

// Manager owns the connection. Other components only see Send and Status.
type Manager struct {
	url          string
	dialer       transport.Dialer
	onMessage    func([]byte)
	delay        time.Duration
	clock        Clock
	logs         *standard.RecentLogs
	connectivity *standard.ConnectivityTracker

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	current  *connectionHandle
	timer    Timer
	started  bool
	stopped  bool
	attempts uint64
}

// NewManager validates opts and creates an idle manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("URL required")
	}
	if opts.Dialer == nil {
		return nil, fmt.Errorf("Dialer required")
	}
	if opts.OnMessage == nil {
		return nil, fmt.Errorf("OnMessage required")
	}
	if opts.ReconnectDelay < 0 {
		return nil, fmt.Errorf("ReconnectDelay must not be negative")
	}
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Logs == nil {
		opts.Logs = standard.NewRecentLogs(0, nil)
	}
	if opts.Connectivity == nil {
		opts.Connectivity = standard.NewConnectivityTracker(opts.URL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		url:          opts.URL,
		dialer:       opts.Dialer,
		onMessage:    opts.OnMessage,
		delay:        opts.ReconnectDelay,
		clock:        opts.Clock,
		logs:         opts.Logs,
		connectivity: opts.Connectivity,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start begins the first connection attempt in the background.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrStopped
	}
	if m.started {
		return fmt.Errorf("connection manager already started")
	}
	m.started = true

	go m.connect()
	return nil
}

// Stop closes the connection and cancels any scheduled reconnect. A stopped
// manager cannot be restarted.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	var conn transport.Conn
	if m.current != nil {
		conn = m.current.conn
	}
	m.mu.Unlock()

	m.cancel()
	if conn != nil {
		conn.Close()
	}
}

// Status reports the state of the current connection.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := Status{State: StateClosed, Attempts: m.attempts}
	if m.current != nil {
		status.State = m.current.state
		status.ConnectionID = m.current.id.String()
	}
	return status
}

// Send encodes cmd and writes it if the connection is open. Otherwise the
// command is dropped, never queued: a later reconnect does not replay it.
func (m *Manager) Send(cmd codec.Command) error {
	frame, err := codec.Encode(cmd)
	if err != nil {
		return err
	}

	m.mu.Lock()
	stopped := m.stopped
	c := m.current
	state := StateClosed
	if c != nil {
		state = c.state
	}
	m.mu.Unlock()

	if stopped {
		return ErrStopped
	}
	if state != StateOpen {
		m.connectivity.TrackDropped()
		m.logs.Warn("Cannot send message, connection is not open", map[string]any{
			"type":  cmd.Type(),
			"state": state.String(),
		})
		return ErrNotOpen
	}

	if err := c.conn.WriteMessage(frame); err != nil {
		// A failed write precedes the close; closing here lets the read loop
		// observe it and schedule the one reconnect.
		m.logs.Warn("Transport error on send", map[string]any{
			"connection_id": c.id.String(),
			"type":          cmd.Type(),
			"error":         err.Error(),
		})
		c.conn.Close()
		return fmt.Errorf("send %s: %w", cmd.Type(), err)
	}
	return nil
}

// connect makes one attempt with a fresh handle.
func (m *Manager) connect() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	c := &connectionHandle{id: uuid.New(), state: StateConnecting}
	m.current = c
	m.timer = nil
	m.attempts++
	m.mu.Unlock()

	start := time.Now()
	conn, err := m.dialer.Dial(m.ctx, m.url)
	latency := time.Since(start)
	if err != nil {
		if m.ctx.Err() == nil {
			m.connectivity.TrackFailure(latency, err.Error())
			m.logs.Warn("Connection attempt failed", map[string]any{
				"connection_id": c.id.String(),
				"url":           m.url,
				"error":         err.Error(),
			})
		}
		m.closed(c, err)
		return
	}

	m.mu.Lock()
	if m.stopped || m.current != c {
		c.state = StateClosed
		m.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.state = StateOpen
	m.mu.Unlock()

	m.connectivity.TrackSuccess(latency)
	m.logs.Info("Connection established", map[string]any{
		"connection_id": c.id.String(),
		"url":           m.url,
		"latency_ms":    latency.Milliseconds(),
	})

	go m.readLoop(c)
}

func (m *Manager) readLoop(c *connectionHandle) {
	for {
		frame, err := c.conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, transport.ErrClosed) && m.ctx.Err() == nil {
				m.logs.Warn("Transport error", map[string]any{
					"connection_id": c.id.String(),
					"error":         err.Error(),
				})
			}
			m.connectivity.TrackClose(err.Error())
			m.closed(c, err)
			return
		}
		m.onMessage(frame)
	}
}

// closed marks c closed and schedules exactly one reconnect for it.
func (m *Manager) closed(c *connectionHandle, cause error) {
	c.closeOnce.Do(func() {
		m.mu.Lock()
		c.state = StateClosed
		conn := c.conn
		schedule := !m.stopped && m.current == c
		if schedule {
			m.timer = m.clock.AfterFunc(m.delay, m.connect)
		}
		m.mu.Unlock()

		if conn != nil {
			conn.Close()
		}
		if schedule {
			m.logs.Info("Connection closed, reconnecting", map[string]any{
				"connection_id": c.id.String(),
				"cause":         cause.Error(),
				"retry_in":      m.delay.String(),
			})
		}
	})
}
