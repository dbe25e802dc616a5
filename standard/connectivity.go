package standard

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// ConnectionEvent is one observation about the state server connection.
type ConnectionEvent struct {
	Timestamp time.Time
	Kind      EventKind
	Latency   time.Duration // dial latency, for EventOpened and EventFailed
	Error     string
}

// EventKind classifies a ConnectionEvent.
type EventKind string

const (
	EventOpened  EventKind = "opened"
	EventFailed  EventKind = "failed"  // dial never completed
	EventClosed  EventKind = "closed"  // an open connection went away
	EventDropped EventKind = "dropped" // send rejected while not open
)

// ConnectivitySnapshot summarizes the last hour of events.
type ConnectivitySnapshot struct {
	URL          string
	Status       string // "healthy", "degraded", "unhealthy" or "unknown"
	Attempts     int
	Opened       int
	Failed       int
	Closed       int
	Dropped      int
	LastOpened   time.Time
	LatencyP50   time.Duration
	LatencyP95   time.Duration
	LatencyP99   time.Duration
	RecentErrors []string
}

// ConnectivityTracker records connection attempts and their outcomes for the
// single state server endpoint.
type ConnectivityTracker struct {
	mu     sync.Mutex
	url    string
	events []ConnectionEvent
	now    func() time.Time
}

// NewConnectivityTracker creates a tracker for the endpoint url.
func NewConnectivityTracker(url string) *ConnectivityTracker {
	return &ConnectivityTracker{url: url, now: time.Now}
}

// TrackSuccess records a dial that produced an open connection.
func (t *ConnectivityTracker) TrackSuccess(latency time.Duration) {
	t.track(ConnectionEvent{Kind: EventOpened, Latency: latency})
}

// TrackFailure records a dial that failed.
func (t *ConnectivityTracker) TrackFailure(latency time.Duration, errorMsg string) {
	t.track(ConnectionEvent{Kind: EventFailed, Latency: latency, Error: errorMsg})
}

// TrackClose records the loss of an open connection.
func (t *ConnectivityTracker) TrackClose(errorMsg string) {
	t.track(ConnectionEvent{Kind: EventClosed, Error: errorMsg})
}

// TrackDropped records a command dropped because the connection was not open.
func (t *ConnectivityTracker) TrackDropped() {
	t.track(ConnectionEvent{Kind: EventDropped})
}

func (t *ConnectivityTracker) track(ev ConnectionEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ev.Timestamp = t.now().UTC()
	t.events = append(t.events, ev)
	t.pruneOldEvents()
}

// pruneOldEvents removes events older than 1 hour.
func (t *ConnectivityTracker) pruneOldEvents() {
	oneHourAgo := t.now().Add(-1 * time.Hour)
	for i, ev := range t.events {
		if ev.Timestamp.After(oneHourAgo) {
			t.events = t.events[i:]
			return
		}
	}
	t.events = nil
}

// Snapshot summarizes the retained events.
func (t *ConnectivityTracker) Snapshot() ConnectivitySnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := ConnectivitySnapshot{URL: t.url, Status: "unknown", RecentErrors: []string{}}
	dials := lo.Filter(t.events, func(ev ConnectionEvent, _ int) bool {
		return ev.Kind == EventOpened || ev.Kind == EventFailed
	})

	for _, ev := range t.events {
		switch ev.Kind {
		case EventOpened:
			snap.Opened++
			if ev.Timestamp.After(snap.LastOpened) {
				snap.LastOpened = ev.Timestamp
			}
		case EventFailed:
			snap.Failed++
		case EventClosed:
			snap.Closed++
		case EventDropped:
			snap.Dropped++
		}
		if ev.Error != "" {
			snap.RecentErrors = append(snap.RecentErrors, ev.Error)
		}
	}
	if n := len(snap.RecentErrors); n > 5 {
		snap.RecentErrors = snap.RecentErrors[n-5:]
	}
	snap.Attempts = len(dials)
	if snap.Attempts == 0 {
		return snap
	}

	latencies := lo.Map(dials, func(ev ConnectionEvent, _ int) time.Duration {
		return ev.Latency
	})
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	snap.LatencyP50 = percentile(latencies, 0.50)
	snap.LatencyP95 = percentile(latencies, 0.95)
	snap.LatencyP99 = percentile(latencies, 0.99)

	successRate := float64(snap.Opened) / float64(snap.Attempts)
	switch {
	case successRate < 0.9:
		snap.Status = "unhealthy"
	case successRate < 0.95:
		snap.Status = "degraded"
	default:
		snap.Status = "healthy"
	}
	return snap
}

// percentile calculates the percentile of a sorted slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	index := int(float64(len(sorted)-1) * p)
	return sorted[index]
}
