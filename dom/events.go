package dom

// EventType names a DOM event.
type EventType string

const (
	EventInput  EventType = "input"
	EventChange EventType = "change"
)

// Event is delivered to listeners registered on the document root. Every
// event fired on an element inside the body bubbles there.
type Event struct {
	Type   EventType
	Target *Element
}

// Listener handles a bubbled event.
type Listener func(Event)

type listenerEntry struct {
	fn Listener
}

// AddEventListener registers fn at the document root and returns a function
// that removes it.
func (d *Document) AddEventListener(t EventType, fn Listener) func() {
	entry := &listenerEntry{fn: fn}

	d.listenersMu.Lock()
	d.listeners[t] = append(d.listeners[t], entry)
	d.listenersMu.Unlock()

	return func() {
		d.listenersMu.Lock()
		defer d.listenersMu.Unlock()
		entries := d.listeners[t]
		for i, e := range entries {
			if e == entry {
				d.listeners[t] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// DispatchEvent fires ev at its target. Detached targets do not bubble.
func (d *Document) DispatchEvent(ev Event) {
	if ev.Target == nil {
		return
	}
	d.mu.Lock()
	attached := d.attachedLocked(ev.Target)
	d.mu.Unlock()
	if !attached {
		return
	}

	d.listenersMu.Lock()
	entries := append([]*listenerEntry(nil), d.listeners[ev.Type]...)
	d.listenersMu.Unlock()

	for _, e := range entries {
		e.fn(ev)
	}
}

// Input simulates a user edit: the control's value changes, then an input
// event fires.
func (d *Document) Input(el *Element, value string) {
	el.SetValue(value)
	d.DispatchEvent(Event{Type: EventInput, Target: el})
}

// Toggle simulates a user click on a checkbox: checked flips, then a change
// event fires.
func (d *Document) Toggle(el *Element) {
	d.mu.Lock()
	el.checked = !el.checked
	d.mu.Unlock()
	d.DispatchEvent(Event{Type: EventChange, Target: el})
}
