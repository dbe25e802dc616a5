package binding

import (
	"sync"

	"github.com/st-keller/statebind-client/codec"
	"github.com/st-keller/statebind-client/dom"
)

// Sender delivers a command to the server. The connection manager is the
// production implementation.
type Sender interface {
	Send(cmd codec.Command) error
}

// Listener observes input and change events at the document root and turns
// edits of bound controls into state_set commands. It reads only the
// triggering element.
type Listener struct {
	doc    *dom.Document
	sender Sender

	mu      sync.Mutex
	removes []func()
}

// NewListener creates a listener; call Attach to start observing.
func NewListener(doc *dom.Document, sender Sender) *Listener {
	return &Listener{doc: doc, sender: sender}
}

// Attach registers the root observers. Calling it twice is a no-op.
func (l *Listener) Attach() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.removes != nil {
		return
	}
	l.removes = []func(){
		l.doc.AddEventListener(dom.EventInput, l.onInput),
		l.doc.AddEventListener(dom.EventChange, l.onChange),
	}
}

// Detach removes the root observers.
func (l *Listener) Detach() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, remove := range l.removes {
		remove()
	}
	l.removes = nil
}

func (l *Listener) onInput(ev dom.Event) {
	target := ev.Target
	if tag := target.TagName(); tag != "INPUT" && tag != "TEXTAREA" {
		return
	}
	key, _ := target.Attr(Value.Attr())
	if key == "" {
		return
	}
	// Send failures are already reported by the sender.
	_ = l.sender.Send(codec.StateSet{Key: key, Value: target.Value()})
}

func (l *Listener) onChange(ev dom.Event) {
	target := ev.Target
	if target.Type() != "checkbox" {
		return
	}
	key, _ := target.Attr(Checked.Attr())
	if key == "" {
		return
	}
	_ = l.sender.Send(codec.StateSet{Key: key, Value: target.Checked()})
}
