package binding

import (
	"fmt"

	"github.com/st-keller/statebind-client/codec"
	"github.com/st-keller/statebind-client/dom"
)

// Dispatcher writes state updates into every element bound to the key.
type Dispatcher struct {
	doc *dom.Document
}

// NewDispatcher creates a dispatcher over doc.
func NewDispatcher(doc *dom.Document) *Dispatcher {
	return &Dispatcher{doc: doc}
}

// Dispatch applies value to the elements bound to key, matched by exact
// attribute equality. The whole update runs as one batch under the
// document lock.
//
// A focused value-bound element is left untouched: while the user is typing
// in it, the element is the source of truth and a server echo must not
// clobber the keystroke in progress.
func (d *Dispatcher) Dispatch(key string, value any) error {
	text := codec.Text(value)
	checked := codec.Truthy(value)

	return d.doc.Batch(func(tx *dom.Tx) error {
		for _, kind := range Kinds {
			elements, err := tx.QueryAttr(kind.Attr(), key)
			if err != nil {
				return fmt.Errorf("query %s bindings for %q: %w", kind, key, err)
			}
			for _, el := range elements {
				switch kind {
				case Text:
					tx.SetTextContent(el, text)
				case Value:
					if !tx.Focused(el) {
						tx.SetValue(el, text)
					}
				case Checked:
					tx.SetChecked(el, checked)
				}
			}
		}
		return nil
	})
}
