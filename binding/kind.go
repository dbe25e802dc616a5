// Package binding applies server state to bound elements and forwards user
// edits on bound inputs back to the server.
package binding

import "fmt"

// Kind is how a bound element participates in a key.
type Kind int

const (
	Text    Kind = iota + 1 // read-only render target
	Value                   // two-way text input / textarea
	Checked                 // two-way checkbox
)

// Kinds lists every binding kind in dispatch order.
var Kinds = []Kind{Text, Value, Checked}

// Attr returns the declaring attribute name. Panics on invalid value.
func (k Kind) Attr() string {
	switch k {
	case Text:
		return "data-bind-text"
	case Value:
		return "data-bind-value"
	case Checked:
		return "data-bind-checked"
	default:
		panic(fmt.Sprintf("invalid binding.Kind: %d (must be Text/Value/Checked)", k))
	}
}

// String returns string representation.
func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Value:
		return "value"
	case Checked:
		return "checked"
	default:
		return fmt.Sprintf("Invalid(%d)", k)
	}
}

// MarshalText renders the kind by name in JSON and logs.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
