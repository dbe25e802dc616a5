// Package codec defines the wire schema between the binding client and the
// state server: JSON text frames tagged by a "type" field.
package codec

// Message type tags
const (
	TypeStateSet     = "state_set"
	TypeTriggerEvent = "trigger_event"
	TypeStateUpdate  = "state_update"
)

// Command is a client-to-server message. The set is closed: StateSet and
// TriggerEvent are the only implementations.
type Command interface {
	Type() string
	isCommand()
}

// StateSet asks the server to adopt Value as the new value for Key.
// Value is a string for text inputs and a bool for checkboxes.
type StateSet struct {
	Key   string
	Value any
}

// TriggerEvent reports that an application-defined event fired.
type TriggerEvent struct {
	EventID string
}

func (StateSet) Type() string     { return TypeStateSet }
func (TriggerEvent) Type() string { return TypeTriggerEvent }

func (StateSet) isCommand()     {}
func (TriggerEvent) isCommand() {}

// Message is a server-to-client message.
type Message interface {
	Type() string
	isMessage()
}

// StateUpdate carries a new value for Key. Value keeps its JSON type:
// string, bool, float64, nil, []any or map[string]any.
type StateUpdate struct {
	Key   string
	Value any
}

// Unknown is any inbound message whose tag the client does not recognize.
// It is not an error; receivers ignore it.
type Unknown struct {
	Tag string
}

func (StateUpdate) Type() string { return TypeStateUpdate }
func (u Unknown) Type() string   { return u.Tag }

func (StateUpdate) isMessage() {}
func (Unknown) isMessage()     {}
