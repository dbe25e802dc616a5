package codec

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownCommand = errors.New("unknown command")
)

type stateSetFrame struct {
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type triggerEventFrame struct {
	Type    string `json:"type"`
	EventID string `json:"event_id"`
}

// inboundFrame is decoded first to read the tag; the other fields stay raw
// until the tag says how to interpret them.
type inboundFrame struct {
	Type  json.RawMessage `json:"type"`
	Key   json.RawMessage `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Encode serializes a command into a text frame.
func Encode(cmd Command) ([]byte, error) {
	var frame any
	switch c := cmd.(type) {
	case StateSet:
		frame = stateSetFrame{Type: TypeStateSet, Key: c.Key, Value: c.Value}
	case *StateSet:
		frame = stateSetFrame{Type: TypeStateSet, Key: c.Key, Value: c.Value}
	case TriggerEvent:
		frame = triggerEventFrame{Type: TypeTriggerEvent, EventID: c.EventID}
	case *TriggerEvent:
		frame = triggerEventFrame{Type: TypeTriggerEvent, EventID: c.EventID}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", cmd.Type(), err)
	}
	return data, nil
}

// Decode parses an inbound text frame. Frames with an unrecognized tag decode
// to Unknown with a nil error, whatever shape their other fields have.
// Frames that are not a JSON object, or a state_update without a string key,
// fail with ErrMalformedFrame.
func Decode(data []byte) (Message, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	var tag string
	if err := json.Unmarshal(frame.Type, &tag); err != nil {
		return Unknown{Tag: string(frame.Type)}, nil
	}

	switch tag {
	case TypeStateUpdate:
		var key *string
		if len(frame.Key) > 0 {
			if err := json.Unmarshal(frame.Key, &key); err != nil {
				return nil, fmt.Errorf("%w: key: %w", ErrMalformedFrame, err)
			}
		}
		if key == nil {
			return nil, fmt.Errorf("%w: state_update without key", ErrMalformedFrame)
		}
		var value any
		if len(frame.Value) > 0 {
			if err := json.Unmarshal(frame.Value, &value); err != nil {
				return nil, fmt.Errorf("%w: value: %w", ErrMalformedFrame, err)
			}
		}
		return StateUpdate{Key: *key, Value: value}, nil
	default:
		return Unknown{Tag: tag}, nil
	}
}
