package workers

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind distinguishes state messages from discovery messages.
type Kind int

const (
	// KindState is a per-cycle attribute value.
	KindState Kind = iota

	// KindDiscovery is a retained registration payload.
	KindDiscovery
)

// String returns the kind name used in logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindDiscovery:
		return "discovery"
	default:
		return "state"
	}
}

// ComponentSensor is the Home Assistant discovery component for sensors.
const ComponentSensor = "sensor"

// Message is an outbound bus message.
//
// Topic is relative: state topics are completed with the global prefix and
// discovery topics with the discovery prefix by whoever publishes them.
type Message struct {
	Kind    Kind
	Topic   string
	Payload any
	Retain  bool
}

// NewStateMessage builds a non-retained state message.
func NewStateMessage(topic string, value any) Message {
	return Message{Kind: KindState, Topic: topic, Payload: value}
}

// NewDiscoveryMessage builds a retained discovery message for a component,
// with topic "<component>/<object>/config".
func NewDiscoveryMessage(component, object string, payload any) Message {
	return Message{
		Kind:    KindDiscovery,
		Topic:   component + "/" + object + "/config",
		Payload: payload,
		Retain:  true,
	}
}

// Bytes encodes the payload for the wire.
//
// Scalars are rendered as plain text (21.5, 3, "ok"); everything else is
// marshalled as JSON.
func (m Message) Bytes() ([]byte, error) {
	switch v := m.Payload.(type) {
	case nil:
		return []byte{}, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case bool:
		return []byte(strconv.FormatBool(v)), nil
	case int:
		return []byte(strconv.Itoa(v)), nil
	case int8, int16, int32, int64:
		return []byte(fmt.Sprintf("%d", v)), nil
	case uint, uint8, uint16, uint32, uint64:
		return []byte(fmt.Sprintf("%d", v)), nil
	case float32:
		return []byte(strconv.FormatFloat(float64(v), 'f', -1, 32)), nil
	case float64:
		return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding payload for %s: %w", m.Topic, err)
		}
		return data, nil
	}
}
