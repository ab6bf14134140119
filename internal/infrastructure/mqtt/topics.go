package mqtt

import "strings"

// Fixed topic names below the global prefix.
const (
	// TopicUpdateAll forces an immediate poll of every worker.
	TopicUpdateAll = "update_all"

	// TopicHealth is the last segment of the gateway health topic.
	TopicHealth = "health"

	// discoveryConfigSuffix ends every discovery topic.
	discoveryConfigSuffix = "/config"
)

// Topics builds the gateway's MQTT topics.
//
// Prefix is the optional global topic prefix; it applies to state, health
// and command topics but never to discovery topics, which live under the
// discovery prefix Home Assistant listens on.
//
//	topics := mqtt.Topics{Prefix: "home"}
//	topics.State("ruuvitag/kitchen/temperature")
//	// Returns: "home/ruuvitag/kitchen/temperature"
type Topics struct {
	Prefix string
}

// State returns the full topic for a worker-relative state topic.
//
// Example: home/ruuvitag/kitchen/temperature
func (t Topics) State(relative string) string {
	return join(t.Prefix, relative)
}

// UpdateAll returns the force-update command topic.
//
// Example: home/update_all
func (t Topics) UpdateAll() string {
	return join(t.Prefix, TopicUpdateAll)
}

// Health returns the health topic for a gateway id.
//
// Example: home/btgateway/health
func (t Topics) Health(gatewayID string) string {
	return join(t.Prefix, gatewayID+"/"+TopicHealth)
}

// Discovery returns the full discovery topic for a component-relative
// discovery topic ("sensor/<node>/<object>/config").
//
// Example: homeassistant/sensor/AA-BB-CC-DD-EE-FF/ruuvitag_kitchen_temperature/config
func (Topics) Discovery(discoveryPrefix, relative string) string {
	return join(discoveryPrefix, relative)
}

// IsDiscovery reports whether topic is a discovery config topic under
// discoveryPrefix.
func (Topics) IsDiscovery(discoveryPrefix, topic string) bool {
	return strings.HasPrefix(topic, discoveryPrefix+"/") && strings.HasSuffix(topic, discoveryConfigSuffix)
}

func join(prefix, topic string) string {
	if prefix == "" {
		return topic
	}
	return strings.TrimSuffix(prefix, "/") + "/" + topic
}
