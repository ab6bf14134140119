package workers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatter(t *testing.T) {
	f := Formatter{Namespace: "gw", Worker: "ruuvitag"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"node id", NodeID("AA:BB:CC:DD:EE:FF"), "AA-BB-CC-DD-EE-FF"},
		{"discovery topic", f.DiscoveryTopic("AA:BB:CC:DD:EE:FF", "kitchen", "temperature"), "AA-BB-CC-DD-EE-FF/ruuvitag_kitchen_temperature"},
		{"discovery id", f.DiscoveryID("AA:BB:CC:DD:EE:FF", "kitchen"), "gw/AA-BB-CC-DD-EE-FF/ruuvitag_kitchen"},
		{"discovery name", f.DiscoveryName("kitchen", "humidity"), "ruuvitag_kitchen_humidity"},
		{"discovery name no args", f.DiscoveryName(), "ruuvitag"},
		{"topic", f.Topic("kitchen", "temperature"), "ruuvitag/kitchen/temperature"},
		{"prefixed topic without prefix", f.PrefixedTopic("kitchen"), "ruuvitag/kitchen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestFormatter_Prefixes(t *testing.T) {
	f := Formatter{Worker: "ruuvitag", TopicPrefix: "ruuvi", GlobalPrefix: "home"}

	assert.Equal(t, "ruuvi/kitchen/temperature", f.Topic("kitchen", "temperature"))
	assert.Equal(t, "home/ruuvi/kitchen/temperature", f.PrefixedTopic("kitchen", "temperature"))
	assert.Equal(t, DefaultNamespace+"/AA-BB-CC-DD-EE-FF/ruuvitag_kitchen", f.DiscoveryID("AA:BB:CC:DD:EE:FF", "kitchen"))
}

func TestFormatter_DiscoveryIDDeterministicAndAddressUnique(t *testing.T) {
	f := Formatter{Namespace: "gw", Worker: "ruuvitag"}

	a := f.DiscoveryID("AA:BB:CC:DD:EE:FF", "kitchen", "temperature")
	assert.Equal(t, a, f.DiscoveryID("AA:BB:CC:DD:EE:FF", "kitchen", "temperature"))

	b := f.DiscoveryID("11:22:33:44:55:66", "kitchen", "temperature")
	assert.NotEqual(t, a, b, "same name on a different address must not collide")
}

func TestWithPrefix(t *testing.T) {
	assert.Equal(t, "a/b", WithPrefix("a", "b"))
	assert.Equal(t, "b", WithPrefix("", "b"))
}
