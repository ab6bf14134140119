package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DeviceEntry is a single logical name to physical address binding.
type DeviceEntry struct {
	Name    string
	Address string
}

// DeviceList is an ordered device mapping.
//
// It decodes from a YAML mapping (name: address) but, unlike a Go map,
// keeps the order in which devices appear in the file. That order is the
// order devices are polled and announced in.
type DeviceList []DeviceEntry

// UnmarshalYAML implements yaml.Unmarshaler.
//
// Duplicate names are kept; the worker decides what to do with them.
func (d *DeviceList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null" {
		*d = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: devices must be a mapping of name to address", node.Line)
	}

	out := make(DeviceList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Kind != yaml.ScalarNode || value.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: device entries must be scalar name: address pairs", key.Line)
		}
		out = append(out, DeviceEntry{Name: key.Value, Address: value.Value})
	}

	*d = out
	return nil
}

// MarshalYAML implements yaml.Marshaler, writing the list back as a mapping.
func (d DeviceList) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range d {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Address},
		)
	}
	return node, nil
}
