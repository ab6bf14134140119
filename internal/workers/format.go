package workers

import "strings"

// DefaultNamespace prefixes discovery unique ids when none is configured.
const DefaultNamespace = "btgateway"

// Formatter builds the identifiers and topics of one worker.
//
// Every method is a pure function of its receiver and arguments.
type Formatter struct {
	// Namespace prefixes discovery ids (the gateway id).
	Namespace string

	// Worker is the worker name, e.g. "ruuvitag".
	Worker string

	// TopicPrefix is the worker's first topic segment. Defaults to Worker.
	TopicPrefix string

	// GlobalPrefix is prepended to state topics when set.
	GlobalPrefix string
}

// NodeID converts a physical address into a discovery node id.
// Colons are not valid in discovery topic segments.
func NodeID(address string) string {
	return strings.ReplaceAll(address, ":", "-")
}

// DiscoveryTopic returns the "<node_id>/<object_id>" part of a discovery
// topic for the device at address.
func (f Formatter) DiscoveryTopic(address string, args ...string) string {
	return NodeID(address) + "/" + f.DiscoveryName(args...)
}

// DiscoveryID returns a globally unique id for a device or one of its
// attributes. It embeds the physical address, so renaming a device never
// takes over another device's former identity.
func (f Formatter) DiscoveryID(address string, args ...string) string {
	ns := f.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	return ns + "/" + f.DiscoveryTopic(address, args...)
}

// DiscoveryName returns the display name, "<worker>_<args...>".
func (f Formatter) DiscoveryName(args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, f.Worker)
	parts = append(parts, args...)
	return strings.Join(parts, "_")
}

// Topic returns the worker-relative topic "<prefix>/<args...>".
func (f Formatter) Topic(args ...string) string {
	prefix := f.TopicPrefix
	if prefix == "" {
		prefix = f.Worker
	}
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, prefix)
	parts = append(parts, args...)
	return strings.Join(parts, "/")
}

// PrefixedTopic returns Topic with the global prefix applied. This is the
// topic a subscriber actually sees.
func (f Formatter) PrefixedTopic(args ...string) string {
	return WithPrefix(f.GlobalPrefix, f.Topic(args...))
}

// WithPrefix joins prefix and topic with a slash, or returns topic
// unchanged when prefix is empty.
func WithPrefix(prefix, topic string) string {
	if prefix == "" {
		return topic
	}
	return prefix + "/" + topic
}
