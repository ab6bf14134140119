package ruuvitag

// AttributeSpec describes one attribute a RuuviTag may report.
type AttributeSpec struct {
	// Attribute is the key in the driver's reading.
	Attribute string

	// DeviceClass names the entity and its state topic segment.
	DeviceClass string

	// Unit is the unit of measurement; empty for dimensionless values.
	Unit string
}

// Catalog lists every attribute of data formats 2, 3, 4 and 5, in the order
// discovery and state messages are emitted.
var Catalog = []AttributeSpec{
	{Attribute: "acceleration", DeviceClass: "acceleration", Unit: "mG"},
	{Attribute: "acceleration_x", DeviceClass: "acceleration_x", Unit: "mG"},
	{Attribute: "acceleration_y", DeviceClass: "acceleration_y", Unit: "mG"},
	{Attribute: "acceleration_z", DeviceClass: "acceleration_z", Unit: "mG"},
	{Attribute: "battery", DeviceClass: "battery", Unit: "mV"},
	{Attribute: "data_format", DeviceClass: "data_format", Unit: ""},
	{Attribute: "humidity", DeviceClass: "humidity", Unit: "%"},
	{Attribute: "identifier", DeviceClass: "identifier", Unit: ""},
	{Attribute: "mac", DeviceClass: "mac", Unit: ""},
	{Attribute: "measurement_sequence_number", DeviceClass: "measurement_sequence_number", Unit: ""},
	{Attribute: "movement_counter", DeviceClass: "movement_counter", Unit: ""},
	{Attribute: "pressure", DeviceClass: "pressure", Unit: "hPa"},
	{Attribute: "temperature", DeviceClass: "temperature", Unit: "°C"},
	{Attribute: "tx_power", DeviceClass: "signal_strength", Unit: "dBm"},
}
