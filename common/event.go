package common

// EventConnected is emitted by a Bulb when a listen session establishes a
// connection to the device
type EventConnected struct{}

// EventDisconnected is emitted by a Bulb when a listen session loses its
// connection unexpectedly
type EventDisconnected struct{}

// EventUpdateProperties is emitted by a Bulb when the device publishes new
// property values, either via a props notification or a keepalive reply
type EventUpdateProperties struct {
	Properties map[string]interface{}
}

// EventUpdatePower is emitted by a Bulb when its power state changes
type EventUpdatePower struct {
	Power bool
}
