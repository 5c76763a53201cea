package common

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionTimeout is returned when establishing a connection to the
	// bulb does not complete within the configured timeout
	ErrConnectionTimeout = errors.New(`timed out connecting to the bulb`)
	// ErrConnectionClosed is returned when an operation requires a connection
	// but none is available, or the peer closed it out from under us
	ErrConnectionClosed = errors.New(`the connection to the bulb is closed`)
	// ErrCommandTimeout is returned when no reply matching a command's id
	// arrives within the request timeout
	ErrCommandTimeout = errors.New(`timed out waiting for a reply from the bulb`)
	// ErrMusicModeConflict is returned when music mode is started while it is
	// already active
	ErrMusicModeConflict = errors.New(`already in music mode, stop music mode first`)
	// ErrMusicModeTimeout is returned when the bulb does not establish the
	// reverse connection within the request timeout
	ErrMusicModeTimeout = errors.New(`timed out enabling music mode`)
	// ErrClosed is returned on operations against a closed subscription
	ErrClosed = errors.New(`subscription is closed`)
	// ErrTimeout is returned when publishing an event to a subscription does
	// not complete in time
	ErrTimeout = errors.New(`timed out publishing event`)
	// ErrNotFound is returned when the requested resource is not known
	ErrNotFound = errors.New(`not found`)
)

// DeviceError is returned when the bulb answers a command with an error
// payload instead of a result.
type DeviceError struct {
	Code    int
	Message string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf(`bulb returned error %d: %s`, e.Code, e.Message)
}
