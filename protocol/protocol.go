// Package protocol implements the line-delimited JSON control protocol spoken
// by Yeelight devices over a persistent TCP connection, including the reverse
// "music mode" where the device connects back to this process to bypass
// command rate limits.
//
// This package is not designed to be accessed by end users, all interaction
// should occur via the Bulb in the goyeelight package.
package protocol

import (
	"encoding/json"
	"time"
)

const (
	// DefaultPort is the TCP port Yeelight devices listen on
	DefaultPort = 55443
	// DefaultTimeout governs connecting, command round-trips, the idle wait
	// before a keepalive probe, and the extended music mode accept wait
	DefaultTimeout = 15 * time.Second
	// DefaultPingInterval is how long a connection may stay idle before the
	// read loop starts probing it
	DefaultPingInterval = 60 * time.Second

	// KeyConnected is present in every notification delivered to the
	// registered callback
	KeyConnected = `connected`
)

// Device error messages that are only cured by dropping the connection and
// reconnecting.  Quota errors additionally force a backoff, as the quota does
// not clear right away.
var (
	reconnectErrors = map[string]bool{
		`client quota exceeded`: true,
		`invalid command`:       true,
	}
	backoffErrors = map[string]bool{
		`client quota exceeded`: true,
	}
)

// Request is a single command sent to the device
type Request struct {
	ID     int64         `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

func (r *Request) encode() ([]byte, error) {
	buf, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return append(buf, '\r', '\n'), nil
}

// Error is the error payload carried by a reply
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// message is the union of everything the device may send on a single line: a
// correlated reply (id + result or error), or an unsolicited notification
// (method + params).
type message struct {
	ID     *int64                 `json:"id"`
	Result []interface{}          `json:"result"`
	Error  *Error                 `json:"error"`
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params"`
}
