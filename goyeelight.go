// Copyright 2024 the goyeelight authors
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file

// Package goyeelight provides a simple Go interface to the Yeelight LAN
// control protocol.
//
// A Bulb maintains a persistent connection to one device, with automatic
// keepalive and reconnection, correlated command replies, state update
// notifications, and support for the reverse-connection "music mode" that
// lifts the device's command rate limits.
//
// Also included in cmd/yeelight is a small CLI utility that allows
// interacting with your Yeelight devices on the LAN.
package goyeelight

import (
	"net"
	"strconv"

	"github.com/lanterndev/goyeelight/common"
	"github.com/lanterndev/goyeelight/protocol"
)

const (
	// VERSION of this library
	VERSION = `0.1.0`
)

// NewBulb returns a pointer to a new Bulb for the device at the supplied IP
// address.  The Bulb does not connect until Listen is called or the first
// command is sent through an established listen session.
func NewBulb(ip string, options ...Option) *Bulb {
	b := &Bulb{
		port:          protocol.DefaultPort,
		effect:        EffectSmooth,
		duration:      DefaultDuration,
		powerMode:     PowerModeNormal,
		log:           new(common.StubLogger),
		subscriptions: make(map[string]*common.Subscription),
	}
	for _, option := range options {
		option(b)
	}
	b.log = common.NewPrefixedLogger(b.log)
	b.host = net.JoinHostPort(ip, strconv.Itoa(b.port))
	b.session = protocol.New(b.host, b.timeout, b.pingInterval, b.log)
	return b
}
