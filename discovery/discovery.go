// Package discovery locates Yeelight devices on the local network via SSDP.
package discovery

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/lanterndev/goyeelight/common"
)

const (
	// multicastAddr is the SSDP multicast group Yeelight devices join
	multicastAddr = `239.255.255.250:1982`
	// DefaultTimeout bounds a discovery run.  Discovery always takes this
	// long, as there is no way to know when the last device has answered.
	DefaultTimeout = 2 * time.Second

	readBufferSize = 2048
)

var searchMessage = []byte(strings.Join([]string{
	`M-SEARCH * HTTP/1.1`,
	`HOST: 239.255.255.250:1982`,
	`MAN: "ssdp:discover"`,
	`ST: wifi_bulb`,
}, "\r\n"))

// Device describes one discovered Yeelight device
type Device struct {
	// Addr is the device's IP address
	Addr string
	// Port is the device's control port
	Port int
	// Capabilities holds the advertised device attributes (id, model,
	// fw_ver, support, power, bright and friends)
	Capabilities map[string]string
}

// ID returns the device's unique hardware identifier
func (d *Device) ID() string {
	return d.Capabilities[`id`]
}

// Model returns the device's model name
func (d *Device) Model() string {
	return d.Capabilities[`model`]
}

// Supports reports whether the device advertises support for the named
// protocol method
func (d *Device) Supports(method string) bool {
	for _, m := range strings.Fields(d.Capabilities[`support`]) {
		if m == method {
			return true
		}
	}
	return false
}

// Discoverer performs SSDP searches for Yeelight devices
type Discoverer struct {
	timeout time.Duration
	log     common.Logger
}

// Option configures a Discoverer
type Option func(*Discoverer)

// WithTimeout overrides how long a discovery run waits for responses
func WithTimeout(timeout time.Duration) Option {
	return func(d *Discoverer) { d.timeout = timeout }
}

// WithLogger assigns a custom levelled logger that conforms to the
// common.Logger interface
func WithLogger(logger common.Logger) Option {
	return func(d *Discoverer) { d.log = logger }
}

// New returns a Discoverer
func New(options ...Option) *Discoverer {
	d := &Discoverer{
		timeout: DefaultTimeout,
		log:     new(common.StubLogger),
	}
	for _, option := range options {
		option(d)
	}
	d.log = common.NewPrefixedLogger(d.log)
	return d
}

// Discover broadcasts an SSDP search and collects responses until the
// configured timeout elapses or ctx is cancelled.  Duplicate announcements
// from the same device are collapsed.
func (d *Discoverer) Discover(ctx context.Context) ([]*Device, error) {
	addr, err := net.ResolveUDPAddr(`udp4`, multicastAddr)
	if err != nil {
		return nil, err
	}
	socket, err := net.ListenUDP(`udp4`, &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, err
	}
	defer func() { _ = socket.Close() }()

	if _, err = socket.WriteToUDP(searchMessage, addr); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(d.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err = socket.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	var devices []*Device
	seen := make(map[string]bool)
	buf := make([]byte, readBufferSize)
	for {
		if err = ctx.Err(); err != nil {
			return devices, err
		}
		n, src, err := socket.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return devices, nil
			}
			return devices, err
		}
		dev, err := parseResponse(buf[:n])
		if err != nil {
			d.log.Debugf("Ignoring malformed announcement from %v: %v", src, err)
			continue
		}
		key := dev.ID()
		if key == `` {
			key = net.JoinHostPort(dev.Addr, strconv.Itoa(dev.Port))
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		d.log.Debugf("Discovered device %s (%s) at %s:%d", dev.ID(), dev.Model(), dev.Addr, dev.Port)
		devices = append(devices, dev)
	}
}

// parseResponse extracts a Device from one SSDP announcement.  Headers are
// flat `Key: value` lines; the address comes from the Location header, which
// carries a yeelight:// URI.  Only lower-case headers are device attributes,
// the rest is HTTP boilerplate.
func parseResponse(data []byte) (*Device, error) {
	capabilities := make(map[string]string)
	var location string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		idx := strings.Index(line, `: `)
		if idx < 0 {
			continue
		}
		key, value := line[:idx], line[idx+2:]
		if key == `Location` {
			location = value
			continue
		}
		if key != `` && key == strings.ToLower(key) {
			capabilities[key] = value
		}
	}
	if location == `` {
		return nil, common.ErrNotFound
	}
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(location, `yeelight://`))
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	return &Device{Addr: host, Port: port, Capabilities: capabilities}, nil
}
