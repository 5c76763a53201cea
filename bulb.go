package goyeelight

import (
	"sync"
	"time"

	"github.com/lanterndev/goyeelight/common"
	"github.com/lanterndev/goyeelight/protocol"
)

// DefaultDuration is the default transition duration in milliseconds folded
// into every effect-capable command
const DefaultDuration = 300

// Effect names understood by the device
const (
	// EffectSmooth transitions gradually over the configured duration
	EffectSmooth = `smooth`
	// EffectSudden applies the change immediately
	EffectSudden = `sudden`
)

// PowerMode is the mode the light is switched into when turned on
type PowerMode int

// Power modes supported by the device
const (
	PowerModeLast      PowerMode = 0
	PowerModeNormal    PowerMode = 1
	PowerModeRGB       PowerMode = 2
	PowerModeHSV       PowerMode = 3
	PowerModeColorFlow PowerMode = 4
	PowerModeMoonlight PowerMode = 5
)

// CronType is the type of scheduled event, currently only off timers
type CronType int

// CronOff schedules the light to turn off
const CronOff CronType = 0

// Bulb provides a simple interface for interacting with a single Yeelight
// device.  Bulb can not be instantiated manually or it will not function -
// always use NewBulb() to obtain a Bulb instance.
type Bulb struct {
	host         string
	port         int
	timeout      time.Duration
	pingInterval time.Duration
	effect       string
	duration     int
	powerMode    PowerMode
	autoOn       bool
	log          common.Logger

	session       *protocol.Session
	subscriptions map[string]*common.Subscription
	sync.RWMutex
}

// Option configures a Bulb during construction
type Option func(*Bulb)

// WithPort overrides the device control port (default 55443)
func WithPort(port int) Option {
	return func(b *Bulb) { b.port = port }
}

// WithTimeout overrides the request timeout, which governs connecting,
// command round-trips and the idle wait before a keepalive probe
func WithTimeout(timeout time.Duration) Option {
	return func(b *Bulb) { b.timeout = timeout }
}

// WithPingInterval overrides how long a connection may stay idle before it is
// probed
func WithPingInterval(interval time.Duration) Option {
	return func(b *Bulb) { b.pingInterval = interval }
}

// WithEffect sets the default transition effect folded into commands
func WithEffect(effect string) Option {
	return func(b *Bulb) { b.effect = effect }
}

// WithDuration sets the default transition duration folded into commands
func WithDuration(duration time.Duration) Option {
	return func(b *Bulb) { b.duration = int(duration / time.Millisecond) }
}

// WithPowerMode sets the default power mode folded into power-on commands
func WithPowerMode(mode PowerMode) Option {
	return func(b *Bulb) { b.powerMode = mode }
}

// WithAutoOn makes state-changing commands turn the light on first when it is
// known to be off
func WithAutoOn(autoOn bool) Option {
	return func(b *Bulb) { b.autoOn = autoOn }
}

// WithLogger assigns a custom levelled logger that conforms to the
// common.Logger interface.  Defaults to common.StubLogger, which does no
// logging at all.
func WithLogger(logger common.Logger) Option {
	return func(b *Bulb) { b.log = logger }
}

// Host returns the ip:port this Bulb talks to
func (b *Bulb) Host() string {
	return b.host
}

// Listen connects to the device and starts receiving state update
// notifications.  The callback receives a map that always carries a
// "connected" key, merged with any property deltas; it may be nil if only
// subscriptions are used.  The session reconnects automatically until
// StopListening is called.
func (b *Bulb) Listen(callback func(map[string]interface{})) error {
	return b.session.Listen(func(data map[string]interface{}) {
		b.publishEvents(data)
		if callback != nil {
			callback(data)
		}
	})
}

// StopListening stops the listen session and releases its connection
func (b *Bulb) StopListening() {
	b.session.StopListening(true)
}

// StartMusic switches the session into music mode: the device connects back
// to this process and subsequent commands are written without rate limiting,
// but also without replies.  A zero port picks an ephemeral one, an empty ip
// is auto-detected from the current connection.
func (b *Bulb) StartMusic(port int, ip string) error {
	return b.session.StartMusic(port, ip)
}

// StopMusic leaves music mode and restores the normal forward connection.
// Calling it while not in music mode is safe.
func (b *Bulb) StopMusic() error {
	if err := b.session.StopMusic(); err != nil {
		return err
	}
	// best effort, the device side usually dropped already
	if err := b.send(MusicCommand(false, ``, 0)); err != nil {
		b.log.Debugf(`disabling music mode on the device: %v`, err)
	}
	return nil
}

// MusicModeActive reports whether the reverse connection currently carries
// commands
func (b *Bulb) MusicModeActive() bool {
	return b.session.MusicModeActive()
}

// GetProperties retrieves the supplied properties (all known ones when empty)
// from the device and returns the refreshed snapshot, including the derived
// current_brightness value.
func (b *Bulb) GetProperties(names ...string) (map[string]interface{}, error) {
	return b.session.GetProperties(names, false)
}

// LastProperties returns the cached property snapshot without querying the
// device
func (b *Bulb) LastProperties() map[string]interface{} {
	return b.session.Properties().All()
}

// CurrentBrightness returns the derived effective brightness: 0 when off, the
// night-light brightness in night-light mode, the main brightness otherwise
func (b *Bulb) CurrentBrightness() string {
	return b.session.Properties().CurrentBrightness()
}

// NewSubscription returns a new *common.Subscription for receiving events
// from this Bulb
func (b *Bulb) NewSubscription() (*common.Subscription, error) {
	sub := common.NewSubscription(b)
	b.Lock()
	b.subscriptions[sub.ID()] = sub
	b.Unlock()
	return sub, nil
}

// CloseSubscription is a callback for handling the closing of subscriptions
func (b *Bulb) CloseSubscription(sub *common.Subscription) error {
	b.RLock()
	_, ok := b.subscriptions[sub.ID()]
	b.RUnlock()
	if !ok {
		return common.ErrNotFound
	}
	b.Lock()
	delete(b.subscriptions, sub.ID())
	b.Unlock()

	return nil
}

// publish pushes an event to subscribers
func (b *Bulb) publish(event interface{}) {
	b.RLock()
	subs := make(map[string]*common.Subscription, len(b.subscriptions))
	for k, sub := range b.subscriptions {
		subs[k] = sub
	}
	b.RUnlock()

	for _, sub := range subs {
		if err := sub.Write(event); err != nil {
			b.log.Warnf(`failed publishing event to subscription %s: %v`, sub.ID(), err)
		}
	}
}

// publishEvents translates a notification map into typed events for
// subscribers
func (b *Bulb) publishEvents(data map[string]interface{}) {
	if connected, ok := data[protocol.KeyConnected].(bool); ok {
		if connected {
			b.publish(common.EventConnected{})
		} else {
			b.publish(common.EventDisconnected{})
		}
	}
	props := make(map[string]interface{}, len(data))
	for k, v := range data {
		if k == protocol.KeyConnected || k == `result` {
			continue
		}
		props[k] = v
	}
	if len(props) == 0 {
		return
	}
	b.publish(common.EventUpdateProperties{Properties: props})
	if power, ok := props[`power`].(string); ok {
		b.publish(common.EventUpdatePower{Power: power == `on`})
	}
}

// send issues a built command through the session and discards the result
func (b *Bulb) send(cmd Command) error {
	_, err := b.session.Send(cmd.Method, cmd.Params)
	return err
}

// ensureOn turns the light on first when auto-on is enabled and the light is
// known to be off.  In music mode the device cannot be queried, so the check
// is skipped.
func (b *Bulb) ensureOn() error {
	if b.session.MusicModeActive() || !b.autoOn {
		return nil
	}
	props, err := b.session.GetProperties(nil, false)
	if err != nil {
		return err
	}
	if power, ok := props[`power`].(string); ok && power != `on` {
		return b.TurnOn()
	}
	return nil
}
