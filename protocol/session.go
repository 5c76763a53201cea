package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/lanterndev/goyeelight/common"
)

// NotifyFunc receives state notifications from a listen session.  The map
// always includes the KeyConnected key, merged with any property deltas or
// synthesized keepalive data.
type NotifyFunc func(data map[string]interface{})

// Session owns the connection to a single device: it dials, reads lines,
// routes replies to waiting commands, probes idle connections, reconnects
// after failures and drives the music mode handshake.  A Session is safe for
// concurrent use.
type Session struct {
	host         string
	timeout      time.Duration
	pingInterval time.Duration
	log          common.Logger

	mu       sync.Mutex
	conn     *connection
	callback NotifyFunc
	pending  map[int64]chan *message
	stop     chan struct{}
	done     chan struct{}
	ready    chan struct{}

	musicPort int
	musicIP   string

	// cmdLock serializes allocate-id/write/await sequences, musicLock
	// serializes music mode transitions.  The music enable command is written
	// without taking cmdLock, as the negotiation already holds it.
	cmdLock   sync.Mutex
	musicLock sync.Mutex

	listening        *atomic.Bool
	backoff          *atomic.Bool
	musicMode        *atomic.Bool
	musicModeState   *atomic.Bool
	expectDisconnect *atomic.Bool
	musicTransition  *atomic.Bool

	props *Snapshot
}

// New returns a Session for the device at host (an ip:port pair).  A zero
// timeout or ping interval selects the defaults, a nil logger disables
// logging.
func New(host string, timeout, pingInterval time.Duration, logger common.Logger) *Session {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if pingInterval == 0 {
		pingInterval = DefaultPingInterval
	}
	if logger == nil {
		logger = new(common.StubLogger)
	}
	return &Session{
		host:             host,
		timeout:          timeout,
		pingInterval:     pingInterval,
		log:              logger,
		pending:          make(map[int64]chan *message),
		listening:        atomic.NewBool(false),
		backoff:          atomic.NewBool(false),
		musicMode:        atomic.NewBool(false),
		musicModeState:   atomic.NewBool(false),
		expectDisconnect: atomic.NewBool(false),
		musicTransition:  atomic.NewBool(false),
		props:            newSnapshot(),
	}
}

// Host returns the device address this session talks to
func (s *Session) Host() string {
	return s.host
}

// Properties returns the last-known property snapshot for the device
func (s *Session) Properties() *Snapshot {
	return s.props
}

// Listening reports whether a listen session is currently running
func (s *Session) Listening() bool {
	return s.listening.Load()
}

// MusicModeActive reports whether the reverse connection is currently the
// active transport
func (s *Session) MusicModeActive() bool {
	return s.musicModeState.Load()
}

// MusicModeEnabled reports whether music mode is desired by the caller,
// regardless of the current connection state
func (s *Session) MusicModeEnabled() bool {
	return s.musicMode.Load()
}

// ExpectDisconnect marks the coming teardown as intentional so that no
// disconnect notification is emitted for it, and clears music mode intent.
// Used when the device is about to be powered off while in music mode.
func (s *Session) ExpectDisconnect() {
	s.musicMode.Store(false)
	s.expectDisconnect.Store(true)
}

// Listen connects to the device and starts the listen session.  The session
// reads unsolicited notifications, routes command replies, keeps idle
// connections alive and reconnects automatically until StopListening is
// called.  callback receives every state notification, and may be nil.
func (s *Session) Listen(callback NotifyFunc) error {
	s.mu.Lock()
	s.callback = callback
	s.mu.Unlock()

	sock, err := net.DialTimeout(`tcp`, s.host, s.timeout)
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return fmt.Errorf(`connecting to %s: %w`, s.host, common.ErrConnectionTimeout)
		}
		return fmt.Errorf(`connecting to %s: %w`, s.host, common.ErrConnectionClosed)
	}

	stop, done := s.beginListening(sock)
	// the connected notification must land before the read loop can deliver
	// anything from the new connection
	s.notify(map[string]interface{}{KeyConnected: true})
	go s.runListen(stop, done)
	return nil
}

// StopListening stops the listen session, closes the transport and abandons
// any commands still waiting for a reply.  When removeCallback is true the
// registered callback is cleared as well.
func (s *Session) StopListening(removeCallback bool) {
	s.listening.Store(false)
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	s.teardownConn()
	if done != nil {
		select {
		case <-done:
		case <-time.After(s.timeout):
			s.log.Warnf(`%s: listen loop did not exit promptly`, s.host)
		}
	}
	if removeCallback {
		s.mu.Lock()
		s.callback = nil
		s.mu.Unlock()
	}
}

// beginListening adopts sock as the active transport and arms the control
// channels for a new listen session.  The command id counter resets with the
// new connection.
func (s *Session) beginListening(sock net.Conn) (stop, done chan struct{}) {
	stop = make(chan struct{})
	done = make(chan struct{})
	s.mu.Lock()
	s.conn = newConnection(sock)
	s.pending = make(map[int64]chan *message)
	s.stop = stop
	s.done = done
	s.ready = make(chan struct{})
	s.mu.Unlock()
	s.listening.Store(true)
	return stop, done
}

// setConnected swaps in a fresh connection mid-session, abandoning commands
// that were pending on the old one
func (s *Session) setConnected(sock net.Conn) {
	s.mu.Lock()
	s.conn = newConnection(sock)
	s.pending = make(map[int64]chan *message)
	s.mu.Unlock()
}

func (s *Session) currentConn() *connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// teardownConn closes the active transport (ignoring already-closed errors)
// and clears the pending command set without fulfilling entries.  Callers
// awaiting a reply are expected to run their own timeout.
func (s *Session) teardownConn() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.pending = make(map[int64]chan *message)
	s.mu.Unlock()
	if conn != nil {
		conn.close()
	}
}

func (s *Session) takePending(id int64) chan *message {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	return ch
}

func (s *Session) removePending(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// runListen drives one listen session: read until the connection drops, then
// notify and reconnect, indefinitely, until stopped
func (s *Session) runListen(stop, done chan struct{}) {
	defer close(done)
	s.log.Debugf(`%s: starting listen loop`, s.host)
	for s.listening.Load() && !stopped(stop) {
		s.connectionLoop(stop)
		s.teardownConn()
		if !s.expectDisconnect.Load() && !s.musicTransition.Load() {
			s.notify(map[string]interface{}{KeyConnected: false})
		}
		if s.listening.Load() && !stopped(stop) {
			if !s.expectDisconnect.Load() {
				s.applyBackoff(stop)
			}
			s.reconnectLoop(stop)
		}
		s.expectDisconnect.Store(false)
	}
	s.log.Debugf(`%s: listen loop stopped`, s.host)
}

// connectionLoop reads and dispatches lines on the current connection until
// it is abandoned.  Returning from this function always abandons the
// connection.
func (s *Session) connectionLoop(stop chan struct{}) {
	conn := s.currentConn()
	if conn == nil {
		return
	}
	timeouts := 0
	var pingID int64 = -1
	for s.listening.Load() && !stopped(stop) {
		s.signalReady()
		if s.musicModeState.Load() {
			// no replies arrive in music mode, so data flow can never clear
			// the backoff flag
			s.backoff.Store(false)
		}
		line, err := conn.readLine(time.Now().Add(s.pingInterval + s.timeout))
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() && len(line) == 0 {
				if s.musicModeState.Load() {
					// the device is mute in music mode, keep the reverse
					// connection alive with an idempotent power command and
					// let a dead socket surface through the write
					s.log.Debugf(`%s: pinging bulb in music mode`, s.host)
					state := `off`
					if s.props.Power() == `on` {
						state = `on`
					}
					if _, werr := conn.writeRequest(`set_power`, []interface{}{state, `smooth`, 300}); werr != nil {
						s.log.Debugf(`%s: music mode keepalive failed: %v`, s.host, werr)
						return
					}
					continue
				}
				timeouts++
				if timeouts == 2 {
					s.log.Debugf(`%s: no data after two probe windows, dropping connection`, s.host)
					return
				}
				s.log.Debugf(`%s: no data in %v, pinging bulb`, s.host, s.pingInterval+s.timeout)
				id, werr := conn.writeRequest(`get_prop`, []interface{}{`power`})
				if werr != nil {
					s.log.Debugf(`%s: ping failed: %v`, s.host, werr)
					return
				}
				pingID = id
				continue
			}
			if errors.Is(err, bufio.ErrBufferFull) {
				s.log.Errorf(`%s: line exceeds %d bytes, dropping connection`, s.host, maxLineLength)
			} else if len(line) > 0 {
				s.log.Debugf(`%s: partial read: %q`, s.host, line)
			} else {
				s.log.Debugf(`%s: connection closed: %v`, s.host, err)
			}
			return
		}

		// data flow proves liveness
		s.backoff.Store(false)
		timeouts = 0

		trimmed := strings.TrimSpace(line)
		if trimmed == `` {
			continue
		}
		msg := new(message)
		if uerr := json.Unmarshal([]byte(trimmed), msg); uerr != nil {
			s.log.Errorf(`%s: invalid data: %q`, s.host, trimmed)
			continue
		}

		if msg.ID != nil {
			if ch := s.takePending(*msg.ID); ch != nil {
				ch <- msg
			} else if *msg.ID == pingID {
				s.log.Debugf(`%s: ping result received`, s.host)
				data := map[string]interface{}{`power`: pingPower(msg)}
				s.props.Merge(data)
				data[KeyConnected] = true
				s.notify(data)
				continue
			}
		}

		if msg.Error != nil && reconnectErrors[msg.Error.Message] {
			s.log.Debugf(`%s: %s, dropping connection and reconnecting`, s.host, msg.Error.Message)
			if backoffErrors[msg.Error.Message] {
				// the quota does not clear right away, force a backoff
				s.backoff.Store(true)
			}
			return
		}

		if msg.Method != `props` {
			continue
		}

		s.props.Merge(msg.Params)
		data := make(map[string]interface{}, len(msg.Params)+1)
		for k, v := range msg.Params {
			data[k] = v
		}
		data[KeyConnected] = true
		s.notify(data)
	}
}

// reconnectLoop retries the forward connection until it succeeds or the
// session is stopped
func (s *Session) reconnectLoop(stop chan struct{}) {
	s.log.Debugf(`%s: starting reconnect`, s.host)
	for s.listening.Load() && !stopped(stop) {
		sock, err := net.DialTimeout(`tcp`, s.host, s.timeout)
		if err != nil {
			s.log.Debugf(`%s: reconnect failed: %v`, s.host, err)
			if !s.sleep(s.timeout, stop) {
				return
			}
			continue
		}
		s.log.Debugf(`%s: reconnected successfully`, s.host)
		s.setConnected(sock)
		s.backoff.Store(false)
		s.notify(map[string]interface{}{KeyConnected: true})
		// a dropped connection always exits music mode on the device side
		s.musicModeState.Store(false)
		if s.musicMode.Load() {
			// re-negotiation needs the fresh connection, run it outside the
			// listen loop
			go func() {
				if rerr := s.startMusic(0, ``, true); rerr != nil {
					s.log.Warnf(`%s: music mode re-negotiation failed: %v`, s.host, rerr)
				}
			}()
		}
		return
	}
	s.log.Debugf(`%s: reconnect loop stopped`, s.host)
}

// applyBackoff delays the next reconnect attempt only if the previous attempt
// in the current failure streak did not succeed
func (s *Session) applyBackoff(stop chan struct{}) {
	if s.backoff.Load() {
		s.log.Debugf(`%s: backing off %v before reconnecting`, s.host, s.timeout)
		s.sleep(s.timeout, stop)
	}
	s.backoff.Store(true)
}

// notify delivers data to the registered callback, recovering from panics so
// a misbehaving consumer cannot terminate the listen session
func (s *Session) notify(data map[string]interface{}) {
	s.mu.Lock()
	cb := s.callback
	s.mu.Unlock()
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf(`%s: error while processing external callback: %v`, s.host, r)
		}
	}()
	cb(data)
}

// signalReady closes the rendezvous channel the music mode negotiator waits
// on before handing the session back to the caller
func (s *Session) signalReady() {
	s.mu.Lock()
	ready := s.ready
	s.ready = nil
	s.mu.Unlock()
	if ready != nil {
		close(ready)
	}
}

// sleep waits for d, returning false if the session was stopped first
func (s *Session) sleep(d time.Duration, stop chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	}
}

func stopped(stop chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

func pingPower(msg *message) interface{} {
	if len(msg.Result) > 0 {
		return msg.Result[0]
	}
	return nil
}
