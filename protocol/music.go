package protocol

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/lanterndev/goyeelight/common"
)

// musicFastAccept is the fast-path bound on waiting for the device to dial
// back.  If it is exceeded a transient disconnect notification is emitted and
// the wait continues up to the remaining portion of the request timeout.
const musicFastAccept = 500 * time.Millisecond

// StartMusic switches the session into music mode: the device is told to
// connect back to ip:port and the accepted reverse connection replaces the
// forward one, removing command rate limits at the cost of losing replies.
//
// A zero port picks an ephemeral one, an empty ip is derived from the current
// connection's local address.  Fails with common.ErrMusicModeConflict when
// music mode is already started, and with common.ErrMusicModeTimeout when the
// device does not dial back within the request timeout.
func (s *Session) StartMusic(port int, ip string) error {
	return s.startMusic(port, ip, false)
}

// StopMusic leaves music mode and re-establishes the normal forward listen
// session.  Calling it while not in music mode is safe.
func (s *Session) StopMusic() error {
	s.musicLock.Lock()
	defer s.musicLock.Unlock()
	s.musicTransition.Store(true)
	defer s.musicTransition.Store(false)
	return s.stopMusic(false)
}

func (s *Session) startMusic(port int, ip string, reconnect bool) error {
	s.musicLock.Lock()
	defer s.musicLock.Unlock()
	s.musicTransition.Store(true)
	defer s.musicTransition.Store(false)

	if s.musicMode.Load() && !reconnect {
		return fmt.Errorf(`music mode on %s: %w`, s.host, common.ErrMusicModeConflict)
	}
	if s.musicModeState.Load() {
		s.log.Debugf(`%s: already in music mode`, s.host)
		return nil
	}

	if reconnect {
		s.log.Debugf(`%s: starting music mode reconnect`, s.host)
		s.mu.Lock()
		port, ip = s.musicPort, s.musicIP
		s.mu.Unlock()
		if _, err := s.GetProperties(nil, true); err != nil {
			return err
		}
	} else {
		s.log.Debugf(`%s: starting music mode`, s.host)
		s.musicMode.Store(true)
		// the device won't answer queries once in music mode, populate the
		// snapshot while we still can
		if _, err := s.GetProperties(nil, false); err != nil {
			return err
		}
	}

	if ip == `` {
		conn := s.currentConn()
		if conn == nil {
			return fmt.Errorf(`music mode on %s: %w`, s.host, common.ErrConnectionClosed)
		}
		ip = conn.localIP()
	}

	ln, err := net.Listen(`tcp`, net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf(`music mode listener on %s: %w`, ip, err)
	}
	defer func() { _ = ln.Close() }()
	port = ln.Addr().(*net.TCPAddr).Port

	accepted := make(chan net.Conn, 1)
	go func() {
		sock, aerr := ln.Accept()
		if aerr != nil {
			return
		}
		accepted <- sock
	}()

	// hold the command lock until the swap is complete, so no command can be
	// written while neither connection is fully established
	s.cmdLock.Lock()
	defer s.cmdLock.Unlock()

	// the device drops the current session right after this command, no reply
	// will arrive
	if _, err = s.write(`set_music`, []interface{}{1, ip, port}, nil); err != nil {
		return err
	}
	s.StopListening(false)

	var sock net.Conn
	select {
	case sock = <-accepted:
	case <-time.After(musicFastAccept):
		// let observers know we are down, then keep waiting for the
		// remainder of the request timeout
		s.log.Debugf(`%s: failed to connect to music mode quickly`, s.host)
		s.notify(map[string]interface{}{KeyConnected: false})
		select {
		case sock = <-accepted:
		case <-time.After(s.timeout - musicFastAccept):
			if serr := s.stopMusic(true); serr != nil {
				s.log.Debugf(`%s: recovery after music mode failure: %v`, s.host, serr)
			}
			return fmt.Errorf(`music mode on %s: %w`, s.host, common.ErrMusicModeTimeout)
		}
	}

	// adopt the reverse connection as the active transport and resume the
	// listen loop on it, to watch for disconnects
	stop, done := s.beginListening(sock)
	s.musicModeState.Store(true)
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	go s.runListen(stop, done)

	select {
	case <-ready:
	case <-time.After(s.timeout):
		s.log.Debugf(`%s: listener failed to start in music mode`, s.host)
		if serr := s.stopMusic(true); serr != nil {
			s.log.Debugf(`%s: recovery after music mode failure: %v`, s.host, serr)
		}
		s.notify(map[string]interface{}{KeyConnected: false})
		return fmt.Errorf(`music mode on %s: %w`, s.host, common.ErrMusicModeTimeout)
	}

	s.notify(map[string]interface{}{KeyConnected: true})
	s.mu.Lock()
	s.musicPort, s.musicIP = port, ip
	s.mu.Unlock()

	if reconnect {
		s.log.Debugf(`%s: music mode reconnected successfully`, s.host)
	} else {
		s.log.Debugf(`%s: music mode started successfully`, s.host)
	}
	return nil
}

// stopMusic tears down the reverse connection and re-establishes the forward
// listen session using the previously registered callback.  Callers must hold
// musicLock.  force skips the active check, for aborting a partially
// completed start.
func (s *Session) stopMusic(force bool) error {
	s.musicMode.Store(false)
	if !s.musicModeState.Load() && !force {
		s.log.Debugf(`%s: music mode was not enabled but StopMusic was called`, s.host)
		return nil
	}

	s.expectDisconnect.Store(true)
	s.StopListening(false)
	s.expectDisconnect.Store(false)
	s.musicModeState.Store(false)

	s.mu.Lock()
	callback := s.callback
	s.mu.Unlock()
	return s.Listen(callback)
}
