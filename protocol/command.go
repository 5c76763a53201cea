package protocol

import (
	"fmt"
	"time"

	"github.com/lanterndev/goyeelight/common"
)

// Send issues a command to the device and waits for the correlated reply.  It
// returns the reply's result values, a *common.DeviceError when the device
// answers with an error payload, common.ErrConnectionClosed when no
// connection is available to write to, and common.ErrCommandTimeout when no
// matching reply arrives within the request timeout.
//
// While music mode is active the device sends no replies, so the request is
// written fire-and-forget and a successful result is synthesized locally.
func (s *Session) Send(method string, params []interface{}) ([]interface{}, error) {
	s.cmdLock.Lock()
	defer s.cmdLock.Unlock()
	return s.send(method, params)
}

// send is the lock-free half of Send.  The music mode negotiator calls it
// directly for the enable command, as it already holds cmdLock one level up
// and taking it again would self-deadlock.
func (s *Session) send(method string, params []interface{}) ([]interface{}, error) {
	if s.musicModeState.Load() {
		if _, err := s.write(method, params, nil); err != nil {
			return nil, err
		}
		// we can't check whether it worked, so assume it did, and keep
		// external observers consistent
		s.notify(map[string]interface{}{`result`: []interface{}{`ok`}})
		return []interface{}{`ok`}, nil
	}

	ch := make(chan *message, 1)
	id, err := s.write(method, params, ch)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case msg := <-ch:
		if msg.Error != nil {
			return nil, &common.DeviceError{Code: msg.Error.Code, Message: msg.Error.Message}
		}
		return msg.Result, nil
	case <-timer.C:
		// the reply slot may have been abandoned by a teardown, make sure it
		// does not leak
		s.removePending(id)
		return nil, fmt.Errorf(`command %s to %s: %w`, method, s.host, common.ErrCommandTimeout)
	}
}

// write allocates an id on the current connection, registers the reply slot
// when ch is non-nil, and writes the request line
func (s *Session) write(method string, params []interface{}, ch chan *message) (int64, error) {
	conn := s.currentConn()
	if conn == nil {
		return 0, fmt.Errorf(`command %s to %s: %w`, method, s.host, common.ErrConnectionClosed)
	}
	id := conn.nextID()
	if ch != nil {
		s.mu.Lock()
		s.pending[id] = ch
		s.mu.Unlock()
	}
	s.log.Debugf(`%s: > %s %v (id %d)`, s.host, method, params, id)
	if err := conn.write(&Request{ID: id, Method: method, Params: params}); err != nil {
		if ch != nil {
			s.removePending(id)
		}
		return 0, fmt.Errorf(`command %s to %s: %v: %w`, method, s.host, err, common.ErrConnectionClosed)
	}
	return id, nil
}

// GetProperties retrieves the requested properties from the device, updating
// the snapshot with replace semantics, and returns the refreshed snapshot.
// When whenOn is set the query is skipped unless the device is known to be
// on.  While music mode is active the device cannot answer, so the cached
// snapshot is returned as-is.
func (s *Session) GetProperties(names []string, whenOn bool) (map[string]interface{}, error) {
	if len(names) == 0 {
		names = DefaultProperties
	}
	if (whenOn && s.props.Power() != `on`) || s.musicModeState.Load() {
		return s.props.All(), nil
	}

	params := make([]interface{}, len(names))
	for i, name := range names {
		params[i] = name
	}
	result, err := s.Send(`get_prop`, params)
	if err != nil {
		return nil, err
	}
	// music mode could have been enabled while the command was queued, in
	// which case the result is a synthesized ack rather than property values
	if s.musicModeState.Load() {
		return s.props.All(), nil
	}

	values := make(map[string]interface{}, len(names))
	for i, name := range names {
		if i >= len(result) {
			break
		}
		if str, ok := result[i].(string); ok && str == `` {
			values[name] = nil
			continue
		}
		values[name] = result[i]
	}
	if power, ok := values[`power`].(string); ok && power == `ok` {
		// a music mode ack raced the query, discard it
		return s.props.All(), nil
	}
	s.props.Replace(values)
	return s.props.All(), nil
}
