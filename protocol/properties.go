package protocol

import "sync"

// DefaultProperties lists the property names fetched when no explicit list is
// supplied to a properties query.
var DefaultProperties = []string{
	`power`, `main_power`, `bright`, `ct`, `rgb`, `hue`, `sat`, `color_mode`,
	`flowing`, `delayoff`, `music_on`, `name`, `bg_power`, `bg_flowing`,
	`bg_ct`, `bg_bright`, `bg_hue`, `bg_sat`, `bg_rgb`, `nl_br`, `active_mode`,
}

// Snapshot holds the last-known property values for one device.  Full query
// results replace the snapshot wholesale, partial update notifications and
// keepalive replies merge into it.  It is mutated only inside the read loop or
// in response to an explicit query result.
type Snapshot struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

func newSnapshot() *Snapshot {
	return &Snapshot{values: make(map[string]interface{})}
}

// Replace discards all previous values in favour of the supplied ones
func (s *Snapshot) Replace(values map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]interface{}, len(values))
	for k, v := range values {
		s.values[k] = v
	}
}

// Merge applies the supplied values on top of the existing ones,
// last-applied-wins per key
func (s *Snapshot) Merge(values map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.values[k] = v
	}
}

// Get returns the value of a single property, with ok false when the property
// is unknown
func (s *Snapshot) Get(name string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Power returns the last-known power state as a string, or the empty string
// when unknown
func (s *Snapshot) Power() string {
	if v, ok := s.Get(`power`); ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ``
}

// CurrentBrightness derives the effective brightness of the lamp: 0 when off,
// the night-light brightness when the lamp is in night-light mode, otherwise
// the main brightness.  Empty when unknown.
func (s *Snapshot) CurrentBrightness() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	power, ok := s.values[`power`].(string)
	if !ok {
		return ``
	}
	if power != `on` {
		return `0`
	}
	if active, ok := s.values[`active_mode`].(string); ok && active == `1` {
		if nl, ok := s.values[`nl_br`].(string); ok {
			return nl
		}
		return ``
	}
	if bright, ok := s.values[`bright`].(string); ok {
		return bright
	}
	return ``
}

// All returns a copy of the snapshot with the derived current_brightness
// included
func (s *Snapshot) All() map[string]interface{} {
	current := s.CurrentBrightness()
	s.mu.RLock()
	defer s.mu.RUnlock()
	values := make(map[string]interface{}, len(s.values)+1)
	for k, v := range s.values {
		values[k] = v
	}
	if current != `` {
		values[`current_brightness`] = current
	}
	return values
}
