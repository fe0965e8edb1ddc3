package credentials

import "time"

// SetClock replaces the manager's time source.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}
