package session

import "context"

// TimerTick runs one background refresh tick synchronously.
func (m *Manager) TimerTick(ctx context.Context) {
	m.timerTick(ctx)
}

func (m *Manager) TimerRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopTimer != nil
}
