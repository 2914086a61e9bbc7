package upstream

import (
	"errors"
	"strings"

	"recwatch/internal/domain"
)

// SetFilter scopes the feed to one streamer. The filter is remembered across
// reconnects and resent after every successful dial, so a reconnect never
// silently widens the stream. When connected, the subscribe frame goes out
// immediately.
func (m *Manager) SetFilter(streamerID string) error {
	if strings.TrimSpace(streamerID) == "" {
		return errors.New("streamer id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = streamerID
	m.hasFilter = true
	if m.status != StatusConnected {
		return nil
	}
	return m.sendIntentLocked(domain.Subscribe{StreamerID: streamerID})
}

// ClearFilter reverts the feed to all downloads.
func (m *Manager) ClearFilter() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = ""
	m.hasFilter = false
	if m.status != StatusConnected {
		return nil
	}
	return m.sendIntentLocked(domain.Unsubscribe{})
}

// Filter returns the current streamer filter and whether one is set.
func (m *Manager) Filter() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter, m.hasFilter
}
