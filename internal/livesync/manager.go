package livesync

import (
	"context"
	"sync"

	"github.com/jimmypocock/FameFit-sub002/internal/session"

	"github.com/rs/zerolog/log"
)

// Manager runs one coordinator per active session on behalf of the server,
// so live viewers get reconciled snapshots without each device fanning in.
// It satisfies session.LiveSync.
type Manager struct {
	store Store
	opts  Options

	mu     sync.Mutex
	active map[string]*Coordinator
}

func NewManager(store Store, opts Options) *Manager {
	return &Manager{
		store:  store,
		opts:   opts,
		active: map[string]*Coordinator{},
	}
}

// Begin starts a coordinator for the session if one is not already
// running.
func (m *Manager) Begin(sess session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[sess.ID]; ok {
		return
	}

	coord := NewCoordinator(m.store, sess, "", m.opts)
	m.active[sess.ID] = coord
	coord.Start(context.Background())
	log.Info().Str("session_id", sess.ID).Msg("live sync started")
}

// End stops and forgets the session's coordinator, if any.
func (m *Manager) End(sessionID string) {
	m.mu.Lock()
	coord, ok := m.active[sessionID]
	delete(m.active, sessionID)
	m.mu.Unlock()

	if ok {
		coord.Stop()
		log.Info().Str("session_id", sessionID).Msg("live sync stopped")
	}
}

// Get returns the running coordinator for a session.
func (m *Manager) Get(sessionID string) (*Coordinator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coord, ok := m.active[sessionID]
	return coord, ok
}

// StopAll tears down every running coordinator. Used on server shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	coords := make([]*Coordinator, 0, len(m.active))
	for _, coord := range m.active {
		coords = append(coords, coord)
	}
	m.active = map[string]*Coordinator{}
	m.mu.Unlock()

	for _, coord := range coords {
		coord.Stop()
	}
}
