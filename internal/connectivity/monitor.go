package connectivity

import (
	"sync"

	"github.com/telreader/telugu-science-reader/pkg/log"
)

// Monitor tracks whether the backing AI service is reachable. Components
// consult Online before attempting remote work and subscribe to transitions
// to react when the link comes back.
type Monitor struct {
	mu     sync.RWMutex
	online bool
	subs   []func(online bool)
}

// NewMonitor starts in the given state. Servers typically start optimistic
// and let the first failed call or probe flip the state.
func NewMonitor(online bool) *Monitor {
	return &Monitor{online: online}
}

func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Set records the current state and notifies subscribers on transitions.
// Setting the same state twice is a no-op.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	if online {
		log.Info("Connectivity restored")
	} else {
		log.Warn("Connectivity lost")
	}
	for _, fn := range subs {
		fn(online)
	}
}

// Subscribe registers a callback invoked on every state transition. The
// callback runs on the goroutine that triggered the transition.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}
