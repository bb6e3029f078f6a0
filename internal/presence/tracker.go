package presence

import (
	"sort"
	"sync"
)

// Tracker is the process-wide record of which users currently hold live
// presence connections. All access goes through the mutex; the maps are
// never handed out directly.
type Tracker struct {
	mu    sync.Mutex
	users map[string]map[string]bool
}

func NewTracker() *Tracker {
	return &Tracker{
		users: make(map[string]map[string]bool),
	}
}

// Connect records a connection for the user and reports whether this was the
// user's first live connection. The caller decides whether to broadcast an
// online event.
func (t *Tracker) Connect(username, connectionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns, ok := t.users[username]
	if !ok {
		conns = make(map[string]bool)
		t.users[username] = conns
	}
	conns[connectionID] = true

	return !ok
}

// Disconnect removes a connection for the user and reports whether the user
// is now fully offline. A user with multiple tabs or devices stays online
// until the last connection drops.
func (t *Tracker) Disconnect(username, connectionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns, ok := t.users[username]
	if !ok {
		return false
	}

	delete(conns, connectionID)
	if len(conns) == 0 {
		delete(t.users, username)
		return true
	}

	return false
}

// OnlineUsers returns a sorted snapshot of every username with at least one
// live connection.
func (t *Tracker) OnlineUsers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := make([]string, 0, len(t.users))
	for username := range t.users {
		users = append(users, username)
	}
	sort.Strings(users)

	return users
}

// ConnectionsForUser returns the connection ids a user currently holds, for
// fanning out targeted notifications. Empty when the user is offline.
func (t *Tracker) ConnectionsForUser(username string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns := t.users[username]
	ids := make([]string, 0, len(conns))
	for id := range conns {
		ids = append(ids, id)
	}

	return ids
}
