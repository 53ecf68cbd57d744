package agent

import "sync"

// userLocks serializes runs per user id. Two concurrent runs for the
// same user would interleave their recent-buffer and fact mutations, so
// a second incoming message queues behind the first. Entries are
// reference counted and removed once no run holds or waits on them, so
// the map never grows with the lifetime set of user ids.
type userLocks struct {
	mu    sync.Mutex
	users map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{users: make(map[string]*userLock)}
}

// acquire blocks until the caller holds the user's lock, then returns
// the release function.
func (l *userLocks) acquire(userID string) func() {
	l.mu.Lock()
	entry, ok := l.users[userID]
	if !ok {
		entry = &userLock{}
		l.users[userID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.users, userID)
		}
		l.mu.Unlock()
	}
}

// size reports the number of live lock entries.
func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}
