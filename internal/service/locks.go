package service

import (
	"sync"

	"github.com/google/uuid"
)

// tournamentLocks hands out one mutex per tournament so that mutations of the
// same tournament run one at a time while different tournaments never block each other.
type tournamentLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newTournamentLocks() *tournamentLocks {
	return &tournamentLocks{locks: make(map[uuid.UUID]*lockEntry)}
}

// Lock blocks until the tournament is free and returns the matching unlock func.
func (l *tournamentLocks) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &lockEntry{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *tournamentLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
