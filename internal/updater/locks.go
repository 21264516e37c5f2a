package updater

import "sync"

// subjectLocks hands out one mutex per subject key. Entries are removed
// when the last holder releases them.
type subjectLocks struct {
	mu    sync.Mutex
	locks map[string]*subjectLock
}

type subjectLock struct {
	mu      sync.Mutex
	holders int
}

func newSubjectLocks() *subjectLocks {
	return &subjectLocks{locks: make(map[string]*subjectLock)}
}

// lock blocks until key is free and returns the matching unlock func.
func (s *subjectLocks) lock(key string) func() {
	s.mu.Lock()
	l := s.locks[key]
	if l == nil {
		l = &subjectLock{}
		s.locks[key] = l
	}
	l.holders++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.holders--
		if l.holders == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

// size returns the number of tracked keys.
func (s *subjectLocks) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
