package service

import "sync"

// cohortLocker serializes mutations per cohort within this process. The
// database row lock remains the cross-process guarantee; this keeps local
// contention off the database.
type cohortLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newCohortLocker() *cohortLocker {
	return &cohortLocker{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the cohort's mutex and returns the unlock func.
func (l *cohortLocker) Lock(cohortID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[cohortID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[cohortID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
