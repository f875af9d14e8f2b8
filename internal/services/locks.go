package services

import "sync"

// accountLocks serializes balance mutations per cash account. The
// read-modify-write on balance could race between an interactive request
// and the settler sweep; every mutation path takes the account's mutex.
type accountLocks struct {
	mu sync.Mutex
	m  map[int64]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{m: make(map[int64]*sync.Mutex)}
}

func (l *accountLocks) mutex(accountID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	mu, ok := l.m[accountID]
	if !ok {
		mu = &sync.Mutex{}
		l.m[accountID] = mu
	}
	return mu
}

// Lock acquires the account's mutex and returns the unlock func.
func (l *accountLocks) Lock(accountID int64) func() {
	mu := l.mutex(accountID)
	mu.Lock()
	return mu.Unlock
}

// LockPair acquires both accounts' mutexes in id order, so two concurrent
// split payments between the same accounts cannot deadlock.
func (l *accountLocks) LockPair(a, b int64) func() {
	if a == b {
		return l.Lock(a)
	}
	if a > b {
		a, b = b, a
	}
	first, second := l.mutex(a), l.mutex(b)
	first.Lock()
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}
