package bidding

import "sync"

// auctionLocks hands out one mutex per auction ID. Entries are dropped once no goroutine holds
// or waits for them.
type auctionLocks struct {
	mu    sync.Mutex
	locks map[string]*auctionLock
}

type auctionLock struct {
	mu   sync.Mutex
	refs int
}

func newAuctionLocks() *auctionLocks {
	return &auctionLocks{locks: make(map[string]*auctionLock)}
}

// lock blocks until the caller owns auctionID and returns the matching unlock
func (l *auctionLocks) lock(auctionID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[auctionID]
	if !ok {
		entry = &auctionLock{}
		l.locks[auctionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, auctionID)
		}
		l.mu.Unlock()
	}
}

// size returns the number of live entries
func (l *auctionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
