package service

import "sync"

// stampedeTracker counts misses in progress per cache key. A count above one
// means several requests are computing the same forecast at once. Requests are
// not coalesced; the count only feeds cacheStampedeDetectedTotal.
type stampedeTracker struct {
	mu       sync.Mutex
	inFlight map[string]int
}

func newStampedeTracker() *stampedeTracker {
	return &stampedeTracker{inFlight: make(map[string]int)}
}

// RecordMiss registers a miss for key and returns the number now in progress.
// Pair every call with RecordHit once the compute finishes.
func (st *stampedeTracker) RecordMiss(key string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.inFlight[key]++
	return st.inFlight[key]
}

func (st *stampedeTracker) RecordHit(key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := st.inFlight[key]
	switch {
	case n <= 1:
		delete(st.inFlight, key)
	default:
		st.inFlight[key] = n - 1
	}
}
