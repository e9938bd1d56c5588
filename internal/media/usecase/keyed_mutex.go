package usecase

import "sync"

// keyedMutex serializes operations per owner key. Two concurrent attach or
// detach calls for the same owner would interleave the cross-system phases,
// so they queue here; operations on different owners run independently.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*ownerLock
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*ownerLock)}
}

// Lock acquires the lock for key and returns the matching unlock function.
// Entries are reference counted so the map does not grow with the key space.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &ownerLock{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
