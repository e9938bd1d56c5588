package usecase

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	const workers = 32
	counter := 0
	var wg sync.WaitGroup

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			unlock := km.Lock("owner-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestKeyedMutex_IndependentKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.Lock("owner-a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("owner-b")
		unlockB()
		close(done)
	}()
	<-done
}

func TestKeyedMutex_EntriesAreReleased(t *testing.T) {
	km := newKeyedMutex()

	for i := 0; i < 10; i++ {
		unlock := km.Lock("owner-1")
		unlock()
	}

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks)
}
