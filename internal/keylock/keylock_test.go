package keylock

import (
	"sync"
	"testing"
	"time"
)

func TestLockSerializesSameKey(t *testing.T) {
	locks := New[string]()
	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("s1")
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock.Unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected one holder at a time, saw %d", maxInside)
	}
	if locks.IsLocked("s1") {
		t.Fatalf("entry should be released")
	}
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	locks := New[string]()
	first := locks.Lock("a")
	defer first.Unlock()

	done := make(chan struct{})
	go func() {
		locks.Lock("b").Unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("lock on another key blocked")
	}
}
