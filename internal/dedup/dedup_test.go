package dedup

import (
	"sync"
	"testing"
)

func TestLedgerObserve(t *testing.T) {
	l := NewLedger()

	if !l.Observe(1, 0) {
		t.Fatal("first observation should be new")
	}
	if l.Observe(1, 0) {
		t.Fatal("second observation of same (client, seq) should be a duplicate")
	}
	if !l.Observe(1, 1) {
		t.Fatal("next seq from same client should be new")
	}
	if !l.Observe(2, 0) {
		t.Fatal("same seq from a different client should be new")
	}
}

func TestLedgerConcurrentObserve(t *testing.T) {
	l := NewLedger()

	// Many goroutines racing on the same (client, seq): exactly one wins.
	const n = 32
	var wg sync.WaitGroup
	wins := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Observe(7, 42) {
				wins <- true
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 first observation, got %d", count)
	}
}

func TestFilterObserve(t *testing.T) {
	f := NewFilter()

	if !f.Observe(5) {
		t.Fatal("first observation should be new")
	}
	if f.Observe(5) {
		t.Fatal("repeat observation should be a duplicate")
	}
	if !f.Observe(6) {
		t.Fatal("new seq should be new")
	}
}
