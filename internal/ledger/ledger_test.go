package ledger

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestHasMark(t *testing.T) {
	l := New(10)

	if l.Has("h1") {
		t.Error("empty ledger should not contain h1")
	}
	l.Mark("h1")
	if !l.Has("h1") {
		t.Error("marked hash should be present")
	}
	if l.Has("h2") {
		t.Error("unmarked hash should be absent")
	}
}

func TestMarkIfNew(t *testing.T) {
	l := New(10)
	if !l.MarkIfNew("h1") {
		t.Error("first MarkIfNew should report new")
	}
	if l.MarkIfNew("h1") {
		t.Error("second MarkIfNew should report already seen")
	}
	if !l.Has("h1") {
		t.Error("hash should be present after MarkIfNew")
	}
}

func TestMarkIfNewSingleWinner(t *testing.T) {
	l := New(50)

	// All goroutines race the same hash; exactly one may win, no matter how
	// the lock acquisitions interleave.
	var wg sync.WaitGroup
	var wins atomic.Int32
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if l.MarkIfNew("contested") {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Errorf("MarkIfNew winners = %d, want exactly 1", got)
	}
}

func TestMarkIdempotent(t *testing.T) {
	l := New(10)
	for i := 0; i < 5; i++ {
		l.Mark("h1")
	}
	if got := l.Len(); got != 1 {
		t.Errorf("Len = %d after redundant marks, want 1", got)
	}
}

func TestCapacityBound(t *testing.T) {
	const capacity = 100
	l := New(capacity)

	for i := 0; i < capacity*3; i++ {
		h := fmt.Sprintf("hash-%d", i)
		l.Mark(h)
		if got := l.Len(); got > capacity {
			t.Fatalf("Len = %d exceeds capacity %d", got, capacity)
		}
		if !l.Has(h) {
			t.Fatalf("most recently marked %q must survive eviction", h)
		}
	}
}

func TestEvictionFreesHalf(t *testing.T) {
	const capacity = 100
	l := New(capacity)

	for i := 0; i < capacity+1; i++ {
		l.Mark(fmt.Sprintf("hash-%d", i))
	}
	// Crossing capacity sweeps down to half, not by one.
	if got := l.Len(); got != capacity/2 {
		t.Errorf("Len = %d after eviction, want %d", got, capacity/2)
	}
	// Newest survives, oldest is gone.
	if !l.Has(fmt.Sprintf("hash-%d", capacity)) {
		t.Error("newest hash evicted")
	}
	if l.Has("hash-0") {
		t.Error("oldest hash should have been evicted")
	}
}

func TestDefaultCapacity(t *testing.T) {
	l := New(0)
	for i := 0; i < DefaultCapacity*2; i++ {
		l.Mark(fmt.Sprintf("hash-%d", i))
	}
	if got := l.Len(); got > DefaultCapacity {
		t.Errorf("Len = %d exceeds default capacity %d", got, DefaultCapacity)
	}
}

func TestConcurrentMark(t *testing.T) {
	l := New(50)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				h := fmt.Sprintf("g%d-%d", g, i)
				l.Mark(h)
				l.Has(h)
			}
		}()
	}
	wg.Wait()
	if got := l.Len(); got > 50 {
		t.Errorf("Len = %d exceeds capacity 50", got)
	}
}
