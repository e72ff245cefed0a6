package keylock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocks_SerializesSameKey(t *testing.T) {
	l := New()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Lock("a")
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			l.Unlock("a")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, l.Len())
}

func TestLocks_IndependentKeys(t *testing.T) {
	l := New()
	l.Lock("a")
	done := make(chan struct{})
	go func() {
		l.Lock("b")
		l.Unlock("b")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked by a")
	}
	l.Unlock("a")
}

func TestLocks_UnlockUnknownKey(t *testing.T) {
	l := New()
	assert.NotPanics(t, func() { l.Unlock("missing") })
}
