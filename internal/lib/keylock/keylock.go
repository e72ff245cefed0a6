package keylock

import "sync"

// Locks holds one mutex per key. Entries are dropped once no goroutine
// holds or waits for them.
type Locks struct {
	mutex sync.Mutex
	keys  map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New() *Locks {
	return &Locks{keys: make(map[string]*entry)}
}

func (l *Locks) Lock(key string) {
	l.mutex.Lock()
	e, exists := l.keys[key]
	if !exists {
		e = &entry{}
		l.keys[key] = e
	}
	e.refs++
	l.mutex.Unlock()

	e.mu.Lock()
}

func (l *Locks) Unlock(key string) {
	l.mutex.Lock()
	e, exists := l.keys[key]
	if !exists {
		l.mutex.Unlock()
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
	l.mutex.Unlock()

	e.mu.Unlock()
}

// Len reports how many keys are currently held or awaited.
func (l *Locks) Len() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.keys)
}
