// Package keylock hands out one FIFO mutex per key.
package keylock

import "sync"

// Mutex is a mutual-exclusion lock that grants ownership in request order.
// Unlock passes ownership directly to the oldest waiter.
type Mutex struct {
	state   sync.Mutex
	locked  bool
	waiters []chan struct{}
	// refs counts Registry.Lock callers holding or waiting; guarded by state.
	refs    int
	pinned  bool
	evicted bool
}

// Lock blocks until the caller owns the mutex.
func (mutex *Mutex) Lock() {
	mutex.state.Lock()
	if !mutex.locked {
		mutex.locked = true
		mutex.state.Unlock()
		return
	}
	turn := make(chan struct{})
	mutex.waiters = append(mutex.waiters, turn)
	mutex.state.Unlock()
	<-turn
}

// Unlock releases the mutex or hands it to the next waiter.
func (mutex *Mutex) Unlock() {
	mutex.state.Lock()
	defer mutex.state.Unlock()
	if !mutex.locked {
		panic("keylock: unlock of unlocked mutex")
	}
	if len(mutex.waiters) == 0 {
		mutex.locked = false
		return
	}
	next := mutex.waiters[0]
	mutex.waiters[0] = nil
	mutex.waiters = mutex.waiters[1:]
	close(next)
}

func (mutex *Mutex) waiting() int {
	mutex.state.Lock()
	defer mutex.state.Unlock()
	return len(mutex.waiters)
}

// Registry maps keys to lazily created mutexes.
type Registry[K comparable] struct {
	handles   sync.Map
	evictIdle bool
}

// New returns an empty registry whose entries are never evicted.
func New[K comparable]() *Registry[K] {
	return &Registry[K]{}
}

// NewEvicting returns an empty registry that drops a key's mutex once Lock
// callers no longer hold or wait on it.
func NewEvicting[K comparable]() *Registry[K] {
	return &Registry[K]{evictIdle: true}
}

// Acquire returns the mutex for key, installing a new one on first use.
// Concurrent first calls for the same key observe the same mutex.
// A mutex handed out by Acquire is never evicted, so callers may lock it directly.
func (registry *Registry[K]) Acquire(key K) *Mutex {
	for {
		handle := registry.load(key)
		if !registry.evictIdle {
			return handle
		}
		handle.state.Lock()
		if handle.evicted {
			handle.state.Unlock()
			continue
		}
		handle.pinned = true
		handle.state.Unlock()
		return handle
	}
}

// Lock blocks until the caller owns the mutex for key and returns its release func.
func (registry *Registry[K]) Lock(key K) func() {
	for {
		handle := registry.load(key)
		handle.state.Lock()
		if handle.evicted {
			handle.state.Unlock()
			continue
		}
		handle.refs++
		handle.state.Unlock()

		handle.Lock()
		return func() { registry.release(key, handle) }
	}
}

func (registry *Registry[K]) load(key K) *Mutex {
	if existing, ok := registry.handles.Load(key); ok {
		return existing.(*Mutex)
	}
	handle, _ := registry.handles.LoadOrStore(key, &Mutex{})
	return handle.(*Mutex)
}

func (registry *Registry[K]) release(key K, handle *Mutex) {
	handle.Unlock()
	handle.state.Lock()
	defer handle.state.Unlock()
	handle.refs--
	if registry.evictIdle && handle.refs == 0 && !handle.locked && !handle.pinned {
		handle.evicted = true
		registry.handles.CompareAndDelete(key, handle)
	}
}

// Waiters reports how many callers are queued behind the current holder of key.
func (registry *Registry[K]) Waiters(key K) int {
	existing, ok := registry.handles.Load(key)
	if !ok {
		return 0
	}
	return existing.(*Mutex).waiting()
}

// Len reports how many keys have a handle.
func (registry *Registry[K]) Len() int {
	count := 0
	registry.handles.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
