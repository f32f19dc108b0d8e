package locate

import "sync"

// Latest is a broadcast cell with latest-value semantics. Subscribers see
// only the most recent value; intermediate values may be skipped, and a late
// subscriber immediately receives the current value if one is set.
type Latest[T any] struct {
	mu      sync.RWMutex
	value   T
	set     bool
	version uint64
	subs    map[int]chan T
	nextID  int
	closed  bool
}

// NewLatest creates an empty cell
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{subs: make(map[int]chan T)}
}

// Set stores v and notifies subscribers without blocking
func (l *Latest[T]) Set(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.value = v
	l.set = true
	l.version++
	for _, ch := range l.subs {
		offer(ch, v)
	}
}

// Get returns the current value and whether one has been set
func (l *Latest[T]) Get() (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, l.set
}

// Version increments on every Set
func (l *Latest[T]) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// Subscribe returns a channel of updates and a cancel function. The channel
// is closed by cancel or by Close.
func (l *Latest[T]) Subscribe() (<-chan T, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan T, 1)
	if l.closed {
		close(ch)
		return ch, func() {}
	}
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	if l.set {
		ch <- l.value
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if c, ok := l.subs[id]; ok {
				delete(l.subs, id)
				close(c)
			}
		})
	}
}

// Close closes all subscriber channels; later Sets are ignored
func (l *Latest[T]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for id, ch := range l.subs {
		close(ch)
		delete(l.subs, id)
	}
}

// offer replaces any unread value in a buffer-1 channel with v
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
