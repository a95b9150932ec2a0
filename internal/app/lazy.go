package app

import "sync"

// lazy holds a component built on first use. The build error is cached with the
// value, so a component that failed to build fails the same way on every call.
type lazy[T any] struct {
	mu    sync.Mutex
	built bool
	value T
	err   error
}

func (l *lazy[T]) get(build func() (T, error)) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.built {
		l.value, l.err = build()
		l.built = true
	}
	return l.value, l.err
}

func (l *lazy[T]) must(build func() T) T {
	v, _ := l.get(func() (T, error) { return build(), nil })
	return v
}

// peek returns the value if it was built without error. It never builds.
func (l *lazy[T]) peek() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.built && l.err == nil
}
