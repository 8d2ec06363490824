package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

// FetchFunc loads the current value of a Store.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Store holds one derived value, loads it lazily, and tells subscribers every
// time it is refetched. Create one per application and Close it on shutdown.
type Store[T any] struct {
	fetch FetchFunc[T]
	group singleflight.Group

	mu        sync.Mutex
	value     T
	loaded    bool
	started   uint64
	stored    uint64
	subs      map[uint64]func(T)
	nextSubID uint64
	closed    bool
}

// New creates a Store backed by fetch.
func New[T any](fetch FetchFunc[T]) *Store[T] {
	return &Store[T]{
		fetch: fetch,
		subs:  make(map[uint64]func(T)),
	}
}

// Get returns the cached value, fetching it on first use.
func (s *Store[T]) Get(ctx context.Context) (T, error) {
	s.mu.Lock()
	if s.loaded {
		v := s.value
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()
	return s.refresh(ctx)
}

// Invalidate drops the cached value and refetches it. Concurrent invalidations
// share one fetch; a fetch that started before the call is not reused.
func (s *Store[T]) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
	s.group.Forget(refreshKey)
	_, err := s.refresh(ctx)
	return err
}

// Subscribe registers fn to be called with every freshly fetched value.
// The returned function removes the subscription.
func (s *Store[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Close drops every subscriber. The store keeps answering Get.
func (s *Store[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.subs = make(map[uint64]func(T))
	s.mu.Unlock()
}

func (s *Store[T]) refresh(ctx context.Context) (T, error) {
	v, err, _ := s.group.Do(refreshKey, func() (any, error) {
		s.mu.Lock()
		s.started++
		gen := s.started
		s.mu.Unlock()

		val, err := s.fetch(ctx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		if gen < s.stored {
			// a newer fetch already landed
			latest := s.value
			s.mu.Unlock()
			return latest, nil
		}
		s.value, s.loaded, s.stored = val, true, gen
		subs := make([]func(T), 0, len(s.subs))
		for _, fn := range s.subs {
			subs = append(subs, fn)
		}
		s.mu.Unlock()

		for _, fn := range subs {
			fn(val)
		}
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
