package trend

import (
	"sync"

	"TrendChannel/internal/logger"
	"TrendChannel/internal/metrics"

	"github.com/google/uuid"
)

// Runner executes computations off the caller's goroutine and delivers only
// the most recent result per key. A result that completes after a newer
// submission for the same key is dropped.
type Runner[T any] struct {
	mu     sync.Mutex
	latest map[string]uuid.UUID

	// delivering holds one lock per key, ordering staleness checks with
	// delivery so a superseded result can never be delivered after the one
	// that replaced it. A slow delivery only blocks its own key.
	delivering map[string]*sync.Mutex

	wg      sync.WaitGroup
	metrics *metrics.Metrics
}

// NewRunner creates a Runner. m may be nil.
func NewRunner[T any](m *metrics.Metrics) *Runner[T] {
	return &Runner[T]{
		latest:     make(map[string]uuid.UUID),
		delivering: make(map[string]*sync.Mutex),
		metrics:    m,
	}
}

// Submit starts fn under key, superseding any in-flight request for key, and
// returns immediately with the request token.
func (r *Runner[T]) Submit(key string, fn func() T, deliver func(T)) uuid.UUID {
	token := uuid.New()
	r.mu.Lock()
	r.latest[key] = token
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		result := fn()

		lock := r.deliveryLock(key)
		lock.Lock()
		defer lock.Unlock()
		if !r.settle(key, token) {
			r.metrics.IncStale()
			logger.Debug("[trend] dropped stale result", logger.Pair("key", key), logger.Pair("token", token.String()))
			return
		}
		deliver(result)
	}()
	return token
}

// Latest reports whether token is the newest submission for key.
func (r *Runner[T]) Latest(key string, token uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest[key] == token
}

// Wait blocks until every submitted computation has finished or been dropped.
func (r *Runner[T]) Wait() {
	r.wg.Wait()
}

func (r *Runner[T]) deliveryLock(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.delivering[key]
	if !ok {
		lock = &sync.Mutex{}
		r.delivering[key] = lock
	}
	return lock
}

// settle forgets key once its newest request completes.
func (r *Runner[T]) settle(key string, token uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest[key] != token {
		return false
	}
	delete(r.latest, key)
	return true
}
