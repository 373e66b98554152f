package query

import "sync"

type memoKey struct {
	version uint64
	query   Query
}

// Memo keeps the last derived view and recomputes it only when the
// collection version or the query changes.
type Memo[T Record] struct {
	mu     sync.Mutex
	valid  bool
	key    memoKey
	result []T
}

// View returns Apply(load(), q), reusing the cached result when version and q
// match the previous call. load is only invoked on a miss.
func (m *Memo[T]) View(version uint64, q Query, load func() []T) []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoKey{version: version, query: q}
	if !m.valid || m.key != key {
		m.result = Apply(load(), q)
		m.key = key
		m.valid = true
	}
	out := make([]T, len(m.result))
	copy(out, m.result)
	return out
}
