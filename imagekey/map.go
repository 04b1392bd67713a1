package imagekey

// Map is the open-addressed table from spec.md §3/§4.A: keyed by
// ImageKey.Hash(), equality confirmed by (tag, payload) on a hash match.
// Go's native map cannot be keyed on a precomputed hash directly (its key
// type must itself be comparable), so Map is built as map[uint64][]entry,
// a bucket per hash with a short collision chain — in practice that chain
// never exceeds length 1 for xxhash over a realistic key population, but
// correctness does not depend on that.
type Map[V any] struct {
	buckets map[uint64][]entry[V]
	size    int
}

type entry[V any] struct {
	key ImageKey
	val V
}

func NewMap[V any]() *Map[V] {
	return &Map[V]{buckets: make(map[uint64][]entry[V])}
}

func NewMapWithCapacity[V any](capacity int) *Map[V] {
	return &Map[V]{buckets: make(map[uint64][]entry[V], capacity)}
}

func (m *Map[V]) Len() int      { return m.size }
func (m *Map[V]) IsEmpty() bool { return m.size == 0 }

func (m *Map[V]) findIndex(key ImageKey) (bucket []entry[V], idx int) {
	bucket = m.buckets[key.h]
	for i := range bucket {
		if bucket[i].key.payloadEqual(key) {
			return bucket, i
		}
	}
	return bucket, -1
}

func (m *Map[V]) Get(key ImageKey) (V, bool) {
	bucket, idx := m.findIndex(key)
	if idx < 0 {
		var zero V
		return zero, false
	}
	return bucket[idx].val, true
}

func (m *Map[V]) Contains(key ImageKey) bool {
	_, idx := m.findIndex(key)
	return idx >= 0
}

// Set inserts or overwrites the value for key.
func (m *Map[V]) Set(key ImageKey, val V) {
	bucket := m.buckets[key.h]
	for i := range bucket {
		if bucket[i].key.payloadEqual(key) {
			bucket[i].val = val
			return
		}
	}
	m.buckets[key.h] = append(bucket, entry[V]{key: key, val: val})
	m.size++
}

// TryInsert inserts key with the result of build() only if key is
// absent; returns true if it inserted, false if key already existed.
func (m *Map[V]) TryInsert(key ImageKey, build func() V) bool {
	if m.Contains(key) {
		return false
	}
	m.Set(key, build())
	return true
}

// TryInsertThen is the atomic "insert-or-derive" primitive spec.md §4.A
// names: probe by key.Hash(), and if an entry with equal (tag, payload)
// exists, call derive on it and return that; otherwise call build(),
// insert it, then call derive on the freshly inserted entry. This never
// fails — there is no error kind, the operation is total.
func TryInsertThen[V any, R any](m *Map[V], key ImageKey, build func() V, derive func(*V) R) R {
	bucket := m.buckets[key.h]
	for i := range bucket {
		if bucket[i].key.payloadEqual(key) {
			return derive(&bucket[i].val)
		}
	}

	val := build()
	m.buckets[key.h] = append(bucket, entry[V]{key: key, val: val})
	m.size++

	// Re-fetch: append may have reallocated the backing array, so we must
	// derive from the slice we just stored in the map, not the local one.
	stored := m.buckets[key.h]
	return derive(&stored[len(stored)-1].val)
}

// Modify inserts a fresh value via insert() if key is absent, then
// applies modify to whichever value (fresh or pre-existing) ends up
// stored for key.
func (m *Map[V]) Modify(key ImageKey, insert func() V, modify func(*V)) {
	bucket := m.buckets[key.h]
	for i := range bucket {
		if bucket[i].key.payloadEqual(key) {
			modify(&bucket[i].val)
			return
		}
	}

	val := insert()
	modify(&val)
	m.buckets[key.h] = append(bucket, entry[V]{key: key, val: val})
	m.size++
}

// Remove deletes key if present, returning its value.
func (m *Map[V]) Remove(key ImageKey) (V, bool) {
	bucket := m.buckets[key.h]
	for i := range bucket {
		if bucket[i].key.payloadEqual(key) {
			val := bucket[i].val
			bucket = append(bucket[:i], bucket[i+1:]...)
			if len(bucket) == 0 {
				delete(m.buckets, key.h)
			} else {
				m.buckets[key.h] = bucket
			}
			m.size--
			return val, true
		}
	}
	var zero V
	return zero, false
}

// Retain keeps only entries for which keep returns true.
func (m *Map[V]) Retain(keep func(ImageKey, *V) bool) {
	for h, bucket := range m.buckets {
		out := bucket[:0]
		for i := range bucket {
			if keep(bucket[i].key, &bucket[i].val) {
				out = append(out, bucket[i])
			} else {
				m.size--
			}
		}
		if len(out) == 0 {
			delete(m.buckets, h)
		} else {
			m.buckets[h] = out
		}
	}
}

// Each calls fn for every (key, value) pair. Iteration order is
// unspecified, matching the hash table this models.
func (m *Map[V]) Each(fn func(ImageKey, V)) {
	for _, bucket := range m.buckets {
		for i := range bucket {
			fn(bucket[i].key, bucket[i].val)
		}
	}
}

// Keys returns all keys currently stored. Order is unspecified.
func (m *Map[V]) Keys() []ImageKey {
	out := make([]ImageKey, 0, m.size)
	for _, bucket := range m.buckets {
		for i := range bucket {
			out = append(out, bucket[i].key)
		}
	}
	return out
}

func (m *Map[V]) Clear() {
	m.buckets = make(map[uint64][]entry[V])
	m.size = 0
}
