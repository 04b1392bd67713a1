package imagekey

// Set is the IndexedSet from spec.md §3/§4.A: the set of ImageKeys a
// single Bin currently references. Built the same way as Map, minus the
// value slot.
type Set struct {
	buckets map[uint64][]ImageKey
	size    int
}

func NewSet() *Set {
	return &Set{buckets: make(map[uint64][]ImageKey)}
}

func NewSetWithCapacity(capacity int) *Set {
	return &Set{buckets: make(map[uint64][]ImageKey, capacity)}
}

func (s *Set) Len() int      { return s.size }
func (s *Set) IsEmpty() bool { return s.size == 0 }

func (s *Set) Contains(key ImageKey) bool {
	for _, k := range s.buckets[key.h] {
		if k.payloadEqual(key) {
			return true
		}
	}
	return false
}

// Insert adds key, returning true if it was newly added.
func (s *Set) Insert(key ImageKey) bool {
	bucket := s.buckets[key.h]
	for _, k := range bucket {
		if k.payloadEqual(key) {
			return false
		}
	}
	s.buckets[key.h] = append(bucket, key)
	s.size++
	return true
}

// Remove deletes key, returning true if it was present.
func (s *Set) Remove(key ImageKey) bool {
	bucket := s.buckets[key.h]
	for i, k := range bucket {
		if k.payloadEqual(key) {
			bucket = append(bucket[:i], bucket[i+1:]...)
			if len(bucket) == 0 {
				delete(s.buckets, key.h)
			} else {
				s.buckets[key.h] = bucket
			}
			s.size--
			return true
		}
	}
	return false
}

func (s *Set) Each(fn func(ImageKey)) {
	for _, bucket := range s.buckets {
		for _, k := range bucket {
			fn(k)
		}
	}
}

func (s *Set) Slice() []ImageKey {
	out := make([]ImageKey, 0, s.size)
	s.Each(func(k ImageKey) { out = append(out, k) })
	return out
}

func (s *Set) Clear() {
	s.buckets = make(map[uint64][]ImageKey)
	s.size = 0
}

// Diff computes, relative to s (the "old" set) and other (the "new"
// set): keys present in s but not other (removed), and keys present in
// other but not s (added). This is the bin-images diff spec.md §3/§4.D
// drives the image-backing add/remove multisets from.
func (s *Set) Diff(other *Set) (removed, added []ImageKey) {
	s.Each(func(k ImageKey) {
		if !other.Contains(k) {
			removed = append(removed, k)
		}
	})
	other.Each(func(k ImageKey) {
		if !s.Contains(k) {
			added = append(added, k)
		}
	})
	return removed, added
}
