package preload

// Set is an insertion-ordered, deduplicated collection of assets.
// The zero value is not usable; create one with [NewSet].
// A Set is not safe for concurrent use.
type Set struct {
	keys  []Key
	items map[Key]Asset
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{items: make(map[Key]Asset)}
}

// Add inserts a, keeping the first occurrence of each key. A later entry
// module replaces an earlier module preload for the same file in place.
// It reports whether the set changed.
func (s *Set) Add(a Asset) bool {
	k := a.Key()
	prev, ok := s.items[k]
	if !ok {
		s.keys = append(s.keys, k)
		s.items[k] = a
		return true
	}
	if prev.Kind == KindModulePreload && a.Kind == KindEntryModule {
		s.items[k] = a
		return true
	}
	return false
}

// AddAll inserts every asset in order.
func (s *Set) AddAll(assets []Asset) {
	for _, a := range assets {
		s.Add(a)
	}
}

// Len returns the number of distinct assets.
func (s *Set) Len() int { return len(s.keys) }

// Assets returns the assets in first-seen order.
func (s *Set) Assets() []Asset {
	out := make([]Asset, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.items[k])
	}
	return out
}
